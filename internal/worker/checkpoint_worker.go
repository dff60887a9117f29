package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/aasprep/practest-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CheckpointWorker consumes persist_checkpoints_queue and inserts progress
// snapshots that failed their synchronous write.
type CheckpointWorker struct {
	checkpoints *repository.CheckpointRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewCheckpointWorker creates a new CheckpointWorker.
func NewCheckpointWorker(checkpoints *repository.CheckpointRepository, rdb *redis.Client, log zerolog.Logger) *CheckpointWorker {
	return &CheckpointWorker{
		checkpoints: checkpoints,
		rdb:         rdb,
		log:         log.With().Str("component", "checkpoint_worker").Logger(),
	}
}

type checkpointPayload struct {
	SessionID            string          `json:"session_id"`
	CurrentQuestionIndex int             `json:"current_question_index"`
	Answers              model.AnswerMap `json:"answers"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *CheckpointWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *CheckpointWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistCheckpointsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var payload checkpointPayload
	if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}

	if err := w.persistCheckpoint(ctx, &payload); err != nil {
		w.log.Error().Err(err).
			Str("session_id", payload.SessionID).
			Msg("Persist error, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.PersistCheckpointsQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *CheckpointWorker) persistCheckpoint(ctx context.Context, p *checkpointPayload) error {
	sessionID, err := uuid.Parse(p.SessionID)
	if err != nil {
		return err
	}

	return w.checkpoints.Create(ctx, &model.ProgressCheckpoint{
		SessionID:            sessionID,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Answers:              p.Answers,
		TimeRemainingSeconds: p.TimeRemainingSeconds,
	})
}

// drain processes all remaining items in the queue before shutdown.
func (w *CheckpointWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistCheckpointsQueue).Result()
		if err != nil {
			break
		}

		var payload checkpointPayload
		if err := json.Unmarshal([]byte(result), &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.persistCheckpoint(ctx, &payload); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistCheckpointsQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
