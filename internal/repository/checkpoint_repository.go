package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointRepository handles progress checkpoint data access.
// Checkpoints are append-only; rows are never mutated after insert.
type CheckpointRepository struct {
	pool *pgxpool.Pool
}

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(pool *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{pool: pool}
}

// Create inserts a new checkpoint row and fills in its id and saved_at.
func (r *CheckpointRepository) Create(ctx context.Context, cp *model.ProgressCheckpoint) error {
	raw, err := json.Marshal(cp.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO progress_checkpoints (session_id, current_question_index, answers, time_remaining_seconds)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, saved_at`,
		cp.SessionID, cp.CurrentQuestionIndex, raw, cp.TimeRemainingSeconds,
	).Scan(&cp.ID, &cp.SavedAt)
}

// LatestBySession retrieves the most recent checkpoint for a session.
// Most-recent wins on resume.
func (r *CheckpointRepository) LatestBySession(ctx context.Context, sessionID uuid.UUID) (*model.ProgressCheckpoint, error) {
	cp := &model.ProgressCheckpoint{}
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, current_question_index, answers, time_remaining_seconds, saved_at
		 FROM progress_checkpoints
		 WHERE session_id = $1
		 ORDER BY id DESC
		 LIMIT 1`, sessionID,
	).Scan(&cp.ID, &cp.SessionID, &cp.CurrentQuestionIndex, &raw, &cp.TimeRemainingSeconds, &cp.SavedAt)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cp.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return cp, nil
}
