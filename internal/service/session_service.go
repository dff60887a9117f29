package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Store contracts the engine depends on. The pgx repositories and the Redis
// cache satisfy them; tests substitute in-memory fakes.

// SessionStore persists test sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.TestSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error)
	// Complete is the conditional terminal write: it must only succeed when
	// completed_at is still unset and report whether this caller won.
	Complete(ctx context.Context, id uuid.UUID, score, totalQuestions, timeSpentSeconds int, answers model.AnswerMap) (bool, error)
	ListByUser(ctx context.Context, userID int) ([]model.TestSession, error)
}

// QuestionStore reads the question bank, answer keys included.
type QuestionStore interface {
	Sample(ctx context.Context, subject string, limit int) ([]model.Question, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
}

// CheckpointStore persists progress checkpoints.
type CheckpointStore interface {
	Create(ctx context.Context, cp *model.ProgressCheckpoint) error
	LatestBySession(ctx context.Context, sessionID uuid.UUID) (*model.ProgressCheckpoint, error)
}

// AnswerStore reads the durably persisted answer selections (fallback when
// the live cache is unavailable).
type AnswerStore interface {
	MapBySession(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error)
}

// AnswerCache holds the live answer state of open sessions.
type AnswerCache interface {
	Save(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error
	Snapshot(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// Enqueuer feeds the background persistence workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
}

// SessionService orchestrates the test session lifecycle:
// OPEN -> OPEN (RecordAnswer, Checkpoint)* -> CLOSED (Submit).
// There is no transition out of CLOSED; Results is only valid in CLOSED.
type SessionService struct {
	sessions    SessionStore
	questions   QuestionStore
	checkpoints CheckpointStore
	answers     AnswerStore
	liveAnswers AnswerCache
	queue       Enqueuer
	cfg         *config.Config
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions SessionStore,
	questions QuestionStore,
	checkpoints CheckpointStore,
	answers AnswerStore,
	liveAnswers AnswerCache,
	queue Enqueuer,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		questions:   questions,
		checkpoints: checkpoints,
		answers:     answers,
		liveAnswers: liveAnswers,
		queue:       queue,
		cfg:         cfg,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// StartedSession is returned when a new attempt begins: the session row plus
// the paper (public question projections, answer keys stripped).
type StartedSession struct {
	Session         *model.TestSession     `json:"session"`
	Questions       []model.PublicQuestion `json:"questions"`
	DurationSeconds int                    `json:"duration_seconds"`
}

// SessionState supports page-reload resume: live answers, the most recent
// checkpoint, and the remaining wall-clock budget.
type SessionState struct {
	SessionID            uuid.UUID                 `json:"session_id"`
	Completed            bool                      `json:"completed"`
	Answers              model.AnswerMap           `json:"answers"`
	Checkpoint           *model.ProgressCheckpoint `json:"checkpoint,omitempty"`
	TimeRemainingSeconds int                       `json:"time_remaining_seconds"`
}

// QuestionReview augments a question with the user's selection for review
// rendering. The answer key and explanation are intentionally included here:
// results are only reachable for completed sessions.
type QuestionReview struct {
	model.PublicQuestion
	UserAnswer    int    `json:"user_answer"`
	CorrectAnswer int    `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

// ReviewBundle joins a completed session with its per-question review.
type ReviewBundle struct {
	Session   *model.TestSession `json:"session"`
	Result    ScoreResult        `json:"result"`
	Questions []QuestionReview   `json:"questions"`
}

// answerPayload is the wire shape for the answer persistence queue.
type answerPayload struct {
	SessionID   string `json:"session_id"`
	QuestionID  int64  `json:"question_id"`
	OptionIndex int    `json:"option_index"`
}

// checkpointPayload is the wire shape for the checkpoint persistence queue.
type checkpointPayload struct {
	SessionID            string          `json:"session_id"`
	CurrentQuestionIndex int             `json:"current_question_index"`
	Answers              model.AnswerMap `json:"answers"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds"`
}

// Start allocates a new open session for the user. Fails with ErrNoQuestions
// when the subject filter matches nothing in the bank.
func (s *SessionService) Start(ctx context.Context, userID int, req model.StartSessionRequest) (*StartedSession, error) {
	limit := req.QuestionCount
	if limit <= 0 {
		limit = s.cfg.QuestionLimit
	}

	questions, err := s.questions.Sample(ctx, req.Subject, limit)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	ids := make([]int64, 0, len(questions))
	for i := range questions {
		ids = append(ids, questions[i].ID)
	}

	session := &model.TestSession{UserID: userID, QuestionIDs: ids}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("user_id", userID).
		Int("questions", len(ids)).
		Msg("Session started")

	return &StartedSession{
		Session:         session,
		Questions:       model.PublicQuestions(questions),
		DurationSeconds: int(s.cfg.TestDuration.Seconds()),
	}, nil
}

// RecordAnswer upserts a single answer selection into the live state.
// Requires an open session, a question presented in it, and an in-bounds
// option index. Never mutates the session row itself.
func (s *SessionService) RecordAnswer(ctx context.Context, sessionID uuid.UUID, userID int, questionID int64, optionIndex int) error {
	session, err := s.getOwned(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if session.Completed() {
		return ErrSessionClosed
	}
	if !session.Presented(questionID) {
		return ErrQuestionNotInSession
	}

	bank, err := s.questions.GetByIDs(ctx, []int64{questionID})
	if err != nil {
		return fmt.Errorf("get question: %w", err)
	}
	if len(bank) == 0 {
		return ErrQuestionNotInSession
	}
	if optionIndex < 0 || optionIndex >= len(bank[0].Options) {
		return ErrOptionOutOfRange
	}

	if err := s.liveAnswers.Save(ctx, sessionID, questionID, optionIndex); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}

	// Durable persistence is asynchronous; a full queue outage only costs
	// the session_answers audit rows, the submit payload stays authoritative.
	raw, _ := json.Marshal(answerPayload{
		SessionID:   sessionID.String(),
		QuestionID:  questionID,
		OptionIndex: optionIndex,
	})
	if err := s.queue.Enqueue(ctx, config.WorkerKey.PersistAnswersQueue, raw); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Answer persist enqueue failed")
	}

	return nil
}

// Checkpoint appends a progress snapshot. It succeeds from the caller's
// perspective whenever the session is open: a failed insert is queued for
// the checkpoint worker instead of surfacing to the client (the returned
// checkpoint then carries id 0).
func (s *SessionService) Checkpoint(ctx context.Context, sessionID uuid.UUID, userID int, req model.CheckpointRequest) (*model.ProgressCheckpoint, error) {
	session, err := s.getOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Completed() {
		return nil, ErrSessionClosed
	}

	cp := &model.ProgressCheckpoint{
		SessionID:            sessionID,
		CurrentQuestionIndex: req.CurrentQuestionIndex,
		Answers:              req.Answers,
		TimeRemainingSeconds: req.TimeRemainingSeconds,
	}

	if err := s.checkpoints.Create(ctx, cp); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Checkpoint insert failed, queueing for retry")

		raw, _ := json.Marshal(checkpointPayload{
			SessionID:            sessionID.String(),
			CurrentQuestionIndex: req.CurrentQuestionIndex,
			Answers:              req.Answers,
			TimeRemainingSeconds: req.TimeRemainingSeconds,
		})
		if qErr := s.queue.Enqueue(ctx, config.WorkerKey.PersistCheckpointsQueue, raw); qErr != nil {
			s.log.Error().Err(qErr).Str("session_id", sessionID.String()).Msg("Checkpoint enqueue failed, snapshot dropped")
		}
		cp.ID = 0
		cp.SavedAt = time.Now()
	}

	return cp, nil
}

// Submit performs the terminal transition and scores the attempt.
// Idempotent under retry: once completed_at is set, the previously stored
// result is returned without rescoring. Safe against two concurrent callers
// (explicit click racing timer expiry) via the store's conditional update.
func (s *SessionService) Submit(ctx context.Context, sessionID uuid.UUID, userID int, answers model.AnswerMap, timeSpentSeconds int) (*ScoreResult, error) {
	session, err := s.getOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Completed() {
		return storedResult(session), nil
	}

	// Drop answers for questions never presented in this attempt before
	// consulting the bank. Dangling ids are excluded, not an error.
	final := make(model.AnswerMap, len(answers))
	for questionID, optionIndex := range answers {
		if session.Presented(questionID) {
			final[questionID] = optionIndex
		}
	}

	ids := make([]int64, 0, len(final))
	for questionID := range final {
		ids = append(ids, questionID)
	}

	bank, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	score, matched := scoreAnswers(final, bank)
	total := matched
	if s.cfg.ScoreUnansweredAsWrong {
		total = len(session.QuestionIDs)
	}

	won, err := s.sessions.Complete(ctx, sessionID, score, total, timeSpentSeconds, final)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !won {
		// Lost the race against a concurrent submit; the stored result is
		// the single source of truth.
		stored, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("reload completed session: %w", err)
		}
		return storedResult(stored), nil
	}

	if err := s.liveAnswers.Clear(ctx, sessionID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Live answer cleanup failed")
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("score", score).
		Int("total", total).
		Msg("Session submitted and scored")

	return &ScoreResult{
		SessionID:      sessionID,
		Score:          score,
		TotalQuestions: total,
		Percentage:     percentage(score, total),
	}, nil
}

// Results joins a completed session with the bank for review rendering.
func (s *SessionService) Results(ctx context.Context, sessionID uuid.UUID, userID int) (*ReviewBundle, error) {
	session, err := s.getOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.Completed() {
		return nil, ErrNotCompleted
	}

	ids := make([]int64, 0, len(session.Answers))
	for questionID := range session.Answers {
		ids = append(ids, questionID)
	}

	bank, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	byID := make(map[int64]*model.Question, len(bank))
	for i := range bank {
		byID[bank[i].ID] = &bank[i]
	}

	// Presented order, answered questions only. Dangling answer ids have
	// no bank entry and are skipped.
	reviews := make([]QuestionReview, 0, len(session.Answers))
	for _, questionID := range session.QuestionIDs {
		selected, answered := session.Answers[questionID]
		if !answered {
			continue
		}
		q, ok := byID[questionID]
		if !ok {
			continue
		}
		reviews = append(reviews, QuestionReview{
			PublicQuestion: q.Public(),
			UserAnswer:     selected,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      selected == q.CorrectAnswer,
			Explanation:    q.Explanation,
		})
	}

	return &ReviewBundle{
		Session:   session,
		Result:    *storedResult(session),
		Questions: reviews,
	}, nil
}

// State returns the resume view of a session: live answers (Redis first,
// PostgreSQL fallback), the latest checkpoint, and remaining time.
func (s *SessionService) State(ctx context.Context, sessionID uuid.UUID, userID int) (*SessionState, error) {
	session, err := s.getOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	live, err := s.liveAnswers.Snapshot(ctx, sessionID)
	if err != nil || len(live) == 0 {
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Live answer read failed, falling back to store")
		}
		persisted, dbErr := s.answers.MapBySession(ctx, sessionID)
		if dbErr != nil && err != nil {
			return nil, fmt.Errorf("read answers: %w", dbErr)
		}
		if len(persisted) > 0 {
			live = persisted
		}
	}
	if live == nil {
		live = make(model.AnswerMap)
	}

	var checkpoint *model.ProgressCheckpoint
	cp, err := s.checkpoints.LatestBySession(ctx, sessionID)
	if err == nil {
		checkpoint = cp
	} else if !errors.Is(err, pgx.ErrNoRows) {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Latest checkpoint read failed")
	}

	remaining := 0
	if !session.Completed() {
		left := s.cfg.TestDuration - time.Since(session.StartedAt)
		if left > 0 {
			remaining = int(left.Seconds())
		}
	}

	return &SessionState{
		SessionID:            sessionID,
		Completed:            session.Completed(),
		Answers:              live,
		Checkpoint:           checkpoint,
		TimeRemainingSeconds: remaining,
	}, nil
}

// ListByUser returns the user's attempt history, newest first.
func (s *SessionService) ListByUser(ctx context.Context, userID int) ([]model.TestSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *SessionService) getOwned(ctx context.Context, sessionID uuid.UUID, userID int) (*model.TestSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	return session, nil
}

func storedResult(session *model.TestSession) *ScoreResult {
	result := &ScoreResult{SessionID: session.ID}
	if session.Score != nil {
		result.Score = *session.Score
	}
	if session.TotalQuestions != nil {
		result.TotalQuestions = *session.TotalQuestions
	}
	result.Percentage = percentage(result.Score, result.TotalQuestions)
	return result
}
