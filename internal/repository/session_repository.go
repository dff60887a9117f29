package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles test session data access.
// Sessions are append/update only and never physically deleted.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new open session with the presented question ids.
func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (user_id, question_ids)
		 VALUES ($1, $2)
		 RETURNING id, started_at`,
		s.UserID, s.QuestionIDs,
	).Scan(&s.ID, &s.StartedAt)
}

// GetByID retrieves a session by id.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	s := &model.TestSession{}
	var answers []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, question_ids, started_at, completed_at, score, total_questions, time_spent_seconds, answers
		 FROM test_sessions
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.QuestionIDs, &s.StartedAt, &s.CompletedAt, &s.Score, &s.TotalQuestions, &s.TimeSpentSeconds, &answers)
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return s, nil
}

// Complete performs the terminal transition as a conditional update guarded
// by "not already completed". Returns false when another caller won the race;
// the stored result is then the source of truth.
func (r *SessionRepository) Complete(ctx context.Context, id uuid.UUID, score, totalQuestions, timeSpentSeconds int, answers model.AnswerMap) (bool, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET completed_at = NOW(), score = $2, total_questions = $3, time_spent_seconds = $4, answers = $5
		 WHERE id = $1 AND completed_at IS NULL`,
		id, score, totalQuestions, timeSpentSeconds, raw)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByUser retrieves all sessions for a given user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, question_ids, started_at, completed_at, score, total_questions, time_spent_seconds, answers
		 FROM test_sessions
		 WHERE user_id = $1
		 ORDER BY started_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		var s model.TestSession
		var answers []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.QuestionIDs, &s.StartedAt, &s.CompletedAt, &s.Score, &s.TotalQuestions, &s.TimeSpentSeconds, &answers); err != nil {
			return nil, err
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &s.Answers); err != nil {
				return nil, fmt.Errorf("unmarshal answers: %w", err)
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
