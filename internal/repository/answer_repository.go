package repository

import (
	"context"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository persists the (session, question) -> option relationship.
// One row per pair, last write wins.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert creates or updates an answer selection without locking.
func (r *AnswerRepository) Upsert(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, option_index)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET option_index = EXCLUDED.option_index, updated_at = NOW()`,
		sessionID, questionID, optionIndex)
	return err
}

// MapBySession returns all recorded selections for a session.
func (r *AnswerRepository) MapBySession(ctx context.Context, sessionID uuid.UUID) (model.AnswerMap, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, option_index FROM session_answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(model.AnswerMap)
	for rows.Next() {
		var questionID int64
		var optionIndex int
		if err := rows.Scan(&questionID, &optionIndex); err != nil {
			return nil, err
		}
		answers[questionID] = optionIndex
	}
	return answers, rows.Err()
}
