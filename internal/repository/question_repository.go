package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, subject, type, difficulty, prompt, options, correct_answer, explanation, image_url`

// Sample retrieves up to limit questions in random order, optionally filtered
// by subject. Fewer rows than limit is not an error.
func (r *QuestionRepository) Sample(ctx context.Context, subject string, limit int) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	args := []any{}

	if subject != "" {
		args = append(args, subject)
		query += ` WHERE subject = $1`
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY RANDOM() LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// GetByIDs retrieves questions for the given ids. Unknown ids are simply
// absent from the result; callers treat them as dangling references.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// Create inserts a new question. The answer-key bounds check mirrors the
// model invariant so a bad import never reaches the bank.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("correct_answer %d out of range for %d options", q.CorrectAnswer, len(q.Options))
	}

	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (subject, type, difficulty, prompt, options, correct_answer, explanation, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		q.Subject, q.Type, q.Difficulty, q.Prompt, opts, q.CorrectAnswer, q.Explanation, q.ImageURL,
	).Scan(&q.ID)
}

type questionRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanQuestions(rows questionRows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var opts []byte
		if err := rows.Scan(&q.ID, &q.Subject, &q.Type, &q.Difficulty, &q.Prompt, &opts, &q.CorrectAnswer, &q.Explanation, &q.ImageURL); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(opts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
