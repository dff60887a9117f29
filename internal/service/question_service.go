package service

import (
	"context"
	"fmt"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/rs/zerolog"
)

// QuestionService serves the outward-facing question listing.
// It only ever hands out public projections; the answer key stays inside
// the engine's scoring path.
type QuestionService struct {
	questions QuestionStore
	cfg       *config.Config
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionStore, cfg *config.Config, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		cfg:       cfg,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// List samples questions in random order, key stripped. A subject with
// fewer matches than limit returns fewer questions, not an error.
func (s *QuestionService) List(ctx context.Context, subject string, limit int) ([]model.PublicQuestion, error) {
	if limit <= 0 || limit > s.cfg.QuestionLimit {
		limit = s.cfg.QuestionLimit
	}

	questions, err := s.questions.Sample(ctx, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}

	return model.PublicQuestions(questions), nil
}
