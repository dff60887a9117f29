package service

import (
	"math"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
)

// ScoreResult is the computed outcome of a submission.
type ScoreResult struct {
	SessionID      uuid.UUID `json:"session_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     int       `json:"percentage"`
}

// scoreAnswers counts correct selections by strict integer comparison
// against the answer key. Only questions present in both the answer map
// and the bank slice contribute; dangling ids on either side are ignored.
func scoreAnswers(answers model.AnswerMap, questions []model.Question) (score, matched int) {
	for i := range questions {
		q := &questions[i]
		selected, ok := answers[q.ID]
		if !ok {
			continue
		}
		matched++
		if selected == q.CorrectAnswer {
			score++
		}
	}
	return score, matched
}

// percentage computes round(100 * score / total), defined as 0 when total
// is zero to avoid division by zero.
func percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(total)))
}
