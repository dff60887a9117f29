package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerMap relates a question id to the selected option index.
// Last write wins per question; encoding/json maps the int64 keys to
// JSON object keys, so the wire shape is {"12": 1, "15": 3}.
type AnswerMap map[int64]int

// TestSession is one user's single attempt at a practice test.
// Rows are never deleted; completion fields are set exactly once by Submit.
// Invariant: CompletedAt is present iff Score is present.
type TestSession struct {
	ID               uuid.UUID  `json:"id"`
	UserID           int        `json:"user_id"`
	QuestionIDs      []int64    `json:"question_ids"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Score            *int       `json:"score,omitempty"`
	TotalQuestions   *int       `json:"total_questions,omitempty"`
	TimeSpentSeconds *int       `json:"time_spent_seconds,omitempty"`
	Answers          AnswerMap  `json:"answers,omitempty"`
}

// Completed reports whether the session has reached its terminal state.
func (s *TestSession) Completed() bool {
	return s.CompletedAt != nil
}

// Presented reports whether the given question was part of this attempt.
func (s *TestSession) Presented(questionID int64) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// StartSessionRequest is the payload for beginning a test attempt.
type StartSessionRequest struct {
	Subject       string `json:"subject" binding:"omitempty,max=100"`
	QuestionCount int    `json:"question_count" binding:"omitempty,min=1,max=100"`
}

// RecordAnswerRequest upserts a single answer selection.
// OptionIndex is a pointer so index 0 survives the required check.
type RecordAnswerRequest struct {
	QuestionID  int64 `json:"question_id" binding:"required"`
	OptionIndex *int  `json:"option_index" binding:"required,min=0"`
}

// CheckpointRequest is a periodic snapshot of in-flight progress.
type CheckpointRequest struct {
	CurrentQuestionIndex int       `json:"current_question_index" binding:"min=0"`
	Answers              AnswerMap `json:"answers"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds" binding:"min=0"`
}

// SubmitRequest is the terminal submission payload.
type SubmitRequest struct {
	Answers          AnswerMap `json:"answers"`
	TimeSpentSeconds int       `json:"time_spent_seconds" binding:"min=0"`
}
