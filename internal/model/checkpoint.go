package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressCheckpoint is an append-only snapshot of in-flight answer state,
// used for crash/resume recovery. Many checkpoints may exist per session;
// the most recent wins on resume. Never mutated after creation.
type ProgressCheckpoint struct {
	ID                   int64     `json:"id"`
	SessionID            uuid.UUID `json:"session_id"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	Answers              AnswerMap `json:"answers"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds"`
	SavedAt              time.Time `json:"saved_at"`
}
