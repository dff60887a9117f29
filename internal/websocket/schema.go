package websocket

import "github.com/aasprep/practest-backend/internal/model"

// Actions (Client -> Server)

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionCheckpoint Action = "checkpoint"
	ActionPing       Action = "ping"
)

// RequestPayload carries any client action; unused fields stay zero.
// OptionIndex is a pointer so option 0 is distinguishable from absent.
type RequestPayload struct {
	Action               Action          `json:"action"`
	QuestionID           int64           `json:"question_id,omitempty"`
	OptionIndex          *int            `json:"option_index,omitempty"`
	CurrentQuestionIndex int             `json:"current_question_index,omitempty"`
	Answers              model.AnswerMap `json:"answers,omitempty"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds,omitempty"`
}

// Events (Server -> Client)

type Event string

const (
	EventError        Event = "error"
	EventSaved        Event = "saved"
	EventCheckpointed Event = "checkpointed"
	EventClosed       Event = "closed"
	EventPong         Event = "pong"
)

// EventEnvelope wraps every server-to-client message.
type EventEnvelope struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
