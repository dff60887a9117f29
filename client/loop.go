package client

import (
	"context"
	"time"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
)

// Engine is what the loop needs from the server. *Client satisfies it.
type Engine interface {
	RecordAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error
	Checkpoint(ctx context.Context, sessionID uuid.UUID, currentIndex int, answers model.AnswerMap, remainingSeconds int) error
	Submit(ctx context.Context, sessionID uuid.UUID, answers model.AnswerMap, timeSpentSeconds int) (*Result, error)
}

// Loop drives one in-progress attempt: it counts the remaining time down
// once per second, pushes a checkpoint on its own interval, and submits
// exactly once, either when the clock reaches zero or on an explicit
// SubmitNow. All state lives in a single goroutine; the exported methods
// only send commands, so there is no locking and no racing timer handlers.
type Loop struct {
	engine             Engine
	sessionID          uuid.UUID
	duration           time.Duration
	checkpointInterval time.Duration

	cmds chan command
	done chan struct{}

	// Written by the run goroutine before closing done, read after.
	result *Result
	err    error
}

type commandKind int

const (
	cmdAnswer commandKind = iota
	cmdPosition
	cmdSubmit
	cmdStop
)

type command struct {
	kind        commandKind
	questionID  int64
	optionIndex int
	position    int
}

// NewLoop creates a Loop for the given session. Call Run to start it.
func NewLoop(engine Engine, sessionID uuid.UUID, duration, checkpointInterval time.Duration) *Loop {
	return &Loop{
		engine:             engine,
		sessionID:          sessionID,
		duration:           duration,
		checkpointInterval: checkpointInterval,
		cmds:               make(chan command, 16),
		done:               make(chan struct{}),
	}
}

// Run executes the loop until submission, Stop, or context cancellation.
// Call in a goroutine; Done is closed when the loop has finished.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	remaining := int(l.duration.Seconds())
	answers := make(model.AnswerMap)
	position := 0
	submitPending := false

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	checkpointTicker := time.NewTicker(l.checkpointInterval)
	defer checkpointTicker.Stop()

	submit := func() bool {
		elapsed := int(l.duration.Seconds()) - remaining
		result, err := l.engine.Submit(ctx, l.sessionID, answers, elapsed)
		if err != nil {
			// Keep the answers and retry on the next checkpoint interval.
			submitPending = true
			l.err = err
			return false
		}
		l.result = result
		l.err = nil
		return true
	}

	for {
		select {
		case <-ctx.Done():
			l.err = ctx.Err()
			return

		case <-ticker.C:
			if remaining <= 0 {
				continue
			}
			remaining--
			if remaining == 0 && submit() {
				return
			}

		case <-checkpointTicker.C:
			if submitPending {
				if submit() {
					return
				}
				continue
			}
			// Best effort; a lost checkpoint only costs resume fidelity.
			l.engine.Checkpoint(ctx, l.sessionID, position, answers, remaining)

		case cmd := <-l.cmds:
			switch cmd.kind {
			case cmdAnswer:
				answers[cmd.questionID] = cmd.optionIndex
				l.engine.RecordAnswer(ctx, l.sessionID, cmd.questionID, cmd.optionIndex)
			case cmdPosition:
				position = cmd.position
			case cmdSubmit:
				if submit() {
					return
				}
			case cmdStop:
				return
			}
		}
	}
}

// SetAnswer records a selection locally and pushes it to the server.
// Last write wins per question.
func (l *Loop) SetAnswer(questionID int64, optionIndex int) {
	l.send(command{kind: cmdAnswer, questionID: questionID, optionIndex: optionIndex})
}

// SetPosition updates the current question index used in checkpoints.
func (l *Loop) SetPosition(index int) {
	l.send(command{kind: cmdPosition, position: index})
}

// SubmitNow asks the loop to submit immediately. If a timer expiry submit is
// racing this call, the server resolves it: both see the same result.
func (l *Loop) SubmitNow() {
	l.send(command{kind: cmdSubmit})
}

// Stop tears the loop down without submitting. The attempt stays open on the
// server and can be resumed via State.
func (l *Loop) Stop() {
	l.send(command{kind: cmdStop})
}

// Done is closed once the loop has finished.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Result returns the submit outcome and the last error. Only valid after
// Done is closed; the result is nil when the loop stopped without submitting.
func (l *Loop) Result() (*Result, error) {
	return l.result, l.err
}

func (l *Loop) send(cmd command) {
	select {
	case l.cmds <- cmd:
	case <-l.done:
	}
}
