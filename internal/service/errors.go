package service

import "errors"

// Domain errors for the session engine.
var (
	// ErrNoQuestions means the requested subject filter matched zero bank
	// entries, so no session can be started.
	ErrNoQuestions = errors.New("no questions match the requested filter")

	// ErrSessionClosed means a mutation was attempted after submission.
	// Callers treat it as an idempotent no-op, not a fatal failure, so
	// late client retries are safe.
	ErrSessionClosed = errors.New("session already completed")

	// ErrSessionNotFound means the session id is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotSessionOwner means the caller's identity does not match the
	// session's user.
	ErrNotSessionOwner = errors.New("session belongs to another user")

	// ErrNotCompleted means results were requested before submission.
	ErrNotCompleted = errors.New("session not yet completed")

	// ErrQuestionNotInSession means the question was never presented in
	// this attempt.
	ErrQuestionNotInSession = errors.New("question was not presented in this session")

	// ErrOptionOutOfRange means the selected option index is outside the
	// question's options.
	ErrOptionOutOfRange = errors.New("option index out of range")
)
