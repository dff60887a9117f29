// Package client is a Go SDK for the PracTest API: a thin HTTP client plus
// a countdown/sync loop that drives an in-progress attempt the same way the
// web frontend does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aasprep/practest-backend/internal/model"
	"github.com/google/uuid"
)

// Client talks to a running PracTest server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates a Client against the given base URL, e.g.
// "http://localhost:8080/api/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope matches the server's response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

// Result is the scoring outcome of a submitted attempt.
type Result struct {
	SessionID      uuid.UUID `json:"session_id"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     int       `json:"percentage"`
}

// StartedSession is the server's reply to starting an attempt.
type StartedSession struct {
	Session         model.TestSession      `json:"session"`
	Questions       []model.PublicQuestion `json:"questions"`
	DurationSeconds int                    `json:"duration_seconds"`
}

// SessionState is the resume view of an attempt.
type SessionState struct {
	SessionID            uuid.UUID                 `json:"session_id"`
	Completed            bool                      `json:"completed"`
	Answers              model.AnswerMap           `json:"answers"`
	Checkpoint           *model.ProgressCheckpoint `json:"checkpoint,omitempty"`
	TimeRemainingSeconds int                       `json:"time_remaining_seconds"`
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "/auth/register", username, password)
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.authenticate(ctx, "/auth/login", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, path, map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}
	c.Token = out.Token
	return nil
}

// StartSession begins a new attempt.
func (c *Client) StartSession(ctx context.Context, subject string, questionCount int) (*StartedSession, error) {
	var out StartedSession
	err := c.do(ctx, http.MethodPost, "/sessions", model.StartSessionRequest{
		Subject:       subject,
		QuestionCount: questionCount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// State fetches the resume view of an attempt.
func (c *Client) State(ctx context.Context, sessionID uuid.UUID) (*SessionState, error) {
	var out SessionState
	err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID.String()+"/state", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordAnswer upserts a single answer selection.
func (c *Client) RecordAnswer(ctx context.Context, sessionID uuid.UUID, questionID int64, optionIndex int) error {
	idx := optionIndex
	return c.do(ctx, http.MethodPut, "/sessions/"+sessionID.String()+"/answers", model.RecordAnswerRequest{
		QuestionID:  questionID,
		OptionIndex: &idx,
	}, nil)
}

// Checkpoint pushes a progress snapshot.
func (c *Client) Checkpoint(ctx context.Context, sessionID uuid.UUID, currentIndex int, answers model.AnswerMap, remainingSeconds int) error {
	return c.do(ctx, http.MethodPost, "/sessions/"+sessionID.String()+"/checkpoints", model.CheckpointRequest{
		CurrentQuestionIndex: currentIndex,
		Answers:              answers,
		TimeRemainingSeconds: remainingSeconds,
	}, nil)
}

// Submit closes the attempt and returns the scored result. Retrying after a
// success is safe: the server returns the stored result.
func (c *Client) Submit(ctx context.Context, sessionID uuid.UUID, answers model.AnswerMap, timeSpentSeconds int) (*Result, error) {
	var out Result
	err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID.String()+"/submit", model.SubmitRequest{
		Answers:          answers,
		TimeSpentSeconds: timeSpentSeconds,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Results fetches the per-question review of a completed attempt. The raw
// JSON is returned so callers can render it however they like.
func (c *Client) Results(ctx context.Context, sessionID uuid.UUID) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID.String()+"/results", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
