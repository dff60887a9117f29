package handler

import (
	"errors"
	"net/http"

	"github.com/aasprep/practest-backend/internal/middleware"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/aasprep/practest-backend/internal/response"
	"github.com/aasprep/practest-backend/internal/service"
	"github.com/aasprep/practest-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles the test session lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Start godoc
// POST /api/v1/sessions
// Begins a new test attempt and returns the paper with answer keys stripped.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	started, err := h.sessionService.Start(c.Request.Context(), claims.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrNoQuestions) {
			response.Fail(c, http.StatusUnprocessableEntity, response.ErrNoQuestionsAvailable)
			return
		}
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
		return
	}

	response.Success(c, http.StatusCreated, started)
}

// List godoc
// GET /api/v1/sessions
// Returns the user's attempt history, newest first.
func (h *SessionHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// State godoc
// GET /api/v1/sessions/:id/state
// Resume view: live answers, latest checkpoint, remaining time.
func (h *SessionHandler) State(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// RecordAnswer godoc
// PUT /api/v1/sessions/:id/answers
// Upserts one answer selection. Against a closed session this is a no-op
// reported as {"status":"closed"}, so late timer-loop writes are harmless.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.sessionService.RecordAnswer(c.Request.Context(), sessionID, claims.UserID, req.QuestionID, *req.OptionIndex)
	if err != nil {
		if errors.Is(err, service.ErrSessionClosed) {
			response.Success(c, http.StatusOK, gin.H{"status": "closed"})
			return
		}
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Checkpoint godoc
// POST /api/v1/sessions/:id/checkpoints
// Appends a progress snapshot. Closed sessions report {"status":"closed"}.
func (h *SessionHandler) Checkpoint(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.CheckpointRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	cp, err := h.sessionService.Checkpoint(c.Request.Context(), sessionID, claims.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrSessionClosed) {
			response.Success(c, http.StatusOK, gin.H{"status": "closed"})
			return
		}
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"checkpoint": cp})
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Terminal transition. Safe to retry: a completed session returns the stored
// result without rescoring.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), sessionID, claims.UserID, req.Answers, req.TimeSpentSeconds)
	if err != nil {
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Results godoc
// GET /api/v1/sessions/:id/results
// Per-question review of a completed session, keys and explanations included.
func (h *SessionHandler) Results(c *gin.Context) {
	claims, sessionID, ok := h.sessionParams(c)
	if !ok {
		return
	}

	bundle, err := h.sessionService.Results(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotCompleted) {
			response.Fail(c, http.StatusConflict, response.ErrResultsNotReady)
			return
		}
		h.failSession(c, err)
		return
	}

	response.Success(c, http.StatusOK, bundle)
}

// sessionParams resolves the claims and the :id path param, writing the
// error response itself when either is missing.
func (h *SessionHandler) sessionParams(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, sessionID, true
}

func (h *SessionHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotSessionOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrQuestionNotInSession):
		response.Fail(c, http.StatusBadRequest, response.ErrQuestionNotInSession)
	case errors.Is(err, service.ErrOptionOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidOption)
	default:
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
	}
}
