package handler

import (
	"errors"
	"net/http"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/middleware"
	"github.com/aasprep/practest-backend/internal/model"
	"github.com/aasprep/practest-backend/internal/response"
	"github.com/aasprep/practest-backend/internal/service"
	ws "github.com/aasprep/practest-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler serves the live session channel. It accepts the same answer and
// checkpoint writes as the REST endpoints, over a single upgraded connection,
// so an in-progress test does not pay per-request overhead.
type WSHandler struct {
	sessionService *service.SessionService
	upgrader       websocket.Upgrader
	log            zerolog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, cfg *config.Config, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		upgrader:       buildUpgrader(cfg),
		log:            log.With().Str("component", "ws_handler").Logger(),
	}
}

func buildUpgrader(cfg *config.Config) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// Session godoc
// GET /api/v1/ws/sessions/:id?token=...
// Upgrades and serves the action loop until the client disconnects or the
// session closes.
func (h *WSHandler) Session(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.serve(c, conn, sessionID, claims.UserID)
}

func (h *WSHandler) serve(c *gin.Context, conn *websocket.Conn, sessionID uuid.UUID, userID int) {
	ctx := c.Request.Context()

	for {
		var req ws.RequestPayload
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("WebSocket closed unexpectedly")
			}
			return
		}

		switch req.Action {
		case ws.ActionPing:
			if err := ws.WriteEvent(conn, ws.EventPong, nil); err != nil {
				return
			}

		case ws.ActionAnswer:
			if req.OptionIndex == nil {
				ws.WriteError(conn, string(response.ErrInvalidPayload))
				continue
			}
			err := h.sessionService.RecordAnswer(ctx, sessionID, userID, req.QuestionID, *req.OptionIndex)
			if done := h.reply(conn, sessionID, err, ws.EventSaved, gin.H{"question_id": req.QuestionID}); done {
				return
			}

		case ws.ActionCheckpoint:
			cp, err := h.sessionService.Checkpoint(ctx, sessionID, userID, model.CheckpointRequest{
				CurrentQuestionIndex: req.CurrentQuestionIndex,
				Answers:              req.Answers,
				TimeRemainingSeconds: req.TimeRemainingSeconds,
			})
			var data interface{}
			if err == nil {
				data = gin.H{"checkpoint": cp}
			}
			if done := h.reply(conn, sessionID, err, ws.EventCheckpointed, data); done {
				return
			}

		default:
			ws.WriteError(conn, string(response.ErrInvalidPayload))
		}
	}
}

// reply writes the outcome of an action and reports whether the loop should
// end. A closed session gets one final closed event, then the channel is done.
func (h *WSHandler) reply(conn *websocket.Conn, sessionID uuid.UUID, err error, okEvent ws.Event, data interface{}) bool {
	switch {
	case err == nil:
		if wErr := ws.WriteEvent(conn, okEvent, data); wErr != nil {
			return true
		}
		return false
	case errors.Is(err, service.ErrSessionClosed):
		ws.WriteEvent(conn, ws.EventClosed, nil)
		return true
	case errors.Is(err, service.ErrSessionNotFound):
		ws.WriteError(conn, string(response.ErrNotFound))
		return true
	case errors.Is(err, service.ErrNotSessionOwner):
		ws.WriteError(conn, string(response.ErrForbidden))
		return true
	case errors.Is(err, service.ErrQuestionNotInSession):
		ws.WriteError(conn, string(response.ErrQuestionNotInSession))
		return false
	case errors.Is(err, service.ErrOptionOutOfRange):
		ws.WriteError(conn, string(response.ErrInvalidOption))
		return false
	default:
		h.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("WebSocket action failed")
		ws.WriteError(conn, string(response.ErrStoreUnavailable))
		return false
	}
}
