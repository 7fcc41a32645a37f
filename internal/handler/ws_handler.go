package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/timer"
	ws "github.com/stemsi/mocktest-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the countdown of an open attempt and accepts answers over
// the same connection.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	tickInterval   time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		tickInterval:   timer.DefaultInterval,
	}
}

// attemptStream is the per-connection state.
type attemptStream struct {
	h         *WSHandler
	conn      *ws.Conn
	userID    uuid.UUID
	attemptID uuid.UUID
	log       zerolog.Logger
	countdown *timer.Countdown
}

// AttemptStream godoc
// WS /ws/v1/attempts/:id/stream?token=...
// Pushes a tick every second, auto-submits on expiry, and accepts
// answer, review, submit and ping actions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	attemptID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	_, attempt, test, err := h.attemptService.RemainingTime(c.Request.Context(), userID, attemptID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	if attempt.IsCompleted {
		response.Fail(c, http.StatusConflict, response.ErrAttemptClosed)
		return
	}

	wsConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s := &attemptStream{
		h:         h,
		conn:      ws.NewConn(wsConn),
		userID:    userID,
		attemptID: attemptID,
		log: h.log.With().
			Str("user_id", userID.String()).
			Str("attempt_id", attemptID.String()).
			Logger(),
	}
	defer s.conn.Close("stream closed") //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.countdown = timer.NewCountdown(attempt.StartedAt, test.DurationMinutes,
		timer.WithClock(h.attemptService.Now),
		timer.WithInterval(h.tickInterval),
		timer.OnTick(s.onTick),
		timer.OnExpire(func() { s.onExpire(ctx) }),
	)
	s.countdown.Start(ctx)
	defer s.countdown.Stop()

	s.log.Info().Msg("Stream connected")
	s.readLoop(ctx)
}

func (s *attemptStream) readLoop(ctx context.Context) {
	for {
		var req ws.Request
		if err := s.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch req.Action {
		case ws.ActionAnswer:
			s.handleAnswer(ctx, &req)
		case ws.ActionReview:
			s.handleReview(ctx, &req)
		case ws.ActionSubmit:
			s.handleSubmit(ctx)
		case ws.ActionPing:
			_ = s.conn.WriteTyped(ws.PongEvent{Event: ws.EventPong})
		default:
			s.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
			_ = s.conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
		}
	}
}

func (s *attemptStream) onTick(remaining time.Duration) {
	_ = s.conn.WriteTyped(ws.TickEvent{Event: ws.EventTick, RemainingSeconds: int(remaining / time.Second)})
}

// onExpire runs on the countdown goroutine. A manual submit racing with it is
// resolved by SubmitAttempt returning the stored result.
func (s *attemptStream) onExpire(ctx context.Context) {
	result, err := s.h.attemptService.SubmitAttempt(ctx, s.userID, s.attemptID, model.TriggerTimer)
	if err != nil {
		s.log.Error().Err(err).Msg("Auto-submit failed")
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.SubmittedEvent{Event: ws.EventSubmitted, Trigger: model.TriggerTimer, Result: *result})
}

func (s *attemptStream) questionID(ctx context.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		if err := s.h.attemptService.EnsureOpen(ctx, s.userID, s.attemptID); err != nil {
			s.writeErr(err)
			return uuid.Nil, false
		}
		_ = s.conn.WriteError(string(response.ErrInvalidID), "question_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *attemptStream) handleAnswer(ctx context.Context, req *ws.Request) {
	qID, ok := s.questionID(ctx, req.QuestionID)
	if !ok {
		return
	}
	rec, err := s.h.attemptService.RecordAnswer(ctx, s.userID, s.attemptID, qID, req.SelectedOption, req.Status)
	if err != nil {
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.SavedEvent{Event: ws.EventSaved, Record: *rec})
}

func (s *attemptStream) handleReview(ctx context.Context, req *ws.Request) {
	qID, ok := s.questionID(ctx, req.QuestionID)
	if !ok {
		return
	}
	rec, err := s.h.attemptService.ToggleReview(ctx, s.userID, s.attemptID, qID)
	if err != nil {
		s.writeErr(err)
		return
	}
	_ = s.conn.WriteTyped(ws.SavedEvent{Event: ws.EventSaved, Record: *rec})
}

func (s *attemptStream) handleSubmit(ctx context.Context) {
	result, err := s.h.attemptService.SubmitAttempt(ctx, s.userID, s.attemptID, model.TriggerManual)
	if err != nil {
		s.writeErr(err)
		return
	}
	s.countdown.Stop()
	_ = s.conn.WriteTyped(ws.SubmittedEvent{Event: ws.EventSubmitted, Trigger: model.TriggerManual, Result: *result})
}

// writeErr reports err with the same code the REST surface would use.
func (s *attemptStream) writeErr(err error) {
	status, code := classify(err)
	msg := response.GetMessage(code)
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Error()
	}
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Action failed")
	}
	_ = s.conn.WriteError(string(code), msg)
}
