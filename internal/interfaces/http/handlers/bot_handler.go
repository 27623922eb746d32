package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// BotHandler exposes the bot transition engine over HTTP: the admin/control
// surface a meeting platform adapter calls into as it observes real-world
// events (joined, left, heartbeats, ...).
type BotHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func NewBotHandler(e *engine.Engine, logger *zap.Logger) *BotHandler {
	return &BotHandler{engine: e, logger: logger.With(zap.String("handler", "bot"))}
}

// CreateEventRequest is the JSON body for POST /v1/bots/:id/events.
type CreateEventRequest struct {
	EventKind    int            `json:"event_kind" binding:"required"`
	EventSubkind *int           `json:"event_subkind,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (h *BotHandler) CreateEvent(c *gin.Context) {
	botID := c.Param("id")
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var subkind *bot.Subkind
	if req.EventSubkind != nil {
		v := bot.Subkind(*req.EventSubkind)
		subkind = &v
	}

	ev, err := h.engine.Apply(c.Request.Context(), botID, bot.EventKind(req.EventKind), subkind, req.Metadata)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         ev.ID,
		"event_type": ev.Kind.APICode(),
		"old_state":  ev.OldState.APICode(),
		"new_state":  ev.NewState.APICode(),
		"created_at": ev.CreatedAt,
	})
}

// RecordRequestTaken handles POST /v1/bots/:id/requested-action-taken, the
// callback a meeting platform adapter fires once it has actually submitted
// the join/leave/connect/disconnect request the last event recorded.
func (h *BotHandler) RecordRequestTaken(c *gin.Context) {
	botID := c.Param("id")
	if err := h.engine.RecordRequestTaken(c.Request.Context(), botID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *BotHandler) respondError(c *gin.Context, err error) {
	switch {
	case apperr.IsIllegalTransition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsVersionConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsConcurrentStateOverwrite(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case apperr.IsInvalidEventCombination(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsInvariantViolation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("bot event creation failed", zap.String("bot_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
