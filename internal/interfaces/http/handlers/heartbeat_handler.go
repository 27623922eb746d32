package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeartbeatStore is the narrow persistence port the heartbeat endpoint
// needs; satisfied by persistence.BotStore.
type HeartbeatStore interface {
	SetHeartbeat(ctx context.Context, botID string, currentTimestamp int64) error
}

type HeartbeatHandler struct {
	store  HeartbeatStore
	logger *zap.Logger
}

func NewHeartbeatHandler(store HeartbeatStore, logger *zap.Logger) *HeartbeatHandler {
	return &HeartbeatHandler{store: store, logger: logger.With(zap.String("handler", "heartbeat"))}
}

// SetHeartbeat handles POST /v1/bots/:id/heartbeat.
func (h *HeartbeatHandler) SetHeartbeat(c *gin.Context) {
	botID := c.Param("id")
	if err := h.store.SetHeartbeat(c.Request.Context(), botID, time.Now().Unix()); err != nil {
		h.logger.Error("set heartbeat failed", zap.String("bot_id", botID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
