package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	"github.com/meetbot/lifecycle-engine/internal/interfaces/http/handlers"
)

// BotServer is the admin HTTP surface for the bot lifecycle engine:
// creating events, recording heartbeats, and stamping a requested action
// as taken.
type BotServer struct {
	server *http.Server
	logger *zap.Logger
}

type BotServerConfig struct {
	Host string
	Port int
	Mode string
}

func NewBotServer(cfg BotServerConfig, eng *engine.Engine, heartbeatStore handlers.HeartbeatStore, logger *zap.Logger) *BotServer {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	botHandler := handlers.NewBotHandler(eng, logger)
	heartbeatHandler := handlers.NewHeartbeatHandler(heartbeatStore, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		v1.POST("/bots/:id/events", botHandler.CreateEvent)
		v1.POST("/bots/:id/heartbeat", heartbeatHandler.SetHeartbeat)
		v1.POST("/bots/:id/requested-action-taken", botHandler.RecordRequestTaken)
	}

	return &BotServer{
		server: &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: router},
		logger: logger,
	}
}

func (s *BotServer) Start(ctx context.Context) error {
	s.logger.Info("Starting bot HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("bot HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *BotServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping bot HTTP server")
	return s.server.Shutdown(ctx)
}
