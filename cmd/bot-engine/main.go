// Command bot-engine runs the bot session lifecycle engine: its HTTP and
// gRPC admin surfaces, the webhook dispatcher, and the underlying
// persistence layer.
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meetbot/lifecycle-engine/internal/domain/alert"
	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
	"github.com/meetbot/lifecycle-engine/internal/domain/webhook"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/config"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/eventbus"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/logger"
	"github.com/meetbot/lifecycle-engine/internal/infrastructure/persistence"
	ihttp "github.com/meetbot/lifecycle-engine/internal/interfaces/http"
	"github.com/meetbot/lifecycle-engine/internal/interfaces/botgrpc"
	"github.com/meetbot/lifecycle-engine/pkg/safego"
)

const (
	appName    = "bot-engine"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("%s v%s\n", appName, appVersion)
			return
		case "help", "--help", "-h":
			fmt.Printf("Usage:\n  %s           Start the bot engine\n  %s version   Show version\n", appName, appName)
			return
		}
	}

	log, err := logger.NewLogger(logger.Config{Level: "info", Format: "json", OutputPath: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	store := persistence.NewBotStore(db)

	bus := eventbus.NewInMemoryBus(log, 256)
	defer bus.Close()
	busAdapter := eventbus.NewBotBusAdapter(bus)

	alertSink := alert.NewSlackSink(cfg.BotEngine.Alert.SlackWebhookURL, cfg.BotEngine.Alert.SiteDomain, log)

	eng := engine.New(store, alertSink, busAdapter, log)

	sender := &httpSender{client: &http.Client{Timeout: 10 * time.Second}}
	dispatcher := webhook.NewDispatcher(store, sender, log)
	eventbus.SubscribeStateChange(bus, func(ctx context.Context, payload engine.StateChangePayload) {
		safego.Go(log, "webhook-dispatch", func() {
			meta := map[string]any{
				"event_type":     payload.EventKind.APICode(),
				"event_metadata": payload.Metadata,
				"old_state":      payload.OldState.APICode(),
				"new_state":      payload.NewState.APICode(),
				"created_at":     payload.CreatedAt,
			}
			if payload.EventSubkind != nil {
				meta["event_sub_type"] = payload.EventSubkind.APICode()
			}
			if err := dispatcher.Dispatch(context.Background(), webhook.TriggerBotStateChange, payload.BotID, meta); err != nil {
				log.Error("webhook dispatch failed", zap.String("bot_id", payload.BotID), zap.Error(err))
			}
		})
	})

	httpServer := ihttp.NewBotServer(ihttp.BotServerConfig{
		Host: cfg.BotEngine.HTTP.Host,
		Port: cfg.BotEngine.HTTP.Port,
		Mode: cfg.BotEngine.HTTP.Mode,
	}, eng, store, log)

	grpcServer := botgrpc.NewServer(eng, store, cfg.BotEngine.GRPCPort, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := httpServer.Start(ctx); err != nil {
		log.Fatal("failed to start bot HTTP server", zap.Error(err))
	}
	if err := grpcServer.Start(); err != nil {
		log.Fatal("failed to start bot gRPC server", zap.Error(err))
	}

	log.Info("bot engine started", zap.String("version", appVersion))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	grpcServer.Stop()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
}

// httpSender is the production webhook.Sender: a plain net/http POST with
// the HMAC signature attached as a header for the receiver to verify.
type httpSender struct {
	client *http.Client
}

func (s *httpSender) Send(ctx context.Context, url string, body []byte, signature string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n]), nil
}
