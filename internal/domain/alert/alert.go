// Package alert notifies operators when a bot enters FATAL_ERROR. The
// default implementation posts to a Slack incoming webhook, matching the
// source system's SLACK_WEBHOOK_URL-gated behavior; it's a no-op when no
// URL is configured.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
)

// Sink is the fatal-error alert interface; it has the same method set as
// engine.AlertSink, the port engine.Engine depends on.
type Sink interface {
	NotifyFatalError(ctx context.Context, payload engine.FatalErrorPayload) error
}

// SlackSink posts a formatted message to a Slack incoming webhook URL. A
// zero-value URL makes NotifyFatalError a no-op, so the engine can always be
// wired to a SlackSink even in environments with no alerting configured.
type SlackSink struct {
	WebhookURL string
	SiteDomain string
	client     *http.Client
	log        *zap.Logger
}

func NewSlackSink(webhookURL, siteDomain string, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		WebhookURL: webhookURL,
		SiteDomain: siteDomain,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        logger,
	}
}

type slackMessage struct {
	Text string `json:"text"`
}

func (s *SlackSink) NotifyFatalError(ctx context.Context, payload engine.FatalErrorPayload) error {
	if s.WebhookURL == "" {
		return nil
	}
	text := fmt.Sprintf("Bot %s entered fatal_error (%s) on %s", payload.BotID, payload.SubkindCode, s.SiteDomain)
	body, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("alert: marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert: post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert: slack responded with status %d", resp.StatusCode)
	}
	return nil
}
