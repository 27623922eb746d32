// Package webhook implements the outbound webhook dispatcher: matching a
// bot event against a project's subscriptions, signing and delivering the
// payload, and retrying failed deliveries with exponential backoff.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TriggerType identifies which kind of event a subscription wants delivered.
type TriggerType int

const (
	TriggerBotStateChange                 TriggerType = 1
	TriggerTranscriptUpdate                TriggerType = 2
	TriggerChatMessagesUpdate               TriggerType = 3
	TriggerParticipantEventsJoinLeave       TriggerType = 4
	TriggerCalendarEventsUpdate             TriggerType = 5
	TriggerCalendarStateChange              TriggerType = 6
	TriggerAsyncTranscriptionStateChange    TriggerType = 7
	TriggerZoomOAuthConnectionStateChange   TriggerType = 8
	TriggerBotLogsUpdate                    TriggerType = 9
	TriggerParticipantEventsAll             TriggerType = 10
)

var triggerAPICodes = map[TriggerType]string{
	TriggerBotStateChange:               "bot.state_change",
	TriggerTranscriptUpdate:             "transcript.update",
	TriggerChatMessagesUpdate:           "chat_messages.update",
	TriggerParticipantEventsJoinLeave:   "participant_events.join_leave",
	TriggerCalendarEventsUpdate:         "calendar.events_update",
	TriggerCalendarStateChange:          "calendar.state_change",
	TriggerAsyncTranscriptionStateChange: "async_transcription.state_change",
	TriggerZoomOAuthConnectionStateChange: "zoom_oauth_connection.state_change",
	TriggerBotLogsUpdate:                "bot_logs.update",
	TriggerParticipantEventsAll:         "participant_events.all",
}

func (t TriggerType) APICode() string {
	if c, ok := triggerAPICodes[t]; ok {
		return c
	}
	return "unknown"
}

// DeliveryStatus is the lifecycle of a single delivery attempt row.
type DeliveryStatus int

const (
	DeliveryPending DeliveryStatus = 1
	DeliverySuccess DeliveryStatus = 2
	DeliveryFailure DeliveryStatus = 3
)

// Subscription is a project- or bot-scoped webhook endpoint.
type Subscription struct {
	ID            string
	ProjectID     string
	BotID         *string // nil means "all bots in the project"
	URL           string
	Triggers      []TriggerType
	SigningSecret string
	IsActive      bool
}

// Matches reports whether this subscription should receive an event of the
// given trigger type for the given bot.
func (s Subscription) Matches(trigger TriggerType, botID string) bool {
	if !s.IsActive {
		return false
	}
	if s.BotID != nil && *s.BotID != botID {
		return false
	}
	for _, t := range s.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// Attempt is one outbound delivery attempt, retried in place (attempt_count
// increments, idempotency_key stays fixed) until it succeeds or the backoff
// schedule is exhausted.
type Attempt struct {
	ID               string
	SubscriptionID   string
	Trigger          TriggerType
	IdempotencyKey   string
	BotID            *string
	Payload          map[string]any
	Status           DeliveryStatus
	AttemptCount     int
	LastAttemptAt    *time.Time
	SucceededAt      *time.Time
	ResponseBodies   []string
}

// NewAttempt builds a fresh, never-yet-sent delivery attempt with a random
// idempotency key so retries and at-least-once redelivery are safely
// deduplicatable by the receiving endpoint.
func NewAttempt(subscriptionID string, trigger TriggerType, botID *string, payload map[string]any) Attempt {
	return Attempt{
		SubscriptionID: subscriptionID,
		Trigger:        trigger,
		IdempotencyKey: uuid.NewString(),
		BotID:          botID,
		Payload:        payload,
		Status:         DeliveryPending,
	}
}

// Sign computes the HMAC-SHA256 signature of the JSON-encoded payload under
// the subscription's signing secret, hex-encoded the way the receiving
// endpoint is expected to verify it (compare against an
// "X-Webhook-Signature" header).
func Sign(secret string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// AppendResponseBody records one more entry in the attempt's ordered,
// append-only response history, kept for operator debugging.
func AppendResponseBody(a *Attempt, body string) {
	a.ResponseBodies = append(a.ResponseBodies, body)
}

// Sender performs the actual HTTP delivery. cmd/bot-engine's httpSender is
// the implementation backed by net/http; tests use a fake.
type Sender interface {
	Send(ctx context.Context, url string, body []byte, signature string) (statusCode int, responseBody string, err error)
}
