package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MaxDeliveryAttempts bounds how many times the dispatcher retries a single
// delivery before leaving it Failure for operator inspection.
const MaxDeliveryAttempts = 6

// RetryBaseWait is the base of the exponential backoff schedule: with
// MaxDeliveryAttempts = 6 the waits between attempts are 2s, 4s, 8s, 16s,
// 32s.
const RetryBaseWait = 2 * time.Second

// Store is the persistence port the dispatcher needs.
type Store interface {
	SubscriptionsMatching(ctx context.Context, trigger TriggerType, botID string) ([]Subscription, error)
	InsertAttempt(ctx context.Context, a *Attempt) error
	SaveAttempt(ctx context.Context, a *Attempt) error
}

// Dispatcher matches events against subscriptions, creates delivery
// attempts, and drives them to completion with backoff.
type Dispatcher struct {
	store  Store
	sender Sender
	log    *zap.Logger
}

func NewDispatcher(store Store, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, log: logger}
}

// Dispatch creates one delivery attempt per matching subscription and
// delivers it synchronously with retries. Callers that want delivery off
// the request path should invoke this from a worker goroutine (see
// safego.Go in cmd/bot-engine).
func (d *Dispatcher) Dispatch(ctx context.Context, trigger TriggerType, botID string, payload map[string]any) error {
	subs, err := d.store.SubscriptionsMatching(ctx, trigger, botID)
	if err != nil {
		return fmt.Errorf("webhook: list subscriptions: %w", err)
	}
	for _, sub := range subs {
		bid := botID
		attempt := NewAttempt(sub.ID, trigger, &bid, payload)
		if err := d.store.InsertAttempt(ctx, &attempt); err != nil {
			return fmt.Errorf("webhook: insert attempt: %w", err)
		}
		d.deliverWithRetry(ctx, sub, &attempt)
	}
	return nil
}

func (d *Dispatcher) deliverWithRetry(ctx context.Context, sub Subscription, attempt *Attempt) {
	body, err := json.Marshal(attempt.Payload)
	if err != nil {
		d.log.Error("webhook: marshal payload failed", zap.Error(err))
		return
	}
	signature, err := Sign(sub.SigningSecret, attempt.Payload)
	if err != nil {
		d.log.Error("webhook: sign payload failed", zap.Error(err))
		return
	}

	var lastErr error
	for i := 0; i < MaxDeliveryAttempts; i++ {
		if i > 0 {
			wait := RetryBaseWait * (1 << (i - 1))
			d.log.Info("retrying webhook delivery",
				zap.String("subscription_id", sub.ID),
				zap.Int("attempt", i+1),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		now := time.Now()
		attempt.AttemptCount++
		attempt.LastAttemptAt = &now

		status, respBody, sendErr := d.sender.Send(ctx, sub.URL, body, signature)
		AppendResponseBody(attempt, respBody)

		if sendErr == nil && status >= 200 && status < 300 {
			attempt.Status = DeliverySuccess
			succeeded := time.Now()
			attempt.SucceededAt = &succeeded
			_ = d.store.SaveAttempt(ctx, attempt)
			return
		}

		lastErr = sendErr
		if lastErr == nil {
			lastErr = fmt.Errorf("webhook: endpoint returned status %d", status)
		}
		attempt.Status = DeliveryFailure
		_ = d.store.SaveAttempt(ctx, attempt)
	}

	d.log.Warn("webhook delivery exhausted retries",
		zap.String("subscription_id", sub.ID),
		zap.String("idempotency_key", attempt.IdempotencyKey),
		zap.Error(lastErr),
	)
}
