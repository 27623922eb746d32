package eventbus

import (
	"context"

	"github.com/meetbot/lifecycle-engine/internal/domain/engine"
)

// EventTypeBotStateChange is the Bus event type every committed bot
// transition is published under.
const EventTypeBotStateChange = "bot.state_change"

// BotBusAdapter satisfies engine.Bus by wrapping a generic Bus, so the
// engine package never needs to know about this package's Event envelope.
type BotBusAdapter struct {
	bus Bus
}

func NewBotBusAdapter(bus Bus) *BotBusAdapter {
	return &BotBusAdapter{bus: bus}
}

var _ engine.Bus = (*BotBusAdapter)(nil)

func (a *BotBusAdapter) PublishStateChange(ctx context.Context, payload engine.StateChangePayload) {
	a.bus.Publish(ctx, NewEvent(EventTypeBotStateChange, payload))
}

// SubscribeStateChange is a typed convenience wrapper around Bus.Subscribe
// for handlers that only care about bot state changes, e.g. the webhook
// dispatcher.
func SubscribeStateChange(bus Bus, handler func(ctx context.Context, payload engine.StateChangePayload)) {
	bus.Subscribe(EventTypeBotStateChange, func(ctx context.Context, event Event) {
		payload, ok := event.Payload().(engine.StateChangePayload)
		if !ok {
			return
		}
		handler(ctx, payload)
	})
}
