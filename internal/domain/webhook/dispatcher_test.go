package webhook

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

type fakeStore struct {
	subs      []Subscription
	inserted  []*Attempt
	saved     []*Attempt
}

func (f *fakeStore) SubscriptionsMatching(ctx context.Context, trigger TriggerType, botID string) ([]Subscription, error) {
	var out []Subscription
	for _, s := range f.subs {
		if s.Matches(trigger, botID) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAttempt(ctx context.Context, a *Attempt) error {
	f.inserted = append(f.inserted, a)
	return nil
}

func (f *fakeStore) SaveAttempt(ctx context.Context, a *Attempt) error {
	f.saved = append(f.saved, a)
	return nil
}

type fakeSender struct {
	calls    int
	failFor  int
}

func (s *fakeSender) Send(ctx context.Context, url string, body []byte, signature string) (int, string, error) {
	s.calls++
	if s.calls <= s.failFor {
		return 500, "server error", nil
	}
	return 200, "ok", nil
}

func TestDispatch_SucceedsOnFirstTry(t *testing.T) {
	store := &fakeStore{subs: []Subscription{{
		ID: "wh_1", IsActive: true, URL: "https://example.com/hook",
		Triggers: []TriggerType{TriggerBotStateChange}, SigningSecret: "s3cr3t",
	}}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	err := d.Dispatch(context.Background(), TriggerBotStateChange, "bot_1", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one attempt inserted, got %d", len(store.inserted))
	}
	if store.inserted[0].Status != DeliverySuccess {
		t.Errorf("expected success, got %v", store.inserted[0].Status)
	}
	if sender.calls != 1 {
		t.Errorf("expected one send, got %d", sender.calls)
	}
}

func TestDispatch_SkipsInactiveAndMismatchedSubscriptions(t *testing.T) {
	inactiveBot := "bot_other"
	store := &fakeStore{subs: []Subscription{
		{ID: "wh_inactive", IsActive: false, Triggers: []TriggerType{TriggerBotStateChange}},
		{ID: "wh_wrong_bot", IsActive: true, BotID: &inactiveBot, Triggers: []TriggerType{TriggerBotStateChange}},
		{ID: "wh_wrong_trigger", IsActive: true, Triggers: []TriggerType{TriggerChatMessagesUpdate}},
	}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	_ = d.Dispatch(context.Background(), TriggerBotStateChange, "bot_1", map[string]any{})
	if len(store.inserted) != 0 {
		t.Errorf("expected no attempts, got %d", len(store.inserted))
	}
}

func TestSign_IsDeterministic(t *testing.T) {
	payload := map[string]any{"a": 1}
	sig1, err := Sign("secret", payload)
	if err != nil {
		t.Fatal(err)
	}
	sig2, _ := Sign("secret", payload)
	if sig1 != sig2 {
		t.Errorf("expected deterministic signature for identical payload")
	}
	sig3, _ := Sign("other-secret", payload)
	if sig1 == sig3 {
		t.Errorf("expected different secrets to produce different signatures")
	}
}
