package engine

import (
	"context"
	"testing"
	"time"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/heartbeat"
	"github.com/meetbot/lifecycle-engine/internal/domain/recording"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

type fakeStore struct {
	snap       BotSnapshot
	lastEvent  *EventRecord
	events     []*EventRecord
	recordings map[string]RecordingSnapshot
	ledgerCalls []int64
	conflictOnce bool
	// overwriteAfterCAS, when non-zero, simulates a writer that clobbered the
	// just-committed state by the time the engine re-reads the row.
	overwriteAfterCAS bot.State
	loadCount         int
}

func newFakeStore(state bot.State) *fakeStore {
	return &fakeStore{
		snap:       BotSnapshot{ID: "bot_1", State: state, Version: 1, OrganizationID: "org_1", BillingEnabled: true},
		recordings: map[string]RecordingSnapshot{},
	}
}

func (f *fakeStore) LoadBotForUpdate(ctx context.Context, botID string) (*BotSnapshot, error) {
	f.loadCount++
	cp := f.snap
	if f.overwriteAfterCAS != 0 && f.loadCount == 2 {
		cp.State = f.overwriteAfterCAS
	}
	return &cp, nil
}

func (f *fakeStore) LastEvent(ctx context.Context, botID string) (*EventRecord, error) {
	return f.lastEvent, nil
}

func (f *fakeStore) CompareAndSwapState(ctx context.Context, botID string, expectedVersion int, newState bot.State, metadata map[string]any) error {
	if f.conflictOnce {
		f.conflictOnce = false
		return apperr.NewVersionConflictError("stale version")
	}
	if expectedVersion != f.snap.Version {
		return apperr.NewVersionConflictError("stale version")
	}
	f.snap.State = newState
	f.snap.Version++
	return nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, ev *EventRecord) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) RecordingsInStates(ctx context.Context, botID string, states []recording.State) ([]RecordingSnapshot, error) {
	var out []RecordingSnapshot
	for _, r := range f.recordings {
		for _, s := range states {
			if r.State == s {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SaveRecording(ctx context.Context, rec RecordingSnapshot) error {
	f.recordings[rec.ID] = rec
	return nil
}

func (f *fakeStore) RecordingsWithFailedTranscription(ctx context.Context, botID string) ([]RecordingSnapshot, error) {
	var out []RecordingSnapshot
	for _, r := range f.recordings {
		if r.TranscriptionState == recording.TranscriptionStateFailed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendLedgerTransaction(ctx context.Context, orgID, botID string, delta int64, description string) error {
	f.ledgerCalls = append(f.ledgerCalls, delta)
	return nil
}

func (f *fakeStore) MarkRequestedActionTaken(ctx context.Context, eventID string, at time.Time) error {
	for _, ev := range f.events {
		if ev.ID == eventID {
			if ev.RequestedActionTakenAt != nil {
				return apperr.NewInvalidInputError("already taken")
			}
			stamped := at
			ev.RequestedActionTakenAt = &stamped
			return nil
		}
	}
	if f.lastEvent != nil && f.lastEvent.ID == eventID {
		if f.lastEvent.RequestedActionTakenAt != nil {
			return apperr.NewInvalidInputError("already taken")
		}
		stamped := at
		f.lastEvent.RequestedActionTakenAt = &stamped
		return nil
	}
	return apperr.NewNotFoundError("event not found: " + eventID)
}

type fakeBus struct {
	published []StateChangePayload
}

func (b *fakeBus) PublishStateChange(ctx context.Context, payload StateChangePayload) {
	b.published = append(b.published, payload)
}

type fakeAlert struct {
	notified []FatalErrorPayload
}

func (a *fakeAlert) NotifyFatalError(ctx context.Context, payload FatalErrorPayload) error {
	a.notified = append(a.notified, payload)
	return nil
}

func TestApply_SimpleTransition(t *testing.T) {
	store := newFakeStore(bot.StateReady)
	bus := &fakeBus{}
	e := New(store, &fakeAlert{}, bus, nil)

	ev, err := e.Apply(context.Background(), "bot_1", bot.EventJoinRequested, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.NewState != bot.StateJoining {
		t.Errorf("got %s, want %s", ev.NewState, bot.StateJoining)
	}
	if store.snap.State != bot.StateJoining {
		t.Errorf("store state not updated")
	}
	if len(bus.published) != 1 {
		t.Errorf("expected one bus publish, got %d", len(bus.published))
	}
}

func TestApply_IllegalTransition(t *testing.T) {
	store := newFakeStore(bot.StateEnded)
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	_, err := e.Apply(context.Background(), "bot_1", bot.EventJoinRequested, nil, nil)
	if !apperr.IsIllegalTransition(err) {
		t.Errorf("expected illegal transition error, got %v", err)
	}
}

func TestApply_RetriesOnVersionConflict(t *testing.T) {
	store := newFakeStore(bot.StateReady)
	store.conflictOnce = true
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	_, err := e.Apply(context.Background(), "bot_1", bot.EventJoinRequested, nil, nil)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
}

func TestApply_FatalErrorNotifiesAlertSink(t *testing.T) {
	store := newFakeStore(bot.StateJoining)
	alert := &fakeAlert{}
	e := New(store, alert, &fakeBus{}, nil)

	sub := bot.SubkindFatalErrorHeartbeatTimeout
	_, err := e.Apply(context.Background(), "bot_1", bot.EventFatalError, &sub, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alert.notified) != 1 {
		t.Fatalf("expected alert sink to be notified once, got %d", len(alert.notified))
	}
	if alert.notified[0].SubkindCode != "heartbeat_timeout" {
		t.Errorf("got %s, want heartbeat_timeout", alert.notified[0].SubkindCode)
	}
}

func TestApply_PostMeetingTransitionBooksCredits(t *testing.T) {
	store := newFakeStore(bot.StatePostProcessing)
	first, last := int64(0), int64(3600)
	store.snap.Heartbeat = heartbeat.Snapshot{First: &first, Last: &last}
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	_, err := e.Apply(context.Background(), "bot_1", bot.EventPostProcessingCompleted, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.ledgerCalls) != 1 {
		t.Fatalf("expected one ledger call, got %d", len(store.ledgerCalls))
	}
	if store.ledgerCalls[0] != -100 {
		t.Errorf("got delta %d, want -100", store.ledgerCalls[0])
	}
}

func TestApply_RejectsUndeclaredSubkindCombination(t *testing.T) {
	store := newFakeStore(bot.StateReady)
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	sub := bot.SubkindFatalErrorHeartbeatTimeout
	_, err := e.Apply(context.Background(), "bot_1", bot.EventJoinRequested, &sub, nil)
	if !apperr.IsInvalidEventCombination(err) {
		t.Errorf("expected invalid event combination error, got %v", err)
	}
}

func TestApply_StagedRequiresMatchingJoinAt(t *testing.T) {
	store := newFakeStore(bot.StateScheduled)
	joinAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store.snap.JoinAt = &joinAt
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	if _, err := e.Apply(context.Background(), "bot_1", bot.EventStaged, nil, nil); !apperr.IsInvariantViolation(err) {
		t.Errorf("expected invariant violation when metadata.join_at is missing, got %v", err)
	}

	meta := map[string]any{"join_at": joinAt.Format(time.RFC3339)}
	if _, err := e.Apply(context.Background(), "bot_1", bot.EventStaged, nil, meta); err != nil {
		t.Errorf("unexpected error with matching join_at: %v", err)
	}
}

func TestApply_StagedRejectsMismatchedJoinAt(t *testing.T) {
	store := newFakeStore(bot.StateScheduled)
	joinAt := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	store.snap.JoinAt = &joinAt
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	meta := map[string]any{"join_at": joinAt.Add(time.Hour).Format(time.RFC3339)}
	if _, err := e.Apply(context.Background(), "bot_1", bot.EventStaged, nil, meta); !apperr.IsInvariantViolation(err) {
		t.Errorf("expected invariant violation for mismatched join_at, got %v", err)
	}
}

func TestApply_ConcurrentStateOverwriteDetected(t *testing.T) {
	store := newFakeStore(bot.StateReady)
	store.overwriteAfterCAS = bot.StateFatalError
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	_, err := e.Apply(context.Background(), "bot_1", bot.EventJoinRequested, nil, nil)
	if !apperr.IsConcurrentStateOverwrite(err) {
		t.Errorf("expected concurrent state overwrite error, got %v", err)
	}
}

func TestRecordRequestTaken_StampsMatchingRequest(t *testing.T) {
	store := newFakeStore(bot.StateJoining)
	store.lastEvent = &EventRecord{ID: "evt_1", Kind: bot.EventJoinRequested}
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	if err := e.RecordRequestTaken(context.Background(), "bot_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastEvent.RequestedActionTakenAt == nil {
		t.Error("expected requested_action_taken_at to be stamped")
	}
}

func TestRecordRequestTaken_RejectsWrongLastEvent(t *testing.T) {
	store := newFakeStore(bot.StateJoining)
	store.lastEvent = &EventRecord{ID: "evt_1", Kind: bot.EventBotPutInWaitingRoom}
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	if err := e.RecordRequestTaken(context.Background(), "bot_1"); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestRecordRequestTaken_RejectsAlreadyTaken(t *testing.T) {
	store := newFakeStore(bot.StateJoining)
	taken := time.Now()
	store.lastEvent = &EventRecord{ID: "evt_1", Kind: bot.EventJoinRequested, RequestedActionTakenAt: &taken}
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	if err := e.RecordRequestTaken(context.Background(), "bot_1"); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestRecordRequestTaken_RejectsIneligibleState(t *testing.T) {
	store := newFakeStore(bot.StateJoinedRecording)
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	if err := e.RecordRequestTaken(context.Background(), "bot_1"); !apperr.IsInvalidInput(err) {
		t.Errorf("expected invalid input error, got %v", err)
	}
}

func TestApply_FatalErrorDoesNotIncurCharges(t *testing.T) {
	store := newFakeStore(bot.StateJoining)
	first, last := int64(0), int64(3600)
	store.snap.Heartbeat = heartbeat.Snapshot{First: &first, Last: &last}
	e := New(store, &fakeAlert{}, &fakeBus{}, nil)

	sub := bot.SubkindFatalErrorHeartbeatTimeout
	_, err := e.Apply(context.Background(), "bot_1", bot.EventFatalError, &sub, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.ledgerCalls) != 0 {
		t.Errorf("fatal error should never book credits, got %d calls", len(store.ledgerCalls))
	}
}
