// Package engine implements the bot transition engine: the single entry
// point through which a bot's state is ever changed. It enforces the
// transition table, runs the ordered side-effect hooks, and persists the
// resulting BotEvent atomically with the state change.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meetbot/lifecycle-engine/internal/domain/bot"
	"github.com/meetbot/lifecycle-engine/internal/domain/heartbeat"
	"github.com/meetbot/lifecycle-engine/internal/domain/ledger"
	"github.com/meetbot/lifecycle-engine/internal/domain/recording"
	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// MaxApplyRetries bounds the optimistic-concurrency retry loop around a
// single Apply call.
const MaxApplyRetries = 3

// BotSnapshot is the subset of a bot row the engine needs to decide and
// record a transition.
type BotSnapshot struct {
	ID              string
	State           bot.State
	Version         int
	OrganizationID  string
	BillingEnabled  bool
	JoinAt          *time.Time
	Heartbeat       heartbeat.Snapshot
	RecordingKind   recording.Kind
}

// EventRecord is the durable record created for every successful transition.
type EventRecord struct {
	ID                     string
	BotID                  string
	Kind                   bot.EventKind
	Subkind                *bot.Subkind
	OldState               bot.State
	NewState               bot.State
	Metadata               map[string]any
	CreatedAt              time.Time
	RequestedActionTakenAt *time.Time
}

// RecordingSnapshot is the subset of a recording row the engine's hooks act
// on.
type RecordingSnapshot struct {
	ID                      string
	State                   recording.State
	TranscriptionState      recording.TranscriptionState
	HasFile                 bool
	HasInProgressUtterance  bool
	DistinctFailureReasons  []string
}

// Store is the persistence port the engine depends on. persistence.BotStore
// is the GORM-backed implementation; tests use an in-memory fake.
type Store interface {
	// LoadBotForUpdate returns the current bot snapshot. Implementations
	// should read-your-writes within the surrounding transaction.
	LoadBotForUpdate(ctx context.Context, botID string) (*BotSnapshot, error)
	// LastEvent returns the most recently recorded event for the bot, or
	// nil if none exists yet.
	LastEvent(ctx context.Context, botID string) (*EventRecord, error)
	// CompareAndSwapState persists newState iff the row's version still
	// equals expectedVersion, returning apperr with CodeVersionConflict
	// otherwise.
	CompareAndSwapState(ctx context.Context, botID string, expectedVersion int, newState bot.State, metadata map[string]any) error
	InsertEvent(ctx context.Context, ev *EventRecord) error
	// MarkRequestedActionTaken stamps the given event's
	// requested_action_taken_at, failing iff it is already set.
	MarkRequestedActionTaken(ctx context.Context, eventID string, at time.Time) error

	RecordingsInStates(ctx context.Context, botID string, states []recording.State) ([]RecordingSnapshot, error)
	SaveRecording(ctx context.Context, rec RecordingSnapshot) error
	RecordingsWithFailedTranscription(ctx context.Context, botID string) ([]RecordingSnapshot, error)

	// AppendLedgerTransaction books a (possibly negative) centicredit delta
	// against the bot's organization, internally finding the current leaf
	// transaction and retrying on conflict per ledger.MaxCreateRetries.
	AppendLedgerTransaction(ctx context.Context, orgID string, botID string, delta int64, description string) error
}

// AlertSink is notified when a bot transitions into FATAL_ERROR, mirroring
// the source system's operator Slack alert.
type AlertSink interface {
	NotifyFatalError(ctx context.Context, payload FatalErrorPayload) error
}

// Bus is the minimal publish surface the engine needs from the event bus;
// satisfied by eventbus.Bus without importing it directly here, keeping the
// engine package decoupled from the bus's own event envelope type.
type Bus interface {
	PublishStateChange(ctx context.Context, payload StateChangePayload)
}

// StateChangePayload is published on the bus after every committed
// transition, letting the webhook dispatcher (and anything else) react
// without the engine knowing webhooks exist.
type StateChangePayload struct {
	BotID          string
	EventKind      bot.EventKind
	EventSubkind   *bot.Subkind
	OldState       bot.State
	NewState       bot.State
	Metadata       map[string]any
	CreatedAt      time.Time
}

// FatalErrorPayload carries what the operator alert sink needs to render an
// incident notification.
type FatalErrorPayload struct {
	BotID         string
	SubkindCode   string
	EventMetadata map[string]any
}

// Engine is the bot transition engine.
type Engine struct {
	store Store
	alert AlertSink
	bus   Bus
	clock func() time.Time
	log   *zap.Logger
}

func New(store Store, alert AlertSink, bus Bus, logger *zap.Logger) *Engine {
	return &Engine{store: store, alert: alert, bus: bus, clock: time.Now, log: logger}
}

// Apply is the engine's single entry point: create the event, move the bot,
// run its hooks, all retried up to MaxApplyRetries times against optimistic
// version conflicts.
func (e *Engine) Apply(ctx context.Context, botID string, kind bot.EventKind, subkind *bot.Subkind, metadata map[string]any) (*EventRecord, error) {
	var lastErr error
	for attempt := 0; attempt < MaxApplyRetries; attempt++ {
		ev, err := e.applyOnce(ctx, botID, kind, subkind, metadata)
		if err == nil {
			return ev, nil
		}
		if !apperr.IsVersionConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperr.NewVersionConflictError(fmt.Sprintf("bot %s: exhausted %d retries: %v", botID, MaxApplyRetries, lastErr))
}

func (e *Engine) applyOnce(ctx context.Context, botID string, kind bot.EventKind, subkind *bot.Subkind, metadata map[string]any) (*EventRecord, error) {
	snap, err := e.store.LoadBotForUpdate(ctx, botID)
	if err != nil {
		return nil, err
	}
	oldState := snap.State

	entry, ok := bot.Transitions[kind]
	if !ok {
		return nil, apperr.NewUndefinedEventError(kind.APICode())
	}
	if err := bot.ValidateCombination(kind, subkind); err != nil {
		return nil, apperr.NewInvalidEventCombinationError(fmt.Sprintf("bot %s: %v", botID, err))
	}
	if !stateIn(oldState, entry.From) {
		return nil, apperr.NewIllegalTransitionError(kind.APICode(), oldState.APICode(), apiCodes(entry.From))
	}

	var lastEventKind bot.EventKind
	var lastEventOldState bot.State
	if last, err := e.store.LastEvent(ctx, botID); err != nil {
		return nil, err
	} else if last != nil {
		lastEventKind, lastEventOldState = last.Kind, last.OldState
	}

	newState, err := entry.To.Resolve(lastEventKind, lastEventOldState)
	if err != nil {
		return nil, apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: %v", botID, err))
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	if err := e.runPreSaveHooks(ctx, snap, kind, newState, metadata); err != nil {
		return nil, err
	}

	if err := e.store.CompareAndSwapState(ctx, botID, snap.Version, newState, metadata); err != nil {
		return nil, err
	}

	// The compare-and-swap above only guards against a stale version at the
	// moment of the write; re-read the row to catch a writer that bypassed
	// the version check entirely (e.g. a direct out-of-band update) and
	// clobbered the state we just committed.
	verify, err := e.store.LoadBotForUpdate(ctx, botID)
	if err != nil {
		return nil, err
	}
	if verify.State != newState {
		return nil, apperr.NewConcurrentStateOverwriteError(fmt.Sprintf("bot %s: expected state %q after commit, found %q", botID, newState.APICode(), verify.State.APICode()))
	}

	if err := e.runPostSaveHooks(ctx, snap, kind, subkind, oldState, newState, metadata); err != nil {
		return nil, err
	}

	transitionedToPostMeeting := bot.IsPostMeetingState(newState) && !bot.IsPostMeetingState(oldState)
	if transitionedToPostMeeting {
		if err := e.afterTransitionToPostMeetingState(ctx, snap, kind, metadata); err != nil {
			return nil, err
		}
	}

	ev := &EventRecord{
		BotID:     botID,
		Kind:      kind,
		Subkind:   subkind,
		OldState:  oldState,
		NewState:  newState,
		Metadata:  metadata,
		CreatedAt: e.clock(),
	}
	if err := e.store.InsertEvent(ctx, ev); err != nil {
		return nil, err
	}

	e.bus.PublishStateChange(ctx, StateChangePayload{
		BotID:        botID,
		EventKind:    kind,
		EventSubkind: subkind,
		OldState:     oldState,
		NewState:     newState,
		Metadata:     metadata,
		CreatedAt:    ev.CreatedAt,
	})

	return ev, nil
}

// requesterEventForState names, for every state a bot sits in while a
// requested action is in flight, the event kind that must have put it there.
var requesterEventForState = map[bot.State]bot.EventKind{
	bot.StateJoining:       bot.EventJoinRequested,
	bot.StateLeaving:       bot.EventLeaveRequested,
	bot.StateConnecting:    bot.EventAppSessionConnectionRequested,
	bot.StateDisconnecting: bot.EventAppSessionDisconnectRequested,
}

// RecordRequestTaken stamps the bot's last event with the moment its
// requested action (join, leave, connect, disconnect) was actually carried
// out by the media adapter. It is a pure bookkeeping operation: it never
// moves the bot's state, since the state transition itself is reported
// separately via Apply once the platform confirms the action completed.
func (e *Engine) RecordRequestTaken(ctx context.Context, botID string) error {
	snap, err := e.store.LoadBotForUpdate(ctx, botID)
	if err != nil {
		return err
	}
	expected, ok := requesterEventForState[snap.State]
	if !ok {
		return apperr.NewInvalidInputError(fmt.Sprintf("bot %s: requested-action-taken is not valid from state %q", botID, snap.State.APICode()))
	}

	last, err := e.store.LastEvent(ctx, botID)
	if err != nil {
		return err
	}
	if last == nil || last.Kind != expected {
		return apperr.NewInvalidInputError(fmt.Sprintf("bot %s: last event is not the expected %q request", botID, expected.APICode()))
	}
	if last.RequestedActionTakenAt != nil {
		return apperr.NewInvalidInputError(fmt.Sprintf("bot %s: requested action was already taken at %s", botID, last.RequestedActionTakenAt.Format(time.RFC3339)))
	}

	return e.store.MarkRequestedActionTaken(ctx, last.ID, e.clock())
}

func stateIn(s bot.State, set []bot.State) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func apiCodes(states []bot.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.APICode()
	}
	return out
}

// runPreSaveHooks validates invariants that must hold before the new state
// is committed (currently just the STAGED join_at check).
func (e *Engine) runPreSaveHooks(ctx context.Context, snap *BotSnapshot, kind bot.EventKind, newState bot.State, metadata map[string]any) error {
	if newState == bot.StateStaged {
		metaJoinAt, present, err := metadataJoinAt(metadata)
		if err != nil {
			return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: %v", snap.ID, err))
		}
		if !present || snap.JoinAt == nil || !metaJoinAt.Equal(*snap.JoinAt) {
			return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: entering STAGED requires metadata.join_at to match the bot's scheduled join_at", snap.ID))
		}
	}
	return nil
}

// metadataJoinAt extracts and parses event_metadata["join_at"], accepting
// either an RFC3339 timestamp string or a Unix epoch-seconds number (JSON
// decodes numeric literals as float64).
func metadataJoinAt(metadata map[string]any) (t time.Time, present bool, err error) {
	raw, ok := metadata["join_at"]
	if !ok || raw == nil {
		return time.Time{}, false, nil
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, true, fmt.Errorf("metadata.join_at %q is not RFC3339: %w", v, err)
		}
		return parsed, true, nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), true, nil
	default:
		return time.Time{}, true, fmt.Errorf("metadata.join_at has unsupported type %T", raw)
	}
}

// runPostSaveHooks runs the ordered hooks that react to a newly-committed
// state, mirroring the source system's fixed hook ordering: joined_recording,
// connected (delegates to the same hook), joined_recording_paused,
// joined_recording_permission_denied, fatal_error.
func (e *Engine) runPostSaveHooks(ctx context.Context, snap *BotSnapshot, kind bot.EventKind, subkind *bot.Subkind, oldState, newState bot.State, metadata map[string]any) error {
	switch newState {
	case bot.StateJoinedRecording, bot.StateConnected:
		if err := e.afterNewStateIsJoinedRecording(ctx, snap, kind); err != nil {
			return err
		}
	case bot.StateJoinedRecordingPaused:
		if err := e.afterNewStateIsJoinedRecordingPaused(ctx, snap); err != nil {
			return err
		}
	case bot.StateJoinedRecordingPermissionDenied:
		if err := e.afterNewStateIsJoinedRecordingPermissionDenied(ctx, snap); err != nil {
			return err
		}
	}
	if newState == bot.StateFatalError {
		e.afterNewStateIsFatalError(ctx, snap, subkind, metadata)
	}
	return nil
}

// afterNewStateIsJoinedRecording resumes/starts the bot's single active
// recording. Breakout-room events are exempt from the "exactly one" check
// because the bot briefly has zero eligible recordings while in transit.
func (e *Engine) afterNewStateIsJoinedRecording(ctx context.Context, snap *BotSnapshot, kind bot.EventKind) error {
	recs, err := e.store.RecordingsInStates(ctx, snap.ID, []recording.State{recording.StateNotStarted, recording.StatePaused})
	if err != nil {
		return err
	}
	isBreakoutEvent := kind == bot.EventBotJoinedBreakoutRoom || kind == bot.EventBotLeftBreakoutRoom
	if len(recs) == 0 {
		if isBreakoutEvent {
			return nil
		}
		return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: expected exactly one resumable recording, found 0", snap.ID))
	}
	if len(recs) != 1 {
		return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: expected exactly one resumable recording, found %d", snap.ID, len(recs)))
	}
	rec := recs[0]
	dom := recording.Recording{State: rec.State, TranscriptionState: rec.TranscriptionState, HasFile: rec.HasFile}
	if err := recording.SetInProgress(&dom); err != nil {
		return err
	}
	return e.store.SaveRecording(ctx, RecordingSnapshot{ID: rec.ID, State: dom.State, TranscriptionState: dom.TranscriptionState, HasFile: dom.HasFile})
}

func (e *Engine) afterNewStateIsJoinedRecordingPaused(ctx context.Context, snap *BotSnapshot) error {
	recs, err := e.store.RecordingsInStates(ctx, snap.ID, []recording.State{recording.StateInProgress})
	if err != nil {
		return err
	}
	if len(recs) != 1 {
		return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: expected exactly one in-progress recording to pause, found %d", snap.ID, len(recs)))
	}
	rec := recs[0]
	dom := recording.Recording{State: rec.State, TranscriptionState: rec.TranscriptionState, HasFile: rec.HasFile}
	if err := recording.SetPaused(&dom); err != nil {
		return err
	}
	return e.store.SaveRecording(ctx, RecordingSnapshot{ID: rec.ID, State: dom.State, TranscriptionState: dom.TranscriptionState, HasFile: dom.HasFile})
}

// afterNewStateIsJoinedRecordingPermissionDenied demotes the bot's
// in-progress recording to paused, tolerating the case where no recording
// was in progress at all (e.g. the bot never had permission to begin with).
func (e *Engine) afterNewStateIsJoinedRecordingPermissionDenied(ctx context.Context, snap *BotSnapshot) error {
	recs, err := e.store.RecordingsInStates(ctx, snap.ID, []recording.State{recording.StateInProgress})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if len(recs) != 1 {
		return apperr.NewInvariantViolationError(fmt.Sprintf("bot %s: expected at most one in-progress recording, found %d", snap.ID, len(recs)))
	}
	rec := recs[0]
	dom := recording.Recording{State: rec.State, TranscriptionState: rec.TranscriptionState, HasFile: rec.HasFile}
	if err := recording.SetPaused(&dom); err != nil {
		return err
	}
	return e.store.SaveRecording(ctx, RecordingSnapshot{ID: rec.ID, State: dom.State, TranscriptionState: dom.TranscriptionState, HasFile: dom.HasFile})
}

func (e *Engine) afterNewStateIsFatalError(ctx context.Context, snap *BotSnapshot, subkind *bot.Subkind, metadata map[string]any) {
	if e.alert == nil {
		return
	}
	code := "unknown"
	if subkind != nil {
		code = subkind.APICode()
	}
	payload := FatalErrorPayload{BotID: snap.ID, SubkindCode: code, EventMetadata: metadata}
	if err := e.alert.NotifyFatalError(ctx, payload); err != nil && e.log != nil {
		e.log.Warn("fatal error alert delivery failed", zap.String("bot_id", snap.ID), zap.Error(err))
	}
}

// afterTransitionToPostMeetingState stamps the bot's active duration,
// terminates any still-running recording, collects transcription errors,
// and books the credit deduction for the session.
func (e *Engine) afterTransitionToPostMeetingState(ctx context.Context, snap *BotSnapshot, kind bot.EventKind, metadata map[string]any) error {
	duration := heartbeat.DurationSeconds(snap.Heartbeat)
	metadata["bot_duration_seconds"] = duration

	recs, err := e.store.RecordingsInStates(ctx, snap.ID, []recording.State{recording.StateInProgress, recording.StatePaused})
	if err != nil {
		return err
	}
	for _, rec := range recs {
		dom := recording.Recording{State: rec.State, TranscriptionState: rec.TranscriptionState, HasFile: rec.HasFile}
		if err := recording.Terminate(&dom, snap.RecordingKind, rec.HasInProgressUtterance, rec.DistinctFailureReasons); err != nil {
			return err
		}
		if err := e.store.SaveRecording(ctx, RecordingSnapshot{
			ID:                     rec.ID,
			State:                  dom.State,
			TranscriptionState:     dom.TranscriptionState,
			HasFile:                dom.HasFile,
			DistinctFailureReasons: dom.FailureReasons,
		}); err != nil {
			return err
		}
	}

	failed, err := e.store.RecordingsWithFailedTranscription(ctx, snap.ID)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		errs := make([]string, 0, len(failed))
		for _, r := range failed {
			errs = append(errs, r.DistinctFailureReasons...)
		}
		metadata["transcription_errors"] = errs
	}

	if snap.BillingEnabled && kind.ShouldIncurCharges() {
		centicredits := ledger.CentiCreditsConsumed(duration)
		if centicredits > 0 {
			if err := e.store.AppendLedgerTransaction(ctx, snap.OrganizationID, snap.ID, -centicredits, "bot session usage"); err != nil {
				return err
			}
			metadata["credits_consumed"] = float64(centicredits) / 100.0
		}
	}
	return nil
}
