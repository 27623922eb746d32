package bot

import "testing"

func TestTransitions_EveryEntryHasNonEmptyFrom(t *testing.T) {
	for kind, entry := range Transitions {
		if len(entry.From) == 0 {
			t.Errorf("event %s has no permitted From states", kind)
		}
	}
}

func TestResolve_Constant(t *testing.T) {
	entry := Transitions[EventJoinRequested]
	got, err := entry.To.Resolve(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != StateJoining {
		t.Errorf("got %s, want %s", got, StateJoining)
	}
}

func TestResolve_BreakoutRoom(t *testing.T) {
	entry := Transitions[EventBotJoinedBreakoutRoom]

	got, err := entry.To.Resolve(EventBotBeganJoiningBreakoutRoom, StateJoinedRecording)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != StateJoinedRecording {
		t.Errorf("got %s, want %s", got, StateJoinedRecording)
	}

	if _, err := entry.To.Resolve(EventMeetingEnded, StateJoinedRecording); err == nil {
		t.Error("expected error when last event is not a breakout transit event")
	}

	if _, err := entry.To.Resolve(EventBotBeganJoiningBreakoutRoom, StateWaitingRoom); err == nil {
		t.Error("expected error when last event's origin state is not a joined state")
	}
}

func TestJoinedStates_MatchesPredicates(t *testing.T) {
	for _, s := range JoinedStates() {
		if !CanPlayMedia(s) || !CanAdmitFromWaitingRoom(s) || !CanUpdateTranscriptionSettings(s) {
			t.Errorf("state %s should satisfy all joined-state predicates", s)
		}
	}
	if CanPlayMedia(StateReady) {
		t.Error("StateReady should not satisfy CanPlayMedia")
	}
}

func TestCanPauseResumeRecording(t *testing.T) {
	if !CanPauseRecording(StateJoinedRecording) {
		t.Error("expected pause to be allowed from JoinedRecording")
	}
	if !CanResumeRecording(StateJoinedRecordingPaused) {
		t.Error("expected resume to be allowed from JoinedRecordingPaused")
	}
	if CanPauseRecording(StateJoinedRecordingPaused) {
		t.Error("pause should not be allowed once already paused")
	}
}
