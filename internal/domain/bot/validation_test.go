package bot

import "testing"

func TestValidateCombination_RequiresSubkindForFatalError(t *testing.T) {
	if err := ValidateCombination(EventFatalError, nil); err == nil {
		t.Error("expected error when FATAL_ERROR carries no subkind")
	}
	sub := SubkindFatalErrorHeartbeatTimeout
	if err := ValidateCombination(EventFatalError, &sub); err != nil {
		t.Errorf("unexpected error for permitted subkind: %v", err)
	}
}

func TestValidateCombination_RejectsSubkindFromWrongEvent(t *testing.T) {
	sub := SubkindCouldNotJoinMeetingNotFound
	if err := ValidateCombination(EventFatalError, &sub); err == nil {
		t.Error("expected error when subkind belongs to a different event kind")
	}
}

func TestValidateCombination_LeaveRequestedAllowsNullForBackwardsCompatibility(t *testing.T) {
	if err := ValidateCombination(EventLeaveRequested, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateCombination_OrdinaryEventRejectsAnySubkind(t *testing.T) {
	sub := SubkindFatalErrorHeartbeatTimeout
	if err := ValidateCombination(EventJoinRequested, &sub); err == nil {
		t.Error("expected error: JOIN_REQUESTED does not accept a subkind")
	}
	if err := ValidateCombination(EventJoinRequested, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateCombination_BotRecordingPermissionDenied(t *testing.T) {
	sub := SubkindBotRecordingPermissionDeniedRequestFailed
	if err := ValidateCombination(EventBotRecordingPermissionDenied, &sub); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateCombination(EventBotRecordingPermissionDenied, nil); err == nil {
		t.Error("expected error when BOT_RECORDING_PERMISSION_DENIED carries no subkind")
	}
}
