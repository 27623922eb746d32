package bot

import "fmt"

// combinationRequirements enumerates, for every event kind that carries a
// subkind, the set of subkinds permitted on it. Event kinds absent from this
// map must be written with a nil subkind. Mirrors the source system's
// valid_event_type_event_sub_type_combinations check constraint: FATAL_ERROR,
// COULD_NOT_JOIN and BOT_RECORDING_PERMISSION_DENIED each draw from their own
// closed set; LEAVE_REQUESTED's set is empty here (this deployment models no
// LEAVE_REQUESTED-specific subkinds) so only its legacy null form is valid.
var combinationRequirements = map[EventKind][]Subkind{
	EventFatalError: {
		SubkindFatalErrorProcessTerminated,
		SubkindFatalErrorUICouldNotStartRecording,
		SubkindFatalErrorZoomAuthorizationFailed,
		SubkindFatalErrorInternalError,
		SubkindFatalErrorZoomSDKInternalError,
		SubkindFatalErrorRequestedBotRemovedFromMeeting,
		SubkindFatalErrorMeetingNotFound,
		SubkindFatalErrorHeartbeatTimeout,
		SubkindFatalErrorBotNotLaunched,
		SubkindFatalErrorLoginAttemptFailed,
		SubkindFatalErrorLoginRequired,
		SubkindFatalErrorCouldNotConnectToMeeting,
		SubkindFatalErrorOutOfMemory,
		SubkindFatalErrorRecordingPermissionDenied,
		SubkindFatalErrorAutoLeaveSilence,
		SubkindFatalErrorAutoLeaveMaxUptime,
		SubkindFatalErrorAutoLeaveOnlyParticipantInMeeting,
		SubkindFatalErrorAutoLeaveAllBotsInWaitingRoom,
	},
	EventCouldNotJoin: {
		SubkindCouldNotJoinMeetingNotStartedWaitingForHost,
		SubkindCouldNotJoinMeetingNotFound,
		SubkindCouldNotJoinMeetingInvalidPassword,
		SubkindCouldNotJoinMeetingCannotJoinBeforeHost,
		SubkindCouldNotJoinMeetingUnpublishedZoomApp,
		SubkindCouldNotJoinMeetingZoomMeetingStatusFailed,
		SubkindCouldNotJoinMeetingBotFailedToJoinWaitingRoom,
	},
	EventBotRecordingPermissionDenied: {
		SubkindBotRecordingPermissionDeniedHostDeniedPermission,
		SubkindBotRecordingPermissionDeniedRequestFailed,
	},
	EventLeaveRequested: {},
}

// ValidateCombination enforces the (event_kind, event_subkind) pairing rule
// before a caller is allowed to write it: FATAL_ERROR, COULD_NOT_JOIN and
// BOT_RECORDING_PERMISSION_DENIED must carry a subkind from their own
// permitted set; LEAVE_REQUESTED accepts either one of its permitted set or
// null, for backwards compatibility; every other event kind must carry
// subkind = nil.
func ValidateCombination(kind EventKind, subkind *Subkind) error {
	permitted, requiresSubkind := combinationRequirements[kind]
	if !requiresSubkind {
		if subkind != nil {
			return fmt.Errorf("bot: event %q does not accept a subkind, got %q", kind.APICode(), subkind.APICode())
		}
		return nil
	}

	if subkind == nil {
		if kind == EventLeaveRequested {
			return nil
		}
		return fmt.Errorf("bot: event %q requires a subkind", kind.APICode())
	}

	for _, s := range permitted {
		if s == *subkind {
			return nil
		}
	}
	return fmt.Errorf("bot: subkind %q is not permitted for event %q", subkind.APICode(), kind.APICode())
}
