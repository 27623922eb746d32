package bot

// EventKind identifies why a BotEvent was created. Numbering mirrors the
// source system's integer enum.
type EventKind int

const (
	EventBotPutInWaitingRoom          EventKind = 1
	EventBotJoinedMeeting             EventKind = 2
	EventBotRecordingPermissionGranted EventKind = 3
	EventMeetingEnded                 EventKind = 4
	EventBotLeftMeeting               EventKind = 5
	EventJoinRequested                EventKind = 6
	EventFatalError                   EventKind = 7
	EventLeaveRequested                EventKind = 8
	EventCouldNotJoin                  EventKind = 9
	EventPostProcessingCompleted       EventKind = 10
	EventDataDeleted                   EventKind = 11
	EventStaged                        EventKind = 12
	EventRecordingPaused               EventKind = 13
	EventRecordingResumed              EventKind = 14
	EventBotJoinedBreakoutRoom         EventKind = 15
	EventBotLeftBreakoutRoom           EventKind = 16
	EventBotBeganJoiningBreakoutRoom   EventKind = 17
	EventBotBeganLeavingBreakoutRoom   EventKind = 18
	EventBotRecordingPermissionDenied  EventKind = 19

	EventAppSessionConnectionRequested EventKind = 100
	EventAppSessionConnected           EventKind = 101
	EventAppSessionDisconnectRequested EventKind = 102
	EventAppSessionDisconnected        EventKind = 103
)

var eventAPICodes = map[EventKind]string{
	EventJoinRequested:                  "join_requested",
	EventStaged:                         "staged",
	EventCouldNotJoin:                   "could_not_join_meeting",
	EventFatalError:                     "fatal_error",
	EventBotPutInWaitingRoom:            "put_in_waiting_room",
	EventBotJoinedMeeting:               "joined_meeting",
	EventBotRecordingPermissionGranted:  "recording_permission_granted",
	EventMeetingEnded:                   "meeting_ended",
	EventLeaveRequested:                 "leave_requested",
	EventBotLeftMeeting:                 "left_meeting",
	EventPostProcessingCompleted:        "post_processing_completed",
	EventDataDeleted:                    "data_deleted",
	EventRecordingPaused:                "recording_paused",
	EventRecordingResumed:               "recording_resumed",
	EventBotJoinedBreakoutRoom:          "joined_breakout_room",
	EventBotLeftBreakoutRoom:            "left_breakout_room",
	EventBotBeganJoiningBreakoutRoom:    "began_joining_breakout_room",
	EventBotBeganLeavingBreakoutRoom:    "began_leaving_breakout_room",
	EventBotRecordingPermissionDenied:   "recording_permission_denied",
	EventAppSessionConnectionRequested:  "app_session_connection_requested",
	EventAppSessionConnected:            "app_session_connected",
	EventAppSessionDisconnectRequested:  "app_session_disconnect_requested",
	EventAppSessionDisconnected:         "app_session_disconnected",
}

func (k EventKind) APICode() string {
	if c, ok := eventAPICodes[k]; ok {
		return c
	}
	return "unknown"
}

func (k EventKind) String() string { return k.APICode() }

// ShouldIncurCharges reports whether this event kind should ever be allowed
// to trigger a credit deduction when it lands the bot in a post-meeting
// state. Only FATAL_ERROR is excluded: a bot that errored out isn't billed
// for the time it spent broken.
func (k EventKind) ShouldIncurCharges() bool { return k != EventFatalError }

// Subkind refines an EventKind with a specific reason, e.g. which fatal
// error occurred or why a join attempt was rejected.
type Subkind int

const (
	SubkindCouldNotJoinMeetingNotStartedWaitingForHost Subkind = 1
	SubkindFatalErrorProcessTerminated                 Subkind = 2
	SubkindCouldNotJoinMeetingNotFound                 Subkind = 3
	SubkindFatalErrorUICouldNotStartRecording           Subkind = 4
	SubkindCouldNotJoinMeetingInvalidPassword           Subkind = 5
	SubkindFatalErrorZoomAuthorizationFailed            Subkind = 6
	SubkindCouldNotJoinMeetingCannotJoinBeforeHost       Subkind = 7
	SubkindCouldNotJoinMeetingUnpublishedZoomApp         Subkind = 8
	SubkindFatalErrorInternalError                      Subkind = 9
	SubkindFatalErrorZoomSDKInternalError                Subkind = 10
	SubkindFatalErrorRequestedBotRemovedFromMeeting      Subkind = 11
	SubkindFatalErrorMeetingNotFound                     Subkind = 12
	SubkindFatalErrorHeartbeatTimeout                    Subkind = 13
	SubkindFatalErrorBotNotLaunched                      Subkind = 14
	SubkindFatalErrorLoginAttemptFailed                  Subkind = 15
	SubkindFatalErrorLoginRequired                       Subkind = 16
	SubkindFatalErrorCouldNotConnectToMeeting            Subkind = 17
	SubkindCouldNotJoinMeetingZoomMeetingStatusFailed    Subkind = 18
	SubkindFatalErrorOutOfMemory                         Subkind = 19
	SubkindFatalErrorRecordingPermissionDenied           Subkind = 20
	SubkindFatalErrorAutoLeaveSilence                    Subkind = 21
	SubkindFatalErrorAutoLeaveMaxUptime                  Subkind = 22
	SubkindBotRecordingPermissionDeniedHostDeniedPermission Subkind = 23
	SubkindBotRecordingPermissionDeniedRequestFailed        Subkind = 24
	SubkindCouldNotJoinMeetingBotFailedToJoinWaitingRoom    Subkind = 25
	SubkindFatalErrorAutoLeaveOnlyParticipantInMeeting      Subkind = 26
	SubkindFatalErrorAutoLeaveAllBotsInWaitingRoom          Subkind = 27
)

var subkindAPICodes = map[Subkind]string{
	SubkindCouldNotJoinMeetingNotStartedWaitingForHost:      "meeting_not_started_waiting_for_host",
	SubkindFatalErrorProcessTerminated:                      "process_terminated",
	SubkindCouldNotJoinMeetingNotFound:                      "meeting_not_found",
	SubkindFatalErrorUICouldNotStartRecording:               "ui_could_not_start_recording",
	SubkindCouldNotJoinMeetingInvalidPassword:               "invalid_meeting_password",
	SubkindFatalErrorZoomAuthorizationFailed:                "zoom_authorization_failed",
	SubkindCouldNotJoinMeetingCannotJoinBeforeHost:          "cannot_join_before_host",
	SubkindCouldNotJoinMeetingUnpublishedZoomApp:            "unpublished_zoom_app",
	SubkindFatalErrorInternalError:                          "internal_error",
	SubkindFatalErrorZoomSDKInternalError:                   "zoom_sdk_internal_error",
	SubkindFatalErrorRequestedBotRemovedFromMeeting:         "requested_bot_removed_from_meeting",
	SubkindFatalErrorMeetingNotFound:                        "meeting_not_found",
	SubkindFatalErrorHeartbeatTimeout:                       "heartbeat_timeout",
	SubkindFatalErrorBotNotLaunched:                         "bot_not_launched",
	SubkindFatalErrorLoginAttemptFailed:                     "login_attempt_failed",
	SubkindFatalErrorLoginRequired:                          "login_required",
	SubkindFatalErrorCouldNotConnectToMeeting:               "could_not_connect_to_meeting",
	SubkindCouldNotJoinMeetingZoomMeetingStatusFailed:       "zoom_meeting_status_failed",
	SubkindFatalErrorOutOfMemory:                            "out_of_memory",
	SubkindFatalErrorRecordingPermissionDenied:              "recording_permission_denied",
	SubkindFatalErrorAutoLeaveSilence:                       "auto_leave_silence",
	SubkindFatalErrorAutoLeaveMaxUptime:                     "auto_leave_max_uptime",
	SubkindBotRecordingPermissionDeniedHostDeniedPermission: "host_denied_permission",
	SubkindBotRecordingPermissionDeniedRequestFailed:        "request_failed",
	SubkindCouldNotJoinMeetingBotFailedToJoinWaitingRoom:    "bot_failed_to_join_waiting_room",
	SubkindFatalErrorAutoLeaveOnlyParticipantInMeeting:      "auto_leave_only_participant_in_meeting",
	SubkindFatalErrorAutoLeaveAllBotsInWaitingRoom:          "auto_leave_all_bots_in_waiting_room",
}

func (s Subkind) APICode() string {
	if c, ok := subkindAPICodes[s]; ok {
		return c
	}
	return "unknown"
}

func (s Subkind) String() string { return s.APICode() }
