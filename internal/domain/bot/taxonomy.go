// Package bot defines the bot session lifecycle: the set of states a bot can
// occupy, the events that move it between them, and the static transition
// table the engine package enforces.
package bot

// State is a bot's position in its lifecycle. Values and numbering mirror
// the source system's integer enum so that API codes stay stable even as
// new states are appended.
type State int

const (
	StateReady                          State = 1
	StateJoining                        State = 2
	StateJoinedNotRecording             State = 3
	StateJoinedRecording                State = 4
	StateLeaving                        State = 5
	StatePostProcessing                 State = 6
	StateFatalError                     State = 7
	StateWaitingRoom                    State = 8
	StateEnded                          State = 9
	StateDataDeleted                    State = 10
	StateScheduled                      State = 11
	StateStaged                         State = 12
	StateJoinedRecordingPaused          State = 13
	StateJoiningBreakoutRoom            State = 14
	StateLeavingBreakoutRoom            State = 15
	StateJoinedRecordingPermissionDenied State = 16
	StateConnecting                     State = 100
	StateConnected                      State = 101
	StateDisconnecting                  State = 102
)

var stateAPICodes = map[State]string{
	StateReady:                           "ready",
	StateJoining:                         "joining",
	StateJoinedNotRecording:              "joined_not_recording",
	StateJoinedRecording:                 "joined_recording",
	StateLeaving:                         "leaving",
	StatePostProcessing:                  "post_processing",
	StateFatalError:                      "fatal_error",
	StateWaitingRoom:                     "waiting_room",
	StateEnded:                           "ended",
	StateDataDeleted:                     "data_deleted",
	StateScheduled:                       "scheduled",
	StateStaged:                          "staged",
	StateJoinedRecordingPaused:           "joined_recording_paused",
	StateJoiningBreakoutRoom:             "joining_breakout_room",
	StateLeavingBreakoutRoom:             "leaving_breakout_room",
	StateJoinedRecordingPermissionDenied: "joined_recording_permission_denied",
	StateConnecting:                      "connecting",
	StateConnected:                       "connected",
	StateDisconnecting:                   "disconnecting",
}

// APICode returns the external, stable string code for a state.
func (s State) APICode() string {
	if c, ok := stateAPICodes[s]; ok {
		return c
	}
	return "unknown"
}

func (s State) String() string { return s.APICode() }

// PostMeetingStates are terminal-ish states reached once the bot has left
// the meeting for good.
func PostMeetingStates() []State {
	return []State{StateFatalError, StateEnded, StateDataDeleted}
}

// PreMeetingStates are states a bot occupies before it attempts to join.
func PreMeetingStates() []State {
	return []State{StateReady, StateScheduled, StateStaged}
}

// InMeetingStates are states where the bot is actively part of a call
// (including breakout-room transit and paused recording).
func InMeetingStates() []State {
	return []State{
		StateJoinedNotRecording,
		StateJoinedRecording,
		StateJoinedRecordingPaused,
		StateJoinedRecordingPermissionDenied,
		StateJoiningBreakoutRoom,
		StateLeavingBreakoutRoom,
	}
}

// JoinedStates are the four states from which a breakout-room transition can
// begin or that otherwise count as "the bot has media presence in the call".
func JoinedStates() []State {
	return []State{
		StateJoinedNotRecording,
		StateJoinedRecordingPermissionDenied,
		StateJoinedRecording,
		StateJoinedRecordingPaused,
	}
}

func IsPostMeetingState(s State) bool { return contains(PostMeetingStates(), s) }
func IsPreMeetingState(s State) bool  { return contains(PreMeetingStates(), s) }
func IsInMeetingState(s State) bool   { return contains(InMeetingStates(), s) }
func IsJoinedState(s State) bool      { return contains(JoinedStates(), s) }

func contains(set []State, s State) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

// CanPlayMedia, CanAdmitFromWaitingRoom, CanUpdateTranscriptionSettings,
// CanChangeGalleryViewPage and CanUpdateVoiceAgentSettings all share the same
// eligibility set: the four "joined" states.
func CanPlayMedia(s State) bool                     { return IsJoinedState(s) }
func CanAdmitFromWaitingRoom(s State) bool          { return IsJoinedState(s) }
func CanUpdateTranscriptionSettings(s State) bool   { return IsJoinedState(s) }
func CanChangeGalleryViewPage(s State) bool         { return IsJoinedState(s) }
func CanUpdateVoiceAgentSettings(s State) bool      { return IsJoinedState(s) }

// CanPauseRecording / CanResumeRecording mirror the "from" side of the
// RECORDING_PAUSED / RECORDING_RESUMED transitions.
func CanPauseRecording(s State) bool  { return s == StateJoinedRecording }
func CanResumeRecording(s State) bool { return s == StateJoinedRecordingPaused }
