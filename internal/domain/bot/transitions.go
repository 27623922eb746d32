package bot

// TransitionTarget is the tagged union a transition table entry resolves to:
// either a fixed State, or a function of the bot's last recorded event
// (used by the breakout-room events, whose destination is "wherever the
// bot was before it started moving between rooms").
type TransitionTarget struct {
	constant State
	fromLast func(lastEventKind EventKind, lastEventOldState State) (State, error)
}

// Constant builds a TransitionTarget that always resolves to the same state.
func Constant(s State) TransitionTarget {
	return TransitionTarget{constant: s}
}

// FromLastEvent builds a TransitionTarget whose destination depends on the
// bot's most recently recorded event.
func FromLastEvent(f func(lastEventKind EventKind, lastEventOldState State) (State, error)) TransitionTarget {
	return TransitionTarget{fromLast: f}
}

// Resolve computes the destination state, invoking the last-event function
// if this target is dynamic.
func (t TransitionTarget) Resolve(lastEventKind EventKind, lastEventOldState State) (State, error) {
	if t.fromLast != nil {
		return t.fromLast(lastEventKind, lastEventOldState)
	}
	return t.constant, nil
}

// breakoutRoomTarget is shared by BOT_JOINED_BREAKOUT_ROOM and
// BOT_LEFT_BREAKOUT_ROOM: the bot returns to whichever "joined" state it was
// in before BEGAN_JOINING/BEGAN_LEAVING put it in transit.
var breakoutRoomTarget = FromLastEvent(func(lastKind EventKind, lastOldState State) (State, error) {
	if lastKind != EventBotBeganJoiningBreakoutRoom && lastKind != EventBotBeganLeavingBreakoutRoom {
		return 0, ErrNoBreakoutTransitOrigin
	}
	if !IsJoinedState(lastOldState) {
		return 0, ErrNoBreakoutTransitOrigin
	}
	return lastOldState, nil
})

// Entry is one row of the transition table: the set of states a bot must be
// in for the event to be legal, and where it lands.
type Entry struct {
	From []State
	To   TransitionTarget
}

// Transitions is the complete, static transition table. Every EventKind the
// engine accepts has exactly one entry here.
var Transitions = map[EventKind]Entry{
	EventJoinRequested: {
		From: []State{StateReady, StateStaged},
		To:   Constant(StateJoining),
	},
	EventStaged: {
		From: []State{StateScheduled},
		To:   Constant(StateStaged),
	},
	EventCouldNotJoin: {
		From: []State{StateJoining, StateWaitingRoom},
		To:   Constant(StateFatalError),
	},
	EventFatalError: {
		From: []State{
			StateReady, StateJoining, StateJoinedNotRecording, StateJoinedRecording,
			StateLeaving, StateWaitingRoom, StateScheduled, StateStaged,
			StateJoinedRecordingPaused, StateJoiningBreakoutRoom, StateLeavingBreakoutRoom,
			StateJoinedRecordingPermissionDenied, StatePostProcessing,
			StateConnecting, StateConnected,
		},
		To: Constant(StateFatalError),
	},
	EventBotPutInWaitingRoom: {
		From: []State{StateJoining},
		To:   Constant(StateWaitingRoom),
	},
	EventBotJoinedMeeting: {
		From: []State{StateWaitingRoom, StateJoining},
		To:   Constant(StateJoinedNotRecording),
	},
	EventBotRecordingPermissionGranted: {
		From: []State{StateJoinedNotRecording, StateJoinedRecordingPermissionDenied},
		To:   Constant(StateJoinedRecording),
	},
	EventMeetingEnded: {
		From: []State{
			StateJoining, StateWaitingRoom, StateJoinedNotRecording, StateJoinedRecording,
			StateLeaving, StateJoinedRecordingPaused, StateJoiningBreakoutRoom,
			StateLeavingBreakoutRoom, StateJoinedRecordingPermissionDenied,
		},
		To: Constant(StatePostProcessing),
	},
	EventLeaveRequested: {
		From: []State{
			StateJoining, StateWaitingRoom, StateJoinedNotRecording, StateJoinedRecording,
			StateJoinedRecordingPaused, StateJoiningBreakoutRoom, StateLeavingBreakoutRoom,
			StateJoinedRecordingPermissionDenied,
		},
		To: Constant(StateLeaving),
	},
	EventBotLeftMeeting: {
		From: []State{StateLeaving},
		To:   Constant(StatePostProcessing),
	},
	EventPostProcessingCompleted: {
		From: []State{StatePostProcessing},
		To:   Constant(StateEnded),
	},
	EventDataDeleted: {
		From: []State{StateFatalError, StateEnded},
		To:   Constant(StateDataDeleted),
	},
	EventRecordingPaused: {
		From: []State{StateJoinedRecording},
		To:   Constant(StateJoinedRecordingPaused),
	},
	EventRecordingResumed: {
		From: []State{StateJoinedRecordingPaused},
		To:   Constant(StateJoinedRecording),
	},
	EventBotJoinedBreakoutRoom: {
		From: []State{StateJoiningBreakoutRoom},
		To:   breakoutRoomTarget,
	},
	EventBotLeftBreakoutRoom: {
		From: []State{StateLeavingBreakoutRoom},
		To:   breakoutRoomTarget,
	},
	EventBotBeganJoiningBreakoutRoom: {
		From: JoinedStates(),
		To:   Constant(StateJoiningBreakoutRoom),
	},
	EventBotBeganLeavingBreakoutRoom: {
		From: JoinedStates(),
		To:   Constant(StateLeavingBreakoutRoom),
	},
	EventBotRecordingPermissionDenied: {
		From: JoinedStates(),
		To:   Constant(StateJoinedRecordingPermissionDenied),
	},
	EventAppSessionConnectionRequested: {
		From: []State{StateReady},
		To:   Constant(StateConnecting),
	},
	EventAppSessionConnected: {
		From: []State{StateConnecting},
		To:   Constant(StateConnected),
	},
	EventAppSessionDisconnectRequested: {
		From: []State{StateConnected, StateConnecting},
		To:   Constant(StateDisconnecting),
	},
	EventAppSessionDisconnected: {
		From: []State{StateDisconnecting},
		To:   Constant(StatePostProcessing),
	},
}
