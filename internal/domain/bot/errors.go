package bot

import "errors"

// ErrNoBreakoutTransitOrigin is returned by the breakout-room TransitionTarget
// when the bot's last event isn't a BEGAN_JOINING/BEGAN_LEAVING breakout
// event, or that event's own origin state wasn't one of the joined states.
// Both cases indicate the event stream is corrupt; the engine wraps this in
// an AppError before it reaches a caller.
var ErrNoBreakoutTransitOrigin = errors.New("bot: last event is not a valid breakout room transit origin")
