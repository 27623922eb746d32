// Package recording implements the recording sub-state-machine nested inside
// a bot's JOINED_RECORDING / JOINED_RECORDING_PAUSED states, plus the
// transcription sub-state it drags along with it.
package recording

import "fmt"

// State is where a single recording sits in its own lifecycle.
type State int

const (
	StateNotStarted State = 1
	StateInProgress State = 2
	StateComplete   State = 3
	StateFailed     State = 4
	StatePaused     State = 5
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// TranscriptionState mirrors State but for the recording's transcription.
type TranscriptionState int

const (
	TranscriptionStateNotStarted TranscriptionState = 1
	TranscriptionStateInProgress TranscriptionState = 2
	TranscriptionStateComplete   TranscriptionState = 3
	TranscriptionStateFailed     TranscriptionState = 4
)

func (s TranscriptionState) String() string {
	switch s {
	case TranscriptionStateNotStarted:
		return "not_started"
	case TranscriptionStateInProgress:
		return "in_progress"
	case TranscriptionStateComplete:
		return "complete"
	case TranscriptionStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Kind is what a recording actually captures. NoRecording exists because a
// bot can be configured to join a call and do nothing else.
type Kind int

const (
	KindAudioAndVideo Kind = 1
	KindAudioOnly     Kind = 2
	KindNoRecording   Kind = 3
)

// FailureReason enumerates why a recording's transcription failed. These are
// strings (not an int enum) because they're appended to an open-ended
// failure_reasons list rather than compared for equality against a fixed set.
type FailureReason string

const (
	FailureCredentialsNotFound                      FailureReason = "credentials_not_found"
	FailureCredentialsInvalid                       FailureReason = "credentials_invalid"
	FailureRateLimitExceeded                        FailureReason = "rate_limit_exceeded"
	FailureAudioUploadFailed                        FailureReason = "audio_upload_failed"
	FailureTranscriptionRequestFailed               FailureReason = "transcription_request_failed"
	FailureTimedOut                                 FailureReason = "timed_out"
	FailureInternalError                            FailureReason = "internal_error"
	FailureUtterancesStillInProgressOnRecordingEnd  FailureReason = "utterances_still_in_progress_when_recording_terminated"
	FailureUtterancesStillInProgressOnTranscriptEnd FailureReason = "utterances_still_in_progress_when_transcription_terminated"
)

// Recording is the pure domain snapshot the state machine operates on. The
// store package maps this to/from its GORM model.
type Recording struct {
	State              State
	TranscriptionState TranscriptionState
	HasFile            bool
	FailureReasons      []string
}

func illegal(op string, from fmt.Stringer) error {
	return fmt.Errorf("recording: cannot %s from state %s", op, from)
}

// SetInProgress starts or resumes a recording. The started_at timestamp is
// NOT re-stamped on resume from Paused: the store keeps the first start time.
func SetInProgress(r *Recording) error {
	if r.State == StateInProgress {
		return nil
	}
	if r.State != StateNotStarted && r.State != StatePaused {
		return illegal("start/resume", r.State)
	}
	r.State = StateInProgress
	return nil
}

func SetPaused(r *Recording) error {
	if r.State != StateInProgress {
		return illegal("pause", r.State)
	}
	r.State = StatePaused
	return nil
}

// SetComplete finishes the recording. If its transcription was in progress
// and no untranscribed utterances remain, the transcription is cascaded to
// Complete in the same call.
func SetComplete(r *Recording, noUntranscribedUtterancesRemain bool) error {
	if r.State != StateInProgress && r.State != StatePaused {
		return illegal("complete", r.State)
	}
	r.State = StateComplete
	if r.TranscriptionState == TranscriptionStateInProgress && noUntranscribedUtterancesRemain {
		r.TranscriptionState = TranscriptionStateComplete
	}
	return nil
}

func SetFailed(r *Recording) error {
	if r.State != StateInProgress && r.State != StatePaused {
		return illegal("fail", r.State)
	}
	r.State = StateFailed
	return nil
}

func SetTranscriptionInProgress(r *Recording) error {
	if r.TranscriptionState != TranscriptionStateNotStarted {
		return illegal("start transcription", r.TranscriptionState)
	}
	r.TranscriptionState = TranscriptionStateInProgress
	return nil
}

func SetTranscriptionComplete(r *Recording) error {
	if r.TranscriptionState != TranscriptionStateInProgress {
		return illegal("complete transcription", r.TranscriptionState)
	}
	r.TranscriptionState = TranscriptionStateComplete
	return nil
}

func SetTranscriptionFailed(r *Recording, reasons []string) error {
	if r.TranscriptionState != TranscriptionStateInProgress {
		return illegal("fail transcription", r.TranscriptionState)
	}
	r.TranscriptionState = TranscriptionStateFailed
	r.FailureReasons = reasons
	return nil
}

// IsTerminalState reports whether the recording has stopped changing.
func IsTerminalState(s State) bool {
	return s == StateComplete || s == StateFailed
}

// Terminate implements the bot-reaches-a-post-meeting-state termination
// algorithm: a recording that was still IN_PROGRESS or PAUSED when its bot
// left the call is finalized as COMPLETE if it actually produced a file (or
// the bot was configured to produce none at all), FAILED otherwise. Its
// transcription, if still in progress, is independently finalized based on
// whether any utterance was left mid-flight or had already failed.
//
// hasInProgressUtterance and distinctFailureReasons describe the utterances
// attached to this recording's transcription at the moment of termination;
// the store package computes them from the Utterance rows.
func Terminate(r *Recording, botKind Kind, hasInProgressUtterance bool, distinctFailureReasons []string) error {
	if r.State == StateInProgress || r.State == StatePaused {
		if r.HasFile || botKind == KindNoRecording {
			if err := SetComplete(r, !hasInProgressUtterance && len(distinctFailureReasons) == 0); err != nil {
				return err
			}
		} else {
			if err := SetFailed(r); err != nil {
				return err
			}
		}
	}

	if r.TranscriptionState == TranscriptionStateInProgress {
		reasons := append([]string{}, distinctFailureReasons...)
		if hasInProgressUtterance {
			reasons = append(reasons, string(FailureUtterancesStillInProgressOnRecordingEnd))
		}
		if len(reasons) > 0 {
			return SetTranscriptionFailed(r, reasons)
		}
		return SetTranscriptionComplete(r)
	}
	return nil
}
