// Package transcription implements the async transcription state machine:
// a standalone, post-hoc transcription job against a recording's audio,
// independent of any bot that might have since finished its own lifecycle.
// It is the same shape as recording's in-call transcription sub-state,
// pulled out into its own top-level entity so it can be requested, retried
// and billed separately.
package transcription

import "fmt"

type State int

const (
	StateNotStarted State = 1
	StateInProgress State = 2
	StateComplete   State = 3
	StateFailed     State = 4
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
	default:
		return "unknown"
	}
}

// Provider is which transcription vendor services the job.
type Provider int

const (
	ProviderDeepgram                 Provider = 1
	ProviderClosedCaptionFromPlatform Provider = 2
	ProviderGladia                   Provider = 3
	ProviderOpenAI                   Provider = 4
	ProviderAssemblyAI               Provider = 5
	ProviderSarvam                   Provider = 6
	ProviderElevenLabs               Provider = 7
	ProviderKyutai                   Provider = 8
	ProviderCustomAsync              Provider = 9
)

// Job is the pure domain snapshot of an async transcription request.
type Job struct {
	State          State
	FailureReasons []string
}

func illegal(op string, from State) error {
	return fmt.Errorf("transcription: cannot %s from state %s", op, from)
}

func Start(j *Job) error {
	if j.State != StateNotStarted {
		return illegal("start", j.State)
	}
	j.State = StateInProgress
	return nil
}

func Complete(j *Job) error {
	if j.State != StateInProgress {
		return illegal("complete", j.State)
	}
	j.State = StateComplete
	return nil
}

func Fail(j *Job, reasons []string) error {
	if j.State != StateInProgress {
		return illegal("fail", j.State)
	}
	j.State = StateFailed
	j.FailureReasons = reasons
	return nil
}

func IsTerminalState(s State) bool { return s == StateComplete || s == StateFailed }
