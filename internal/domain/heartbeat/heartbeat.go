// Package heartbeat tracks bot liveness and derives the billable active
// duration from the first and last heartbeat timestamps recorded for a bot.
package heartbeat

// Snapshot is the pair of heartbeat timestamps a bot carries (unix seconds).
// Both are nil until the bot's first heartbeat arrives.
type Snapshot struct {
	First *int64
	Last  *int64
}

// Observe folds a new heartbeat at currentTimestamp (unix seconds) into the
// snapshot: First is stamped only the first time, Last is always advanced.
func Observe(s *Snapshot, currentTimestamp int64) {
	if s.First == nil {
		first := currentTimestamp
		s.First = &first
	}
	last := currentTimestamp
	s.Last = &last
}

// DurationSeconds returns how long the bot was active, with a 30-second
// floor applied when both timestamps are present but identical (a bot that
// sent exactly one heartbeat still incurred some real activity). Returns 0
// if either timestamp is missing or the recorded span is negative (clock
// skew / corrupt data).
func DurationSeconds(s Snapshot) int64 {
	if s.First == nil || s.Last == nil {
		return 0
	}
	if *s.Last < *s.First {
		return 0
	}
	active := *s.Last - *s.First
	if active == 0 {
		return 30
	}
	return active
}

// MaxSetHeartbeatRetries bounds the store layer's optimistic-concurrency
// retry loop for SetHeartbeat, matching the source system's retry budget.
const MaxSetHeartbeatRetries = 10
