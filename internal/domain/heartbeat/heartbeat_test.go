package heartbeat

import "testing"

func TestObserve_StampsFirstOnlyOnce(t *testing.T) {
	var s Snapshot
	Observe(&s, 100)
	Observe(&s, 130)

	if *s.First != 100 {
		t.Errorf("First = %d, want 100", *s.First)
	}
	if *s.Last != 130 {
		t.Errorf("Last = %d, want 130", *s.Last)
	}
}

func TestDurationSeconds(t *testing.T) {
	first, last := int64(100), int64(100)
	if got := DurationSeconds(Snapshot{First: &first, Last: &last}); got != 30 {
		t.Errorf("equal timestamps should floor to 30s, got %d", got)
	}

	first, last = 100, 220
	if got := DurationSeconds(Snapshot{First: &first, Last: &last}); got != 120 {
		t.Errorf("got %d, want 120", got)
	}

	if got := DurationSeconds(Snapshot{}); got != 0 {
		t.Errorf("missing timestamps should yield 0, got %d", got)
	}

	first, last = 200, 100
	if got := DurationSeconds(Snapshot{First: &first, Last: &last}); got != 0 {
		t.Errorf("negative span should yield 0, got %d", got)
	}
}
