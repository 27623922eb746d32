package ledger

import "testing"

func TestNextTransaction(t *testing.T) {
	leaf := "txn_abc"
	txn, newBalance := NextTransaction("org_1", 500, &leaf, -120, nil, nil, "bot usage")

	if newBalance != 380 {
		t.Errorf("newBalance = %d, want 380", newBalance)
	}
	if txn.CentibeforeBalance != 500 || txn.CentiAfterBalance != 380 {
		t.Errorf("unexpected before/after: %+v", txn)
	}
	if txn.ParentTransactionID == nil || *txn.ParentTransactionID != leaf {
		t.Errorf("expected parent to be prior leaf")
	}
}

func TestCentiCreditsConsumed(t *testing.T) {
	cases := []struct {
		seconds int64
		want    int64
	}{
		{0, 0},
		{-5, 0},
		{3600, 100},
		{1, 1},   // ceil(1/3600*100) = 1
		{3601, 101},
	}
	for _, c := range cases {
		if got := CentiCreditsConsumed(c.seconds); got != c.want {
			t.Errorf("CentiCreditsConsumed(%d) = %d, want %d", c.seconds, got, c.want)
		}
	}
}
