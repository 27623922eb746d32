// Package ledger implements the append-only credit transaction chain: every
// organization's balance history is a singly-linked list of transactions,
// each pointing at its parent, with exactly one leaf (the transaction with
// no children) at any time. The "exactly one leaf" invariant is enforced by
// the store package's unique constraints, not computed here; this package
// only knows how to build the next link given the current leaf.
package ledger

import "fmt"

// Transaction is the pure domain shape of one ledger entry. ID/timestamps
// are assigned by the store package on insert.
type Transaction struct {
	OrganizationID        string
	CentibeforeBalance     int64
	CentiAfterBalance      int64
	CentiDelta             int64
	ParentTransactionID    *string
	BotID                  *string
	StripePaymentIntentID  *string
	Description            string
}

// NextTransaction computes the transaction that should be appended to the
// chain given the organization's current balance, the prior leaf
// transaction's id (nil if this organization has no history yet), and the
// signed delta to apply. It does not touch storage; the caller is
// responsible for inserting the row and updating the organization's balance
// inside the same retried transaction (see
// persistence.BotStore.AppendLedgerTransaction for the retry loop).
func NextTransaction(orgID string, currentBalance int64, leafTransactionID *string, delta int64, botID *string, stripePaymentIntentID *string, description string) (*Transaction, int64) {
	newBalance := currentBalance + delta
	return &Transaction{
		OrganizationID:        orgID,
		CentibeforeBalance:    currentBalance,
		CentiAfterBalance:     newBalance,
		CentiDelta:            delta,
		ParentTransactionID:   leafTransactionID,
		BotID:                 botID,
		StripePaymentIntentID: stripePaymentIntentID,
		Description:           description,
	}, newBalance
}

// CentiCreditsConsumed converts seconds of bot activity into centicredits,
// rounding up to the next whole centicredit so partial usage is never
// under-billed. Rate: 100 centicredits per hour of active time.
func CentiCreditsConsumed(secondsActive int64) int64 {
	if secondsActive <= 0 {
		return 0
	}
	// ceil(secondsActive/3600 * 100)
	num := secondsActive * 100
	den := int64(3600)
	return (num + den - 1) / den
}

func (t *Transaction) String() string {
	return fmt.Sprintf("ledger.Transaction{org=%s delta=%d after=%d}", t.OrganizationID, t.CentiDelta, t.CentiAfterBalance)
}

// MaxCreateRetries bounds the store layer's retry loop around the
// insert-and-bump-balance operation when it collides with a concurrent
// writer appending to the same leaf (enforced by the unique constraint on
// parent_transaction_id). The source system retries up to 10 times before
// giving up.
const MaxCreateRetries = 10
