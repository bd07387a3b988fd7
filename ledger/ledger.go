// Package ledger tracks timestamped spend events for sliding-window limit
// enforcement. The ledger is a client-side safety net, not a ledger of
// record: it is in-memory only and loss on restart is acceptable.
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultWindow is the rolling window used for hourly limit enforcement.
const DefaultWindow = 3600 * time.Second

// SpendRecord is one successful payment, as seen by limit enforcement.
type SpendRecord struct {
	Timestamp time.Time
	Amount    decimal.Decimal
}

// SpendLedger is an append-only ledger of spend events within a rolling
// window. Records older than the window are pruned lazily on query, and the
// pruned state is committed so repeated queries stay cheap.
//
// The ledger is shared across all calls issued through one client and is
// safe for concurrent use. Enforcement under races is best-effort: two
// calls racing near a cap can both pass the window check, since strict
// serialization would have to span the external authorize call.
type SpendLedger struct {
	mu      sync.Mutex
	records []SpendRecord
}

// New creates an empty ledger.
func New() *SpendLedger {
	return &SpendLedger{}
}

// Record appends a spend event. Records are assumed to arrive with
// monotonically non-decreasing timestamps and are never reordered.
func (l *SpendLedger) Record(amount decimal.Decimal, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, SpendRecord{Timestamp: now, Amount: amount})
}

// SpentInWindow drops every record with a timestamp at or before
// now-window and returns the sum of the remainder.
func (l *SpendLedger) SpentInWindow(now time.Time, window time.Duration) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)

	kept := l.records[:0]
	total := decimal.Zero
	for _, r := range l.records {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
			total = total.Add(r.Amount)
		}
	}
	l.records = kept

	return total
}

// Len reports the number of records currently held, including any not yet
// pruned.
func (l *SpendLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}
