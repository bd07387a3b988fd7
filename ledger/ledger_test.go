package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSpentInWindowSumsRecentRecords(t *testing.T) {
	l := New()
	now := time.Now()

	l.Record(amt("1.5"), now.Add(-10*time.Minute))
	l.Record(amt("0.25"), now.Add(-5*time.Minute))
	l.Record(amt("2"), now)

	total := l.SpentInWindow(now, DefaultWindow)
	assert.True(t, total.Equal(amt("3.75")), "got %s", total)
}

func TestSpentInWindowPrunesAndCommits(t *testing.T) {
	l := New()
	now := time.Now()

	l.Record(amt("5"), now.Add(-2*time.Hour))
	l.Record(amt("1"), now.Add(-30*time.Minute))
	require.Equal(t, 2, l.Len())

	total := l.SpentInWindow(now, DefaultWindow)
	assert.True(t, total.Equal(amt("1")), "got %s", total)

	// Pruned state is committed, not recomputed per query.
	assert.Equal(t, 1, l.Len())
}

func TestRecordAtWindowBoundaryIsDropped(t *testing.T) {
	l := New()
	now := time.Now()

	// Timestamp exactly now-window is outside the window.
	l.Record(amt("1"), now.Add(-DefaultWindow))
	total := l.SpentInWindow(now, DefaultWindow)
	assert.True(t, total.IsZero(), "got %s", total)
}

func TestEmptyLedger(t *testing.T) {
	l := New()
	assert.True(t, l.SpentInWindow(time.Now(), DefaultWindow).IsZero())
	assert.Equal(t, 0, l.Len())
}

func TestSumIndependentOfQueryOrder(t *testing.T) {
	now := time.Now()
	amounts := []string{"0.1", "0.2", "0.3", "0.4"}

	a := New()
	for i, s := range amounts {
		a.Record(amt(s), now.Add(time.Duration(i)*time.Second))
	}

	b := New()
	for i, s := range amounts {
		b.Record(amt(s), now.Add(time.Duration(i)*time.Second))
		// Interleaved queries must not change the eventual sum.
		b.SpentInWindow(now.Add(time.Duration(i)*time.Second), DefaultWindow)
	}

	end := now.Add(10 * time.Second)
	assert.True(t, a.SpentInWindow(end, DefaultWindow).Equal(b.SpentInWindow(end, DefaultWindow)))
}

func TestConcurrentRecordAndQuery(t *testing.T) {
	l := New()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(amt("0.01"), now)
			l.SpentInWindow(now, DefaultWindow)
		}()
	}
	wg.Wait()

	total := l.SpentInWindow(now.Add(time.Second), DefaultWindow)
	assert.True(t, total.Equal(amt("0.5")), "got %s", total)
}
