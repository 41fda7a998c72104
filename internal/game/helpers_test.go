package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"scrazino/internal/ledger"

	"github.com/shopspring/decimal"
)

// scriptedSource replays fixed draws. Exhausted queues yield zero.
type scriptedSource struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) RoundFinished(game, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, game+":"+outcome)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newWallet(t *testing.T, balance string) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), ledger.NewMemoryStore(),
		ledger.WithInitialBalance(dec(balance)))
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	return l
}

// testRules returns the embedded rules with instant reveals.
func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	rules.RevealDelay = 0
	return rules
}

func kinds(txs []ledger.Transaction) []ledger.Kind {
	out := make([]ledger.Kind, len(txs))
	for i, tx := range txs {
		out[i] = tx.Type
	}
	return out
}

func assertBalance(t *testing.T, w *ledger.Ledger, want string) {
	t.Helper()
	if !w.Balance().Equal(dec(want)) {
		t.Errorf("balance = %s, want %s", w.Balance(), want)
	}
}

func assertPhase(t *testing.T, r *Round, want Phase) {
	t.Helper()
	if got := r.State().Phase(); got != want {
		t.Errorf("phase = %s, want %s", got, want)
	}
}
