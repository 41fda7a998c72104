package metrics

import (
	"context"
	"testing"

	"scrazino/internal/ledger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestRecorder_ObservesLedger(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(prometheus.NewRegistry())

	l, err := ledger.Open(ctx, ledger.NewMemoryStore(), ledger.WithObserver(rec))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Deposit(ctx, decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet(ctx, decimal.NewFromInt(30), "Cyber Flip"); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet(ctx, decimal.NewFromInt(20), "Cyber Flip"); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(rec.transactions.WithLabelValues(string(ledger.KindGameBet))); got != 2 {
		t.Errorf("expected 2 bets counted, got %v", got)
	}
	if got := testutil.ToFloat64(rec.volume.WithLabelValues(string(ledger.KindGameBet))); got != 50 {
		t.Errorf("expected bet volume 50, got %v", got)
	}
	if got := testutil.ToFloat64(rec.balance); got != 1050 {
		t.Errorf("expected balance gauge 1050, got %v", got)
	}
}

func TestRecorder_RoundFinished(t *testing.T) {
	rec := NewRecorder(nil)
	rec.RoundFinished("slots", "won")
	rec.RoundFinished("slots", "lost")
	rec.RoundFinished("slots", "lost")

	if got := testutil.ToFloat64(rec.rounds.WithLabelValues("slots", "lost")); got != 2 {
		t.Errorf("expected 2 lost rounds, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.rounds); n != 2 {
		t.Errorf("expected 2 label sets, got %d", n)
	}
}
