package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scrazino/internal/ledger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBetPlaced Phase = "bet_placed"
	PhaseResolving Phase = "resolving"
	PhaseWon       Phase = "won"
	PhaseLost      Phase = "lost"
	PhaseCashedOut Phase = "cashed_out"
)

// State is one of Idle, BetPlaced, Resolving, Won, Lost or CashedOut.
type State interface {
	Phase() Phase
	isState()
}

type Idle struct{}

type BetPlaced struct {
	Bet decimal.Decimal
}

// Resolving is an in-flight round. Deadline is zero when the round waits on
// player actions rather than a scheduled reveal.
type Resolving struct {
	Bet         decimal.Decimal
	Accumulated decimal.Decimal
	Deadline    time.Time
}

type Won struct {
	Bet    decimal.Decimal
	Payout decimal.Decimal
}

type Lost struct {
	Bet decimal.Decimal
}

type CashedOut struct {
	Bet    decimal.Decimal
	Payout decimal.Decimal
}

func (Idle) Phase() Phase      { return PhaseIdle }
func (BetPlaced) Phase() Phase { return PhaseBetPlaced }
func (Resolving) Phase() Phase { return PhaseResolving }
func (Won) Phase() Phase       { return PhaseWon }
func (Lost) Phase() Phase      { return PhaseLost }
func (CashedOut) Phase() Phase { return PhaseCashedOut }

func (Idle) isState()      {}
func (BetPlaced) isState() {}
func (Resolving) isState() {}
func (Won) isState()       {}
func (Lost) isState()      {}
func (CashedOut) isState() {}

// Wallet is the slice of the ledger a round settles against.
type Wallet interface {
	Balance() decimal.Decimal
	PlaceBet(ctx context.Context, amount decimal.Decimal, game string) error
	SettleWin(ctx context.Context, amount decimal.Decimal, game string) error
	NoteLoss(ctx context.Context, amount decimal.Decimal, game string) error
}

// RoundObserver is told how every round ended.
type RoundObserver interface {
	RoundFinished(game, outcome string)
}

// Round drives the debit, resolve and credit lifecycle shared by every engine.
// It is not safe for concurrent use; the owning engine serializes access with
// the mutex passed to Schedule.
type Round struct {
	game     GameType
	name     string
	wallet   Wallet
	limits   BetLimits
	observer RoundObserver
	log      *zap.Logger

	state State
	seq   uint64
	timer *time.Timer
}

func newRound(game GameType, name string, deps Deps, limits BetLimits) *Round {
	return &Round{
		game:     game,
		name:     name,
		wallet:   deps.Wallet,
		limits:   limits,
		observer: deps.Observer,
		log:      deps.logger().Named(string(game)),
		state:    Idle{},
	}
}

func (r *Round) State() State { return r.state }

// InFlight reports whether a stake is debited and not yet settled.
func (r *Round) InFlight() bool {
	switch r.state.(type) {
	case BetPlaced, Resolving:
		return true
	}
	return false
}

func (r *Round) Bet() decimal.Decimal {
	switch s := r.state.(type) {
	case BetPlaced:
		return s.Bet
	case Resolving:
		return s.Bet
	case Won:
		return s.Bet
	case Lost:
		return s.Bet
	case CashedOut:
		return s.Bet
	}
	return decimal.Zero
}

// Accumulated returns the winnings gathered so far by an in-flight round.
func (r *Round) Accumulated() decimal.Decimal {
	if s, ok := r.state.(Resolving); ok {
		return s.Accumulated
	}
	return decimal.Zero
}

// ValidateBet checks the stake against the table limits and the balance
// without touching the wallet.
func (r *Round) ValidateBet(amount decimal.Decimal) error {
	if r.InFlight() {
		return fmt.Errorf("%s: round in progress: %w", r.game, ErrInvalidGameState)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("bet %s: %w", amount, ledger.ErrInvalidAmount)
	}
	if amount.LessThan(r.limits.MinAmount()) || amount.GreaterThan(r.limits.MaxAmount()) {
		return fmt.Errorf("bet %s outside [%v, %v]: %w", amount, r.limits.Min, r.limits.Max, ledger.ErrInvalidAmount)
	}
	if amount.GreaterThan(r.wallet.Balance()) {
		return fmt.Errorf("bet %s: %w", amount, ledger.ErrInsufficientFunds)
	}
	return nil
}

// Begin debits the stake and moves to BetPlaced. Any previous terminal round
// is discarded. On failure the round keeps its current state.
func (r *Round) Begin(ctx context.Context, amount decimal.Decimal) error {
	amount = ledger.Money(amount)
	if err := r.ValidateBet(amount); err != nil {
		return err
	}
	if err := r.wallet.PlaceBet(ctx, amount, r.name); err != nil {
		return err
	}
	r.stopTimer()
	r.seq++
	r.state = BetPlaced{Bet: amount}
	r.log.Debug("bet placed", zap.String("bet", amount.String()))
	return nil
}

// Resolve records accumulated winnings and an optional reveal deadline.
func (r *Round) Resolve(accumulated decimal.Decimal, deadline time.Time) error {
	if !r.InFlight() {
		return fmt.Errorf("%s: resolve from %s: %w", r.game, r.state.Phase(), ErrInvalidGameState)
	}
	r.state = Resolving{Bet: r.Bet(), Accumulated: ledger.Money(accumulated), Deadline: deadline}
	return nil
}

// Win credits payout and ends the round.
func (r *Round) Win(ctx context.Context, payout decimal.Decimal) error {
	if !r.InFlight() {
		return fmt.Errorf("%s: win from %s: %w", r.game, r.state.Phase(), ErrInvalidGameState)
	}
	payout = ledger.Money(payout)
	if err := r.wallet.SettleWin(ctx, payout, r.name); err != nil {
		return err
	}
	r.stopTimer()
	r.state = Won{Bet: r.Bet(), Payout: payout}
	r.finished(PhaseWon)
	return nil
}

// Lose forfeits the stake.
func (r *Round) Lose() error {
	if !r.InFlight() {
		return fmt.Errorf("%s: lose from %s: %w", r.game, r.state.Phase(), ErrInvalidGameState)
	}
	r.stopTimer()
	r.state = Lost{Bet: r.Bet()}
	r.finished(PhaseLost)
	return nil
}

// CashOut settles a voluntary early exit of a multi-step round.
func (r *Round) CashOut(ctx context.Context, payout decimal.Decimal) error {
	if _, ok := r.state.(Resolving); !ok {
		return fmt.Errorf("%s: cash out from %s: %w", r.game, r.state.Phase(), ErrInvalidGameState)
	}
	payout = ledger.Money(payout)
	if err := r.wallet.SettleWin(ctx, payout, r.name); err != nil {
		return err
	}
	r.stopTimer()
	r.state = CashedOut{Bet: r.Bet(), Payout: payout}
	r.finished(PhaseCashedOut)
	return nil
}

// Abandon drops an in-flight round. The stake stays with the house and a Game
// Loss entry records it. A settled round simply returns to Idle.
func (r *Round) Abandon(ctx context.Context) error {
	if !r.InFlight() {
		r.state = Idle{}
		return nil
	}
	bet := r.Bet()
	if err := r.wallet.NoteLoss(ctx, bet, r.name); err != nil {
		return err
	}
	r.stopTimer()
	r.seq++
	r.state = Idle{}
	r.finished("abandoned")
	r.log.Info("round abandoned", zap.String("bet", bet.String()))
	return nil
}

// Reset returns a settled round to Idle.
func (r *Round) Reset() error {
	if r.InFlight() {
		return fmt.Errorf("%s: reset while in flight: %w", r.game, ErrInvalidGameState)
	}
	r.state = Idle{}
	return nil
}

// Schedule runs reveal after delay while holding mu, unless the round was
// restarted or abandoned in the meantime. A non-positive delay runs reveal at
// once on the caller's goroutine, which must already hold mu.
func (r *Round) Schedule(delay time.Duration, mu sync.Locker, reveal func()) {
	r.stopTimer()
	if delay <= 0 {
		reveal()
		return
	}
	seq := r.seq
	r.timer = time.AfterFunc(delay, func() {
		mu.Lock()
		defer mu.Unlock()
		if r.seq != seq || !r.InFlight() {
			return
		}
		r.timer = nil
		reveal()
	})
}

func (r *Round) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Round) finished(outcome Phase) {
	r.log.Debug("round finished", zap.String("outcome", string(outcome)))
	if r.observer != nil {
		r.observer.RoundFinished(string(r.game), string(outcome))
	}
}

// View renders the protocol state for clients.
func (r *Round) View() RoundView {
	v := RoundView{
		Game:        r.game,
		Name:        r.name,
		Phase:       r.state.Phase(),
		Bet:         r.Bet(),
		Accumulated: r.Accumulated(),
	}
	switch s := r.state.(type) {
	case Resolving:
		if !s.Deadline.IsZero() {
			d := s.Deadline
			v.RevealAt = &d
		}
	case Won:
		v.Payout = s.Payout
	case CashedOut:
		v.Payout = s.Payout
	}
	return v
}
