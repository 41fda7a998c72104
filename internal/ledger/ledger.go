package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// MaxTransactions bounds the retained history. Older entries are dropped.
	MaxTransactions = 100

	DefaultCurrencySymbol = "₽"
)

var (
	DefaultInitialBalance = decimal.NewFromInt(1000)
	DefaultMaxDeposit     = decimal.NewFromInt(10000)
)

// Observer is notified after every committed transaction.
type Observer interface {
	Observe(tx Transaction, balance decimal.Decimal)
}

// Ledger owns the wallet balance and its transaction history. All mutations
// are serialized and persisted before they become visible.
type Ledger struct {
	mu        sync.Mutex
	store     Store
	log       *zap.Logger
	observers []Observer

	balance      decimal.Decimal
	transactions []Transaction

	initial    decimal.Decimal
	maxDeposit decimal.Decimal
	currency   string
	now        func() time.Time
	newID      func() string
}

type Option func(*Ledger)

func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observers = append(l.observers, o) }
}

func WithInitialBalance(v decimal.Decimal) Option {
	return func(l *Ledger) { l.initial = Money(v) }
}

func WithMaxDeposit(v decimal.Decimal) Option {
	return func(l *Ledger) { l.maxDeposit = Money(v) }
}

func WithCurrency(symbol string) Option {
	return func(l *Ledger) { l.currency = symbol }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

// Open restores the ledger from store, or starts a fresh wallet at the initial
// balance when the store is empty.
func Open(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:      store,
		log:        zap.NewNop(),
		initial:    DefaultInitialBalance,
		maxDeposit: DefaultMaxDeposit,
		currency:   DefaultCurrencySymbol,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !found {
		l.balance = l.initial
		l.transactions = []Transaction{}
		l.log.Info("ledger initialized", zap.String("balance", l.balance.String()))
		return l, nil
	}
	if snap.Balance.IsNegative() {
		return nil, fmt.Errorf("load ledger: persisted balance %s is negative", snap.Balance)
	}
	l.balance = snap.Balance
	l.transactions = snap.Transactions
	if len(l.transactions) > MaxTransactions {
		l.transactions = l.transactions[:MaxTransactions]
	}
	l.log.Info("ledger restored",
		zap.String("balance", l.balance.String()),
		zap.Int("transactions", len(l.transactions)))
	return l, nil
}

func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Transactions returns a copy of the retained history, newest first.
func (l *Ledger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	txs := make([]Transaction, len(l.transactions))
	copy(txs, l.transactions)
	return Snapshot{Balance: l.balance, Transactions: txs}
}

func (l *Ledger) InitialBalance() decimal.Decimal { return l.initial }

func (l *Ledger) MaxDeposit() decimal.Decimal { return l.maxDeposit }

func (l *Ledger) Currency() string { return l.currency }

func (l *Ledger) Deposit(ctx context.Context, amount decimal.Decimal) (Transaction, error) {
	amount = Money(amount)
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("deposit %s: %w", amount, ErrInvalidAmount)
	}
	if amount.GreaterThan(l.maxDeposit) {
		return Transaction{}, fmt.Errorf("deposit %s above %s: %w", amount, l.maxDeposit, ErrDepositLimit)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, KindDeposit, amount, amount, l.describe(KindDeposit, amount))
}

func (l *Ledger) Withdraw(ctx context.Context, amount decimal.Decimal) (Transaction, error) {
	amount = Money(amount)
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("withdraw %s: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.apply(ctx, KindWithdrawal, amount, amount.Neg(), l.describe(KindWithdrawal, amount))
}

// PlaceBet debits a stake for the named game.
func (l *Ledger) PlaceBet(ctx context.Context, amount decimal.Decimal, game string) error {
	amount = Money(amount)
	if !amount.IsPositive() {
		return fmt.Errorf("bet %s: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.apply(ctx, KindGameBet, amount, amount.Neg(), "Ставка в "+game)
	return err
}

// SettleWin credits a payout for the named game. A zero payout is a no-op.
func (l *Ledger) SettleWin(ctx context.Context, amount decimal.Decimal, game string) error {
	amount = Money(amount)
	if amount.IsNegative() {
		return fmt.Errorf("win %s: %w", amount, ErrInvalidAmount)
	}
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.apply(ctx, KindGameWin, amount, amount, "Выигрыш в "+game)
	return err
}

// NoteLoss records a forfeited stake without touching the balance.
func (l *Ledger) NoteLoss(ctx context.Context, amount decimal.Decimal, game string) error {
	amount = Money(amount)
	if !amount.IsPositive() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.apply(ctx, KindGameLoss, amount, decimal.Zero, "Проигрыш в "+game)
	return err
}

// apply must be called with l.mu held.
func (l *Ledger) apply(ctx context.Context, kind Kind, amount, delta decimal.Decimal, desc string) (Transaction, error) {
	next := l.balance.Add(delta)
	if next.IsNegative() {
		return Transaction{}, fmt.Errorf("%s %s with balance %s: %w", kind, amount, l.balance, ErrInsufficientFunds)
	}

	tx := Transaction{
		ID:          l.newID(),
		Type:        kind,
		Amount:      amount,
		Timestamp:   l.now().UTC().Truncate(time.Millisecond),
		Description: desc,
	}
	keep := len(l.transactions)
	if keep > MaxTransactions-1 {
		keep = MaxTransactions - 1
	}
	txs := make([]Transaction, 0, keep+1)
	txs = append(txs, tx)
	txs = append(txs, l.transactions[:keep]...)

	if err := l.store.Save(ctx, Snapshot{Balance: next, Transactions: txs}); err != nil {
		l.log.Error("persist ledger", zap.String("type", string(kind)), zap.Error(err))
		return Transaction{}, fmt.Errorf("persist %s: %w", kind, err)
	}
	l.balance = next
	l.transactions = txs

	l.log.Info("transaction",
		zap.String("type", string(kind)),
		zap.String("amount", amount.String()),
		zap.String("balance", next.String()))
	for _, o := range l.observers {
		o.Observe(tx, next)
	}
	return tx, nil
}

func (l *Ledger) describe(kind Kind, amount decimal.Decimal) string {
	return fmt.Sprintf("%s of %s%s", kind, amount.StringFixed(2), l.currency)
}
