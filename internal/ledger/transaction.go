package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit    Kind = "Deposit"
	KindWithdrawal Kind = "Withdrawal"
	KindGameWin    Kind = "Game Win"
	// KindGameLoss never moves the balance; it records a stake forfeited by an
	// abandoned round.
	KindGameLoss Kind = "Game Loss"
	KindGameBet  Kind = "Game Bet"
)

type Transaction struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
}

// Snapshot is everything the ledger persists: the balance and the retained
// transaction log, newest first.
type Snapshot struct {
	Balance      decimal.Decimal `json:"balance"`
	Transactions []Transaction   `json:"transactions"`
}

// Money normalizes an amount to two-decimal currency precision.
func Money(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Reconcile replays a transaction log (any order) on top of an initial balance.
// Game Loss entries are informational and do not contribute.
func Reconcile(initial decimal.Decimal, txs []Transaction) decimal.Decimal {
	balance := initial
	for _, tx := range txs {
		switch tx.Type {
		case KindDeposit, KindGameWin:
			balance = balance.Add(tx.Amount)
		case KindWithdrawal, KindGameBet:
			balance = balance.Sub(tx.Amount)
		}
	}
	return balance
}
