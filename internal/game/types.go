package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundView is the protocol part of every engine's state.
type RoundView struct {
	Game        GameType        `json:"game"`
	Name        string          `json:"name"`
	Phase       Phase           `json:"phase"`
	Bet         decimal.Decimal `json:"bet"`
	Accumulated decimal.Decimal `json:"accumulated"`
	Payout      decimal.Decimal `json:"payout"`
	RevealAt    *time.Time      `json:"reveal_at,omitempty"`
}

type SlotsView struct {
	RoundView
	Reels []string `json:"reels,omitempty"`
}

type CoinFlipView struct {
	RoundView
	Choice  string `json:"choice,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

type CrashView struct {
	RoundView
	Multiplier  float64    `json:"multiplier"`
	CrashPoint  float64    `json:"crash_point,omitempty"`
	AutoCashout float64    `json:"auto_cashout,omitempty"`
	CashedOutAt float64    `json:"cashed_out_at,omitempty"`
	LaunchAt    *time.Time `json:"launch_at,omitempty"`
}

type DiceDuelView struct {
	RoundView
	Player    []int `json:"player,omitempty"`
	Dealer    []int `json:"dealer,omitempty"`
	PlayerSum int   `json:"player_sum,omitempty"`
	DealerSum int   `json:"dealer_sum,omitempty"`
}

type CellView struct {
	Revealed      bool    `json:"revealed"`
	Flagged       bool    `json:"flagged"`
	Mine          bool    `json:"mine,omitempty"`
	AdjacentMines int     `json:"adjacent_mines,omitempty"`
	Prize         float64 `json:"prize,omitempty"`
}

type MinesView struct {
	RoundView
	Grid         [][]CellView `json:"grid,omitempty"`
	Mines        int          `json:"mines"`
	FlagsPlaced  int          `json:"flags_placed"`
	RevealedSafe int          `json:"revealed_safe"`
	TotalSafe    int          `json:"total_safe"`
	CanCashOut   bool         `json:"can_cash_out"`
}

type Card struct {
	Rank  string `json:"rank"`
	Suit  string `json:"suit"`
	Value int    `json:"value"`
}

type CardClashView struct {
	RoundView
	Current   *Card `json:"current,omitempty"`
	Previous  *Card `json:"previous,omitempty"`
	Remaining int   `json:"remaining"`
	Streak    int   `json:"streak"`
	// Notice explains why the table was reset, e.g. after the deck ran out.
	Notice string `json:"notice,omitempty"`
}

type WSMessage struct {
	Type string   `json:"type"`
	Game GameType `json:"game,omitempty"`
	Data any      `json:"data,omitempty"`
}
