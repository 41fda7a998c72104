package game

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DiceDuelEngine struct {
	mu     sync.Mutex
	deps   Deps
	rules  DiceDuelRules
	delay  time.Duration
	round  *Round
	player []int
	dealer []int
	log    *zap.Logger
}

func NewDiceDuelEngine(deps Deps, rules *Rules) *DiceDuelEngine {
	return &DiceDuelEngine{
		deps:  deps,
		rules: rules.DiceDuel,
		delay: rules.RevealDelay,
		round: newRound(GameTypeDiceDuel, rules.DiceDuel.Name, deps, rules.Bet),
		log:   deps.logger().Named("dice"),
	}
}

func (e *DiceDuelEngine) GetType() GameType { return GameTypeDiceDuel }

func (e *DiceDuelEngine) Name() string { return e.rules.Name }

func (e *DiceDuelEngine) Start(ctx context.Context) error { return nil }

func (e *DiceDuelEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round.stopTimer()
	return nil
}

func (e *DiceDuelEngine) GetState() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// PlaceBet debits the stake and rolls the player's dice, then the dealer's.
func (e *DiceDuelEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}
	player := e.roll()
	dealer := e.roll()
	e.player, e.dealer = nil, nil

	_ = e.round.Resolve(decimal.Zero, e.deps.now().Add(e.delay))
	e.round.Schedule(e.delay, &e.mu, func() { e.settle(context.WithoutCancel(ctx), player, dealer) })
	return e.view(), nil
}

func (e *DiceDuelEngine) roll() []int {
	src := e.deps.source()
	dice := make([]int, e.rules.Dice)
	for i := range dice {
		dice[i] = src.IntN(e.rules.Faces) + 1
	}
	return dice
}

func (e *DiceDuelEngine) settle(ctx context.Context, player, dealer []int) {
	e.player, e.dealer = player, dealer
	bet := e.round.Bet()

	var err error
	switch p, d := sum(player), sum(dealer); {
	case p > d:
		err = e.round.Win(ctx, bet.Mul(decimal.NewFromFloat(e.rules.WinMultiplier)))
	case p == d:
		// push: the stake comes back
		err = e.round.Win(ctx, bet)
	default:
		err = e.round.Lose()
	}
	if err != nil {
		e.log.Error("settle duel", zap.Error(err))
		return
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeDiceDuel, Data: e.view()})
}

func (e *DiceDuelEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	return nil, unknownAction(GameTypeDiceDuel, action)
}

func (e *DiceDuelEngine) Abandon(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.round.Abandon(ctx); err != nil {
		return nil, err
	}
	e.player, e.dealer = nil, nil
	return e.view(), nil
}

func (e *DiceDuelEngine) view() DiceDuelView {
	return DiceDuelView{
		RoundView: e.round.View(),
		Player:    e.player,
		Dealer:    e.dealer,
		PlayerSum: sum(e.player),
		DealerSum: sum(e.dealer),
	}
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
