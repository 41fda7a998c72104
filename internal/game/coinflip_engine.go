package game

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CoinFlipEngine struct {
	mu      sync.Mutex
	deps    Deps
	rules   CoinFlipRules
	delay   time.Duration
	round   *Round
	choice  string
	outcome string
	log     *zap.Logger
}

func NewCoinFlipEngine(deps Deps, rules *Rules) *CoinFlipEngine {
	return &CoinFlipEngine{
		deps:  deps,
		rules: rules.CoinFlip,
		delay: rules.RevealDelay,
		round: newRound(GameTypeCoinFlip, rules.CoinFlip.Name, deps, rules.Bet),
		log:   deps.logger().Named("coinflip"),
	}
}

func (e *CoinFlipEngine) GetType() GameType { return GameTypeCoinFlip }

func (e *CoinFlipEngine) Name() string { return e.rules.Name }

func (e *CoinFlipEngine) Start(ctx context.Context) error { return nil }

func (e *CoinFlipEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round.stopTimer()
	return nil
}

func (e *CoinFlipEngine) GetState() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// PlaceBet requires a called side, debits the stake and flips.
func (e *CoinFlipEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	choice := strings.TrimSpace(req.Choice)
	if !slices.Contains(e.rules.Sides, choice) {
		return nil, fmt.Errorf("coin flip call %q: %w", req.Choice, ErrInvalidChoice)
	}
	if err := e.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}

	outcome := e.rules.Sides[1]
	if e.deps.source().Float64() < 0.5 {
		outcome = e.rules.Sides[0]
	}
	e.choice = choice
	e.outcome = ""

	_ = e.round.Resolve(decimal.Zero, e.deps.now().Add(e.delay))
	e.round.Schedule(e.delay, &e.mu, func() { e.settle(context.WithoutCancel(ctx), outcome) })
	return e.view(), nil
}

func (e *CoinFlipEngine) settle(ctx context.Context, outcome string) {
	e.outcome = outcome
	var err error
	if outcome == e.choice {
		err = e.round.Win(ctx, e.round.Bet().Mul(decimal.NewFromFloat(e.rules.Multiplier)))
	} else {
		err = e.round.Lose()
	}
	if err != nil {
		e.log.Error("settle flip", zap.Error(err))
		return
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeCoinFlip, Data: e.view()})
}

func (e *CoinFlipEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	return nil, unknownAction(GameTypeCoinFlip, action)
}

func (e *CoinFlipEngine) Abandon(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.round.Abandon(ctx); err != nil {
		return nil, err
	}
	e.choice, e.outcome = "", ""
	return e.view(), nil
}

func (e *CoinFlipEngine) view() CoinFlipView {
	return CoinFlipView{RoundView: e.round.View(), Choice: e.choice, Outcome: e.outcome}
}
