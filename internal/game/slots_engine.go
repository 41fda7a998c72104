package game

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type SlotsEngine struct {
	mu    sync.Mutex
	deps  Deps
	rules SlotsRules
	delay time.Duration
	round *Round
	reels []string
	log   *zap.Logger
}

func NewSlotsEngine(deps Deps, rules *Rules) *SlotsEngine {
	return &SlotsEngine{
		deps:  deps,
		rules: rules.Slots,
		delay: rules.RevealDelay,
		round: newRound(GameTypeSlots, rules.Slots.Name, deps, rules.Bet),
		log:   deps.logger().Named("slots"),
	}
}

func (e *SlotsEngine) GetType() GameType { return GameTypeSlots }

func (e *SlotsEngine) Name() string { return e.rules.Name }

func (e *SlotsEngine) Start(ctx context.Context) error { return nil }

func (e *SlotsEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round.stopTimer()
	return nil
}

func (e *SlotsEngine) GetState() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// PlaceBet debits the stake, spins every reel and reveals after the configured
// delay.
func (e *SlotsEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}
	src := e.deps.source()
	reels := make([]string, e.rules.Reels)
	for i := range reels {
		reels[i] = e.rules.Symbols[src.IntN(len(e.rules.Symbols))]
	}
	e.reels = nil

	_ = e.round.Resolve(decimal.Zero, e.deps.now().Add(e.delay))
	e.round.Schedule(e.delay, &e.mu, func() { e.settle(ctx, reels) })
	return e.view(), nil
}

func (e *SlotsEngine) settle(ctx context.Context, reels []string) {
	e.reels = reels
	bet := e.round.Bet()

	var err error
	if allEqual(reels) {
		mult := decimal.NewFromFloat(e.rules.Multiplier(reels[0]))
		err = e.round.Win(context.WithoutCancel(ctx), bet.Mul(mult).Add(bet))
	} else {
		err = e.round.Lose()
	}
	if err != nil {
		e.log.Error("settle spin", zap.Error(err))
		return
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeSlots, Data: e.view()})
}

func (e *SlotsEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	return nil, unknownAction(GameTypeSlots, action)
}

func (e *SlotsEngine) Abandon(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.round.Abandon(ctx); err != nil {
		return nil, err
	}
	e.reels = nil
	return e.view(), nil
}

func (e *SlotsEngine) view() SlotsView {
	return SlotsView{RoundView: e.round.View(), Reels: e.reels}
}

func allEqual(symbols []string) bool {
	for _, s := range symbols[1:] {
		if s != symbols[0] {
			return false
		}
	}
	return true
}
