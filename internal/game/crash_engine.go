package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CrashEngine runs one rocket flight per bet. The multiplier grows from 1.00
// after the launch delay and the round is lost once it reaches the hidden
// crash point.
type CrashEngine struct {
	mu    sync.Mutex
	deps  Deps
	rules CrashRules
	round *Round
	log   *zap.Logger

	crashPoint  float64
	launchAt    time.Time
	autoCashout float64
	multiplier  float64
	cashedOutAt float64

	stopChan chan struct{}
	done     chan struct{}
}

func NewCrashEngine(deps Deps, rules *Rules) *CrashEngine {
	return &CrashEngine{
		deps:       deps,
		rules:      rules.Crash,
		round:      newRound(GameTypeCrash, rules.Crash.Name, deps, rules.Bet),
		log:        deps.logger().Named("crash"),
		multiplier: 1.0,
	}
}

func (e *CrashEngine) GetType() GameType { return GameTypeCrash }

func (e *CrashEngine) Name() string { return e.rules.Name }

// Start launches the ticker that advances flights, settles crashes and fires
// auto-cashouts.
func (e *CrashEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopChan != nil {
		return nil
	}
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	go e.loop(ctx, e.stopChan, e.done)
	return nil
}

func (e *CrashEngine) Stop() error {
	e.mu.Lock()
	stop, done := e.stopChan, e.done
	e.stopChan, e.done = nil, nil
	e.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (e *CrashEngine) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.rules.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick(context.WithoutCancel(ctx))
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (e *CrashEngine) tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance(ctx, e.deps.now())
}

func (e *CrashEngine) GetState() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advance(context.Background(), e.deps.now())
	return e.view()
}

func (e *CrashEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if req.AutoCashout != 0 && req.AutoCashout <= 1 {
		return nil, fmt.Errorf("auto cashout %.2f must exceed 1.00: %w", req.AutoCashout, ErrInvalidChoice)
	}
	if err := e.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}

	e.crashPoint = e.drawCrashPoint()
	e.launchAt = e.deps.now().Add(e.rules.LaunchDelay())
	e.autoCashout = round2(req.AutoCashout)
	e.multiplier = 1.0
	e.cashedOutAt = 0
	_ = e.round.Resolve(decimal.Zero, e.launchAt)

	e.log.Debug("flight scheduled",
		zap.Float64("crash_point", e.crashPoint),
		zap.Time("launch_at", e.launchAt))
	e.deps.Hub.Broadcast(WSMessage{Type: "round_start", Game: GameTypeCrash, Data: e.view()})
	return e.view(), nil
}

// drawCrashPoint picks a tier by weight, then a uniform point inside it.
func (e *CrashEngine) drawCrashPoint() float64 {
	src := e.deps.source()
	r := src.Float64()
	tier := e.rules.Tiers[len(e.rules.Tiers)-1]
	var cum float64
	for _, t := range e.rules.Tiers {
		cum += t.Weight
		if r < cum {
			tier = t
			break
		}
	}
	return round2(tier.Min + src.Float64()*(tier.Max-tier.Min))
}

// advance brings the flight up to now. Callers hold e.mu.
func (e *CrashEngine) advance(ctx context.Context, now time.Time) {
	if !e.round.InFlight() || now.Before(e.launchAt) {
		return
	}
	m := e.rules.MultiplierAt(now.Sub(e.launchAt))
	if m >= e.crashPoint {
		e.crash()
		return
	}
	e.multiplier = m

	if e.autoCashout > 0 && m >= e.autoCashout {
		if err := e.cashOut(ctx, m); err != nil {
			e.log.Error("auto cashout", zap.Error(err))
		}
		return
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "update", Game: GameTypeCrash, Data: map[string]any{"multiplier": m}})
}

func (e *CrashEngine) crash() {
	e.multiplier = e.crashPoint
	if err := e.round.Lose(); err != nil {
		e.log.Error("crash", zap.Error(err))
		return
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "crash", Game: GameTypeCrash, Data: e.view()})
}

func (e *CrashEngine) cashOut(ctx context.Context, m float64) error {
	payout := e.round.Bet().Mul(decimal.NewFromFloat(m))
	if err := e.round.CashOut(ctx, payout); err != nil {
		return err
	}
	e.cashedOutAt = m
	e.deps.Hub.Broadcast(WSMessage{Type: "cashout", Game: GameTypeCrash, Data: e.view()})
	return nil
}

// ProcessAction supports cashout. A request that arrives after the crash point
// was reached settles the crash instead.
func (e *CrashEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	if action != ActionCashout {
		return nil, unknownAction(GameTypeCrash, action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.round.InFlight() {
		return nil, fmt.Errorf("crash: no flight: %w", ErrInvalidGameState)
	}
	now := e.deps.now()
	if now.Before(e.launchAt) {
		return nil, fmt.Errorf("crash: not launched yet: %w", ErrInvalidGameState)
	}
	m := e.rules.MultiplierAt(now.Sub(e.launchAt))
	if m >= e.crashPoint {
		e.crash()
		return e.view(), nil
	}
	e.multiplier = m
	if err := e.cashOut(ctx, m); err != nil {
		return nil, err
	}
	return e.view(), nil
}

func (e *CrashEngine) Abandon(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.round.Abandon(ctx); err != nil {
		return nil, err
	}
	e.multiplier = 1.0
	return e.view(), nil
}

func (e *CrashEngine) view() CrashView {
	v := CrashView{
		RoundView:   e.round.View(),
		Multiplier:  e.multiplier,
		AutoCashout: e.autoCashout,
		CashedOutAt: e.cashedOutAt,
	}
	switch e.round.State().(type) {
	case Resolving, BetPlaced:
		launch := e.launchAt
		v.LaunchAt = &launch
	case Lost, CashedOut, Won:
		v.CrashPoint = e.crashPoint
	}
	return v
}
