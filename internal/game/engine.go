package game

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type GameType string

const (
	GameTypeSlots     GameType = "slots"
	GameTypeCoinFlip  GameType = "coin-flip"
	GameTypeCrash     GameType = "cosmic-crash"
	GameTypeDiceDuel  GameType = "digital-dice-duel"
	GameTypeMines     GameType = "data-mine-sweeper"
	GameTypeCardClash GameType = "card-clash"
)

const (
	ActionCashout = "cashout"
	ActionReveal  = "reveal"
	ActionFlag    = "flag"
	ActionGuess   = "guess"
)

type BetRequest struct {
	Amount decimal.Decimal `json:"amount"`
	// Choice is the called side for coin flip.
	Choice string `json:"choice,omitempty"`
	// AutoCashout is an optional crash multiplier target.
	AutoCashout float64 `json:"auto_cashout,omitempty"`
}

type ActionRequest struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Guess string `json:"guess,omitempty"`
}

// noDeadline marks a round that waits on player actions.
var noDeadline time.Time

type GameEngine interface {
	GetType() GameType
	Name() string
	Start(ctx context.Context) error
	Stop() error
	GetState() any
	PlaceBet(ctx context.Context, req BetRequest) (any, error)
	ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error)
	// Abandon drops the in-flight round without refunding the stake.
	Abandon(ctx context.Context) (any, error)
}

// Deps are the collaborators shared by every engine.
type Deps struct {
	Wallet   Wallet
	Source   Source
	Hub      *Hub
	Observer RoundObserver
	Logger   *zap.Logger
	Now      func() time.Time
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) source() Source {
	if d.Source == nil {
		return NewMathSource()
	}
	return d.Source
}

type GameFactory struct {
	engines map[GameType]GameEngine
	order   []GameType
	log     *zap.Logger
}

func NewGameFactory(log *zap.Logger) *GameFactory {
	if log == nil {
		log = zap.NewNop()
	}
	return &GameFactory{
		engines: make(map[GameType]GameEngine),
		log:     log,
	}
}

// NewDefaultFactory registers all six lobby games.
func NewDefaultFactory(deps Deps, rules *Rules) *GameFactory {
	gf := NewGameFactory(deps.logger())
	gf.RegisterEngine(NewSlotsEngine(deps, rules))
	gf.RegisterEngine(NewCoinFlipEngine(deps, rules))
	gf.RegisterEngine(NewCrashEngine(deps, rules))
	gf.RegisterEngine(NewDiceDuelEngine(deps, rules))
	gf.RegisterEngine(NewMinesEngine(deps, rules))
	gf.RegisterEngine(NewCardClashEngine(deps, rules))
	return gf
}

func (gf *GameFactory) RegisterEngine(engine GameEngine) {
	if _, exists := gf.engines[engine.GetType()]; !exists {
		gf.order = append(gf.order, engine.GetType())
	}
	gf.engines[engine.GetType()] = engine
}

func (gf *GameFactory) GetEngine(gameType GameType) (GameEngine, bool) {
	engine, exists := gf.engines[gameType]
	return engine, exists
}

// Engines lists the registered engines in registration order.
func (gf *GameFactory) Engines() []GameEngine {
	out := make([]GameEngine, 0, len(gf.order))
	for _, t := range gf.order {
		out = append(out, gf.engines[t])
	}
	return out
}

func (gf *GameFactory) StartAll(ctx context.Context) error {
	for _, gameType := range gf.order {
		if err := gf.engines[gameType].Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", gameType, err)
		}
		gf.log.Info("engine started", zap.String("game", string(gameType)))
	}
	return nil
}

func (gf *GameFactory) StopAll() error {
	for _, gameType := range gf.order {
		if err := gf.engines[gameType].Stop(); err != nil {
			return fmt.Errorf("stop %s: %w", gameType, err)
		}
		gf.log.Info("engine stopped", zap.String("game", string(gameType)))
	}
	return nil
}

func unknownAction(game GameType, action string) error {
	return fmt.Errorf("%s: action %q: %w", game, action, ErrUnknownAction)
}
