package game

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	GuessHigher = "higher"
	GuessLower  = "lower"

	NoticeDeckExhausted = "Колода закончилась. Пожалуйста, начните новую игру."
)

var (
	cardSuits = []string{"♠", "♥", "♦", "♣"}
	cardRanks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}
)

// FullDeck returns the 52 cards in suit-major order. Values run 2..14 with
// aces high.
func FullDeck() []Card {
	deck := make([]Card, 0, len(cardSuits)*len(cardRanks))
	for _, suit := range cardSuits {
		for i, rank := range cardRanks {
			deck = append(deck, Card{Rank: rank, Suit: suit, Value: i + 2})
		}
	}
	return deck
}

// CardClashEngine is hi-lo: guess whether the next card ranks higher or lower
// than the current one. Every correct guess grows the streak pot; ties and
// wrong guesses lose everything.
type CardClashEngine struct {
	mu    sync.Mutex
	deps  Deps
	rules CardClashRules
	round *Round
	log   *zap.Logger

	deck     []Card
	pos      int
	previous *Card
	streak   decimal.Decimal
	correct  int
	notice   string
}

func NewCardClashEngine(deps Deps, rules *Rules) *CardClashEngine {
	return &CardClashEngine{
		deps:  deps,
		rules: rules.CardClash,
		round: newRound(GameTypeCardClash, rules.CardClash.Name, deps, rules.Bet),
		log:   deps.logger().Named("cardclash"),
	}
}

func (e *CardClashEngine) GetType() GameType { return GameTypeCardClash }

func (e *CardClashEngine) Name() string { return e.rules.Name }

func (e *CardClashEngine) Start(ctx context.Context) error { return nil }

func (e *CardClashEngine) Stop() error { return nil }

func (e *CardClashEngine) GetState() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view()
}

// PlaceBet debits the stake, shuffles a fresh deck and turns the first card.
func (e *CardClashEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}
	e.deck = e.shuffle()
	e.pos = 0
	e.previous = nil
	e.streak = decimal.Zero
	e.correct = 0
	e.notice = ""
	_ = e.round.Resolve(decimal.Zero, noDeadline)
	return e.view(), nil
}

// shuffle is Fisher-Yates over a full deck.
func (e *CardClashEngine) shuffle() []Card {
	src := e.deps.source()
	deck := FullDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func (e *CardClashEngine) remaining() int {
	if e.deck == nil {
		return 0
	}
	return len(e.deck) - e.pos
}

func (e *CardClashEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch action {
	case ActionGuess:
		err = e.guess(ctx, req.Guess)
	case ActionCashout:
		err = e.cashOut(ctx)
	default:
		return nil, unknownAction(GameTypeCardClash, action)
	}
	if err != nil {
		return nil, err
	}
	return e.view(), nil
}

func (e *CardClashEngine) guess(ctx context.Context, guess string) error {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess != GuessHigher && guess != GuessLower {
		return fmt.Errorf("card clash guess %q: %w", guess, ErrInvalidChoice)
	}
	if !e.round.InFlight() {
		return fmt.Errorf("card clash: no active round: %w", ErrInvalidGameState)
	}
	if e.remaining() < 2 {
		return e.exhaust(ctx)
	}

	current, next := e.deck[e.pos], e.deck[e.pos+1]
	e.previous = &current
	e.pos++

	won := (next.Value > current.Value && guess == GuessHigher) ||
		(next.Value < current.Value && guess == GuessLower)
	if !won {
		if err := e.round.Lose(); err != nil {
			return err
		}
		e.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeCardClash, Data: e.round.View()})
		return nil
	}

	bet := e.round.Bet()
	gain := bet.Add(e.streak).Mul(decimal.NewFromFloat(e.rules.Multiplier - 1))
	e.streak = e.streak.Add(gain).Round(2)
	e.correct++
	_ = e.round.Resolve(e.streak, noDeadline)
	return nil
}

// exhaust ends a round that has no card left to guess against. The stake and
// the uncollected streak are forfeited and the table returns to idle.
func (e *CardClashEngine) exhaust(ctx context.Context) error {
	left := e.remaining()
	if err := e.round.Abandon(ctx); err != nil {
		return err
	}
	e.log.Info("deck exhausted, round forfeited",
		zap.Int("cards_left", left),
		zap.String("streak", e.streak.String()))
	e.clear()
	e.notice = NoticeDeckExhausted
	e.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeCardClash, Data: e.view()})
	return fmt.Errorf("card clash: %d cards left: %w", left, ErrDeckExhausted)
}

func (e *CardClashEngine) clear() {
	e.deck, e.pos, e.previous = nil, 0, nil
	e.streak = decimal.Zero
	e.correct = 0
	e.notice = ""
}

func (e *CardClashEngine) cashOut(ctx context.Context) error {
	if !e.round.InFlight() || !e.streak.IsPositive() {
		return fmt.Errorf("card clash: nothing to cash out: %w", ErrInvalidGameState)
	}
	if err := e.round.CashOut(ctx, e.round.Bet().Add(e.streak)); err != nil {
		return err
	}
	e.deps.Hub.Broadcast(WSMessage{Type: "cashout", Game: GameTypeCardClash, Data: e.round.View()})
	return nil
}

func (e *CardClashEngine) Abandon(ctx context.Context) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.round.Abandon(ctx); err != nil {
		return nil, err
	}
	e.clear()
	return e.view(), nil
}

func (e *CardClashEngine) view() CardClashView {
	v := CardClashView{
		RoundView: e.round.View(),
		Previous:  e.previous,
		Remaining: e.remaining(),
		Streak:    e.correct,
		Notice:    e.notice,
	}
	if e.pos < len(e.deck) {
		c := e.deck[e.pos]
		v.Current = &c
	}
	return v
}
