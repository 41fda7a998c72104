package game

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules holds every payout table and tuning constant of the lobby.
type Rules struct {
	Bet       BetLimits      `yaml:"bet"`
	Slots     SlotsRules     `yaml:"slots"`
	CoinFlip  CoinFlipRules  `yaml:"coin_flip"`
	Crash     CrashRules     `yaml:"crash"`
	DiceDuel  DiceDuelRules  `yaml:"dice_duel"`
	Mines     MinesRules     `yaml:"minesweeper"`
	CardClash CardClashRules `yaml:"card_clash"`

	// RevealDelay is the cosmetic pause before single-shot games settle.
	RevealDelay time.Duration `yaml:"-"`
}

type BetLimits struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (b BetLimits) MinAmount() decimal.Decimal { return decimal.NewFromFloat(b.Min) }

func (b BetLimits) MaxAmount() decimal.Decimal { return decimal.NewFromFloat(b.Max) }

type SlotsRules struct {
	Name              string             `yaml:"name"`
	Reels             int                `yaml:"reels"`
	Symbols           []string           `yaml:"symbols"`
	DefaultMultiplier float64            `yaml:"default_multiplier"`
	Multipliers       map[string]float64 `yaml:"multipliers"`
}

// Multiplier returns the win multiplier for three of symbol.
func (s SlotsRules) Multiplier(symbol string) float64 {
	if m, ok := s.Multipliers[symbol]; ok {
		return m
	}
	return s.DefaultMultiplier
}

type CoinFlipRules struct {
	Name       string   `yaml:"name"`
	Sides      []string `yaml:"sides"`
	Multiplier float64  `yaml:"multiplier"`
}

type CrashTier struct {
	Weight float64 `yaml:"weight"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
}

type CrashRules struct {
	Name          string      `yaml:"name"`
	LaunchDelayMS int         `yaml:"launch_delay_ms"`
	TickMS        int         `yaml:"tick_ms"`
	GrowthBase    float64     `yaml:"growth_base"`
	GrowthStepMS  float64     `yaml:"growth_step_ms"`
	Tiers         []CrashTier `yaml:"tiers"`
}

func (c CrashRules) LaunchDelay() time.Duration {
	return time.Duration(c.LaunchDelayMS) * time.Millisecond
}

func (c CrashRules) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// MultiplierAt returns the displayed multiplier after elapsed flight time,
// rounded to two places.
func (c CrashRules) MultiplierAt(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	ms := float64(elapsed) / float64(time.Millisecond)
	return round2(math.Pow(c.GrowthBase, ms/c.GrowthStepMS))
}

type DiceDuelRules struct {
	Name          string  `yaml:"name"`
	Dice          int     `yaml:"dice"`
	Faces         int     `yaml:"faces"`
	WinMultiplier float64 `yaml:"win_multiplier"`
}

type MinesRules struct {
	Name     string    `yaml:"name"`
	GridSize int       `yaml:"grid_size"`
	Mines    int       `yaml:"mines"`
	Prizes   []float64 `yaml:"prizes"`
}

type CardClashRules struct {
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
}

// DefaultRules returns the embedded rule set.
func DefaultRules() (*Rules, error) {
	return parseRules(defaultRulesYAML, nil)
}

// LoadRules reads path on top of the embedded defaults. An empty path yields
// the defaults.
func LoadRules(path string) (*Rules, error) {
	base, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return parseRules(data, base)
}

func parseRules(data []byte, base *Rules) (*Rules, error) {
	r := &Rules{}
	if base != nil {
		*r = *base
	}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return r, nil
}

func (r *Rules) validate() error {
	var errs []error
	if r.Bet.Min <= 0 || r.Bet.Max < r.Bet.Min {
		errs = append(errs, fmt.Errorf("bet limits [%v, %v]", r.Bet.Min, r.Bet.Max))
	}
	if r.Slots.Reels < 2 || len(r.Slots.Symbols) == 0 {
		errs = append(errs, errors.New("slots need at least two reels and one symbol"))
	}
	if len(r.CoinFlip.Sides) != 2 {
		errs = append(errs, errors.New("coin flip needs exactly two sides"))
	}
	if r.Crash.GrowthBase <= 1 || r.Crash.GrowthStepMS <= 0 || r.Crash.TickMS <= 0 {
		errs = append(errs, errors.New("crash growth law and tick must be positive"))
	}
	var weight float64
	for _, t := range r.Crash.Tiers {
		if t.Min < 1 || t.Max <= t.Min || t.Weight <= 0 {
			errs = append(errs, fmt.Errorf("crash tier %+v", t))
		}
		weight += t.Weight
	}
	if math.Abs(weight-1) > 1e-9 {
		errs = append(errs, fmt.Errorf("crash tier weights sum to %v", weight))
	}
	if r.DiceDuel.Dice < 1 || r.DiceDuel.Faces < 2 {
		errs = append(errs, errors.New("dice duel needs at least one die with two faces"))
	}
	if r.Mines.GridSize < 2 || r.Mines.Mines < 1 || r.Mines.Mines >= r.Mines.GridSize*r.Mines.GridSize {
		errs = append(errs, fmt.Errorf("minesweeper %dx%d with %d mines", r.Mines.GridSize, r.Mines.GridSize, r.Mines.Mines))
	}
	if len(r.Mines.Prizes) == 0 {
		errs = append(errs, errors.New("minesweeper prize table is empty"))
	}
	if r.CardClash.Multiplier <= 1 {
		errs = append(errs, errors.New("card clash multiplier must exceed 1"))
	}
	return errors.Join(errs...)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
