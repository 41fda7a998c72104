package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type mineCell struct {
	mine     bool
	revealed bool
	flagged  bool
	adjacent int
	prize    float64
}

// MinesEngine is a classic minesweeper board where safe cells may hide
// prizes. Prizes found so far can be cashed out together with the stake.
type MinesEngine struct {
	mu    sync.Mutex
	deps  Deps
	rules MinesRules
	round *Round
	log   *zap.Logger

	grid     [][]mineCell
	revealed int
	flags    int
	prizes   decimal.Decimal
}

func NewMinesEngine(deps Deps, rules *Rules) *MinesEngine {
	return &MinesEngine{
		deps:  deps,
		rules: rules.Mines,
		round: newRound(GameTypeMines, rules.Mines.Name, deps, rules.Bet),
		log:   deps.logger().Named("mines"),
	}
}

func (m *MinesEngine) GetType() GameType { return GameTypeMines }

func (m *MinesEngine) Name() string { return m.rules.Name }

func (m *MinesEngine) Start(ctx context.Context) error { return nil }

func (m *MinesEngine) Stop() error { return nil }

func (m *MinesEngine) GetState() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view()
}

func (m *MinesEngine) totalSafe() int {
	return m.rules.GridSize*m.rules.GridSize - m.rules.Mines
}

// PlaceBet debits the stake and lays out a fresh board.
func (m *MinesEngine) PlaceBet(ctx context.Context, req BetRequest) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.round.Begin(ctx, req.Amount); err != nil {
		return nil, err
	}
	m.grid = m.generateGrid()
	m.revealed, m.flags = 0, 0
	m.prizes = decimal.Zero
	_ = m.round.Resolve(decimal.Zero, noDeadline)

	m.log.Debug("board ready", zap.Int("size", m.rules.GridSize), zap.Int("mines", m.rules.Mines))
	return m.view(), nil
}

// generateGrid draws a prize for every cell, then places mines uniformly,
// re-drawing on collision.
func (m *MinesEngine) generateGrid() [][]mineCell {
	src := m.deps.source()
	size := m.rules.GridSize

	grid := make([][]mineCell, size)
	for r := range grid {
		grid[r] = make([]mineCell, size)
		for c := range grid[r] {
			grid[r][c].prize = m.rules.Prizes[src.IntN(len(m.rules.Prizes))]
		}
	}

	for placed := 0; placed < m.rules.Mines; {
		r, c := src.IntN(size), src.IntN(size)
		if grid[r][c].mine {
			continue
		}
		grid[r][c].mine = true
		grid[r][c].prize = 0
		placed++
	}

	for r := range grid {
		for c := range grid[r] {
			if grid[r][c].mine {
				continue
			}
			m.eachNeighbour(r, c, func(nr, nc int) {
				if grid[nr][nc].mine {
					grid[r][c].adjacent++
				}
			})
		}
	}
	return grid
}

func (m *MinesEngine) eachNeighbour(r, c int, fn func(nr, nc int)) {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			nr, nc := r+dr, c+dc
			if nr >= 0 && nr < m.rules.GridSize && nc >= 0 && nc < m.rules.GridSize {
				fn(nr, nc)
			}
		}
	}
}

func (m *MinesEngine) ProcessAction(ctx context.Context, action string, req ActionRequest) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	switch action {
	case ActionReveal:
		err = m.reveal(ctx, req.Row, req.Col)
	case ActionFlag:
		err = m.toggleFlag(req.Row, req.Col)
	case ActionCashout:
		err = m.cashOut(ctx)
	default:
		return nil, unknownAction(GameTypeMines, action)
	}
	if err != nil {
		return nil, err
	}
	return m.view(), nil
}

func (m *MinesEngine) cell(row, col int) (*mineCell, error) {
	if !m.round.InFlight() {
		return nil, fmt.Errorf("mines: no active board: %w", ErrInvalidGameState)
	}
	if row < 0 || row >= m.rules.GridSize || col < 0 || col >= m.rules.GridSize {
		return nil, fmt.Errorf("mines: cell (%d,%d) off the board: %w", row, col, ErrInvalidChoice)
	}
	return &m.grid[row][col], nil
}

func (m *MinesEngine) reveal(ctx context.Context, row, col int) error {
	cell, err := m.cell(row, col)
	if err != nil {
		return err
	}
	if cell.revealed || cell.flagged {
		return fmt.Errorf("mines: cell (%d,%d) is not hidden: %w", row, col, ErrInvalidGameState)
	}

	if cell.mine {
		for r := range m.grid {
			for c := range m.grid[r] {
				if m.grid[r][c].mine {
					m.grid[r][c].revealed = true
				}
			}
		}
		if err := m.round.Lose(); err != nil {
			return err
		}
		m.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeMines, Data: m.round.View()})
		return nil
	}

	m.flood(row, col)
	_ = m.round.Resolve(m.prizes, noDeadline)

	if m.revealed == m.totalSafe() {
		if err := m.round.Win(ctx, m.prizes.Add(m.round.Bet())); err != nil {
			return err
		}
		m.deps.Hub.Broadcast(WSMessage{Type: "settled", Game: GameTypeMines, Data: m.round.View()})
	}
	return nil
}

// flood reveals (row, col) and spreads through cells that have neither
// adjacent mines nor a prize.
func (m *MinesEngine) flood(row, col int) {
	cell := &m.grid[row][col]
	if cell.revealed || cell.flagged || cell.mine {
		return
	}
	cell.revealed = true
	m.revealed++
	if cell.prize > 0 {
		m.prizes = m.prizes.Add(decimal.NewFromFloat(cell.prize))
	}
	if cell.adjacent == 0 && cell.prize == 0 {
		m.eachNeighbour(row, col, m.flood)
	}
}

func (m *MinesEngine) toggleFlag(row, col int) error {
	cell, err := m.cell(row, col)
	if err != nil {
		return err
	}
	if cell.revealed {
		return fmt.Errorf("mines: cell (%d,%d) already revealed: %w", row, col, ErrInvalidGameState)
	}
	if cell.flagged {
		cell.flagged = false
		m.flags--
		return nil
	}
	if m.flags >= m.rules.Mines {
		return fmt.Errorf("mines: all %d flags placed: %w", m.rules.Mines, ErrInvalidGameState)
	}
	cell.flagged = true
	m.flags++
	return nil
}

func (m *MinesEngine) cashOut(ctx context.Context) error {
	if !m.round.InFlight() || !m.prizes.IsPositive() {
		return fmt.Errorf("mines: nothing to cash out: %w", ErrInvalidGameState)
	}
	if err := m.round.CashOut(ctx, m.prizes.Add(m.round.Bet())); err != nil {
		return err
	}
	m.deps.Hub.Broadcast(WSMessage{Type: "cashout", Game: GameTypeMines, Data: m.round.View()})
	return nil
}

func (m *MinesEngine) Abandon(ctx context.Context) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.round.Abandon(ctx); err != nil {
		return nil, err
	}
	m.grid = nil
	m.revealed, m.flags = 0, 0
	m.prizes = decimal.Zero
	return m.view(), nil
}

func (m *MinesEngine) view() MinesView {
	v := MinesView{
		RoundView:    m.round.View(),
		Mines:        m.rules.Mines,
		FlagsPlaced:  m.flags,
		RevealedSafe: m.revealed,
		TotalSafe:    m.totalSafe(),
		CanCashOut:   m.round.InFlight() && m.prizes.IsPositive(),
	}
	if m.grid == nil {
		return v
	}
	// mines stay hidden until the round is over
	showAll := !m.round.InFlight()
	v.Grid = make([][]CellView, len(m.grid))
	for r := range m.grid {
		v.Grid[r] = make([]CellView, len(m.grid[r]))
		for c, cell := range m.grid[r] {
			cv := CellView{Revealed: cell.revealed, Flagged: cell.flagged}
			if cell.revealed || showAll {
				cv.Mine = cell.mine
				cv.AdjacentMines = cell.adjacent
				cv.Prize = cell.prize
			}
			v.Grid[r][c] = cv
		}
	}
	return v
}
