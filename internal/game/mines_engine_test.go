package game

import (
	"context"
	"errors"
	"slices"
	"testing"

	"scrazino/internal/ledger"
)

// boardDraws lays out prizes for all 25 cells, then the mine coordinates.
// prize maps a row-major cell index to a prize table index. Without explicit
// coordinates the mines land on (0,0), (1,1) and (2,2).
func boardDraws(prize map[int]int, mineDraws ...int) []int {
	draws := make([]int, 0, 25+len(mineDraws))
	for i := 0; i < 25; i++ {
		draws = append(draws, prize[i])
	}
	if len(mineDraws) == 0 {
		mineDraws = []int{0, 0, 1, 1, 2, 2}
	}
	return append(draws, mineDraws...)
}

func newMinesBoard(t *testing.T, draws []int) (*MinesEngine, *ledger.Ledger, *outcomeRecorder) {
	t.Helper()
	w := newWallet(t, "100")
	rec := &outcomeRecorder{}
	e := NewMinesEngine(Deps{Wallet: w, Source: &scriptedSource{ints: draws}, Observer: rec}, testRules(t))
	if _, err := e.PlaceBet(context.Background(), BetRequest{Amount: dec("10")}); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	return e, w, rec
}

func reveal(t *testing.T, e *MinesEngine, row, col int) MinesView {
	t.Helper()
	got, err := e.ProcessAction(context.Background(), ActionReveal, ActionRequest{Row: row, Col: col})
	if err != nil {
		t.Fatalf("reveal (%d,%d) error = %v", row, col, err)
	}
	return got.(MinesView)
}

func TestMinesEngine_Board(t *testing.T) {
	// the second (0,0) collides and is drawn again
	e, _, _ := newMinesBoard(t, boardDraws(nil, 0, 0, 0, 0, 1, 1, 2, 2))

	var mines [][2]int
	for r := range e.grid {
		for c := range e.grid[r] {
			if e.grid[r][c].mine {
				mines = append(mines, [2]int{r, c})
			}
		}
	}
	want := [][2]int{{0, 0}, {1, 1}, {2, 2}}
	if !slices.Equal(mines, want) {
		t.Fatalf("mines = %v, want %v", mines, want)
	}

	adjacency := map[[2]int]int{{0, 1}: 2, {1, 2}: 2, {0, 2}: 1, {3, 3}: 1, {4, 4}: 0}
	for pos, n := range adjacency {
		if got := e.grid[pos[0]][pos[1]].adjacent; got != n {
			t.Errorf("adjacent(%v) = %d, want %d", pos, got, n)
		}
	}

	view := e.GetState().(MinesView)
	if view.TotalSafe != 22 || view.Mines != 3 || view.CanCashOut {
		t.Errorf("unexpected board summary %+v", view)
	}
	if view.Grid[0][0].Mine {
		t.Error("mine visible while the board is in play")
	}
}

func TestMinesEngine_RevealMineLoses(t *testing.T) {
	e, w, rec := newMinesBoard(t, boardDraws(nil))

	view := reveal(t, e, 0, 0)
	if view.Phase != PhaseLost {
		t.Fatalf("phase = %s, want lost", view.Phase)
	}
	for _, pos := range [][2]int{{0, 0}, {1, 1}, {2, 2}} {
		cell := view.Grid[pos[0]][pos[1]]
		if !cell.Mine || !cell.Revealed {
			t.Errorf("mine at %v not shown: %+v", pos, cell)
		}
	}
	assertBalance(t, w, "90")
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "data-mine-sweeper:lost" {
		t.Errorf("outcomes = %v", rec.outcomes)
	}

	if _, err := e.ProcessAction(context.Background(), ActionReveal, ActionRequest{Row: 4, Col: 4}); !errors.Is(err, ErrInvalidGameState) {
		t.Errorf("reveal after loss error = %v, want ErrInvalidGameState", err)
	}
}

func TestMinesEngine_FloodFillAndWin(t *testing.T) {
	e, w, _ := newMinesBoard(t, boardDraws(nil))

	view := reveal(t, e, 4, 4)
	if view.Phase != PhaseResolving {
		t.Fatalf("phase = %s, want resolving", view.Phase)
	}
	// (0,1) and (1,0) touch only mines and numbered cells
	if view.RevealedSafe != 20 {
		t.Fatalf("flood revealed %d cells, want 20", view.RevealedSafe)
	}
	if view.Grid[0][1].Revealed || view.Grid[1][0].Revealed {
		t.Error("flood crossed into cells walled off by mines")
	}
	if !view.Grid[0][2].Revealed || view.Grid[0][2].AdjacentMines != 1 {
		t.Errorf("numbered border cell = %+v", view.Grid[0][2])
	}

	reveal(t, e, 0, 1)
	view = reveal(t, e, 1, 0)
	if view.Phase != PhaseWon {
		t.Fatalf("phase = %s, want won after clearing the board", view.Phase)
	}
	if !view.Grid[1][1].Mine {
		t.Error("mines hidden after the round ended")
	}
	// no prizes on this board: the stake comes back
	assertBalance(t, w, "100")
}

func TestMinesEngine_PrizeAndCashOut(t *testing.T) {
	// (4,4) hides the 25 prize
	e, w, _ := newMinesBoard(t, boardDraws(map[int]int{24: 7}))

	if _, err := e.ProcessAction(context.Background(), ActionCashout, ActionRequest{}); !errors.Is(err, ErrInvalidGameState) {
		t.Fatalf("cashout without prizes error = %v, want ErrInvalidGameState", err)
	}

	view := reveal(t, e, 4, 4)
	if view.RevealedSafe != 1 {
		t.Errorf("prize cell must not flood, revealed %d", view.RevealedSafe)
	}
	if !view.CanCashOut || !view.Accumulated.Equal(dec("25")) {
		t.Fatalf("expected 25 accumulated and cash out allowed, got %+v", view.RoundView)
	}

	got, err := e.ProcessAction(context.Background(), ActionCashout, ActionRequest{})
	if err != nil {
		t.Fatalf("cashout error = %v", err)
	}
	if view := got.(MinesView); view.Phase != PhaseCashedOut || !view.Payout.Equal(dec("35")) {
		t.Errorf("expected cash out of 35, got %+v", view.RoundView)
	}
	assertBalance(t, w, "125")
}

func TestMinesEngine_Flags(t *testing.T) {
	e, _, _ := newMinesBoard(t, boardDraws(nil))
	ctx := context.Background()

	for _, pos := range [][2]int{{0, 0}, {1, 1}, {2, 2}} {
		if _, err := e.ProcessAction(ctx, ActionFlag, ActionRequest{Row: pos[0], Col: pos[1]}); err != nil {
			t.Fatalf("flag %v error = %v", pos, err)
		}
	}
	if _, err := e.ProcessAction(ctx, ActionFlag, ActionRequest{Row: 4, Col: 4}); !errors.Is(err, ErrInvalidGameState) {
		t.Errorf("fourth flag error = %v, want ErrInvalidGameState", err)
	}
	if _, err := e.ProcessAction(ctx, ActionReveal, ActionRequest{Row: 0, Col: 0}); !errors.Is(err, ErrInvalidGameState) {
		t.Errorf("reveal flagged cell error = %v, want ErrInvalidGameState", err)
	}

	got, err := e.ProcessAction(ctx, ActionFlag, ActionRequest{Row: 0, Col: 0})
	if err != nil {
		t.Fatal(err)
	}
	view := got.(MinesView)
	if view.FlagsPlaced != 2 || view.Grid[0][0].Flagged {
		t.Errorf("unflag left %d flags, cell %+v", view.FlagsPlaced, view.Grid[0][0])
	}
}

func TestMinesEngine_Rejections(t *testing.T) {
	e := NewMinesEngine(Deps{Wallet: newWallet(t, "100")}, testRules(t))
	ctx := context.Background()

	if _, err := e.ProcessAction(ctx, ActionReveal, ActionRequest{}); !errors.Is(err, ErrInvalidGameState) {
		t.Errorf("reveal without board error = %v, want ErrInvalidGameState", err)
	}
	if _, err := e.ProcessAction(ctx, ActionGuess, ActionRequest{}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("guess error = %v, want ErrUnknownAction", err)
	}

	e, _, _ = newMinesBoard(t, boardDraws(nil))
	if _, err := e.ProcessAction(ctx, ActionReveal, ActionRequest{Row: 5, Col: 0}); !errors.Is(err, ErrInvalidChoice) {
		t.Errorf("off-board reveal error = %v, want ErrInvalidChoice", err)
	}
}

func TestMinesEngine_AbandonClearsBoard(t *testing.T) {
	e, w, _ := newMinesBoard(t, boardDraws(nil))

	got, err := e.Abandon(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	view := got.(MinesView)
	if view.Phase != PhaseIdle || view.Grid != nil {
		t.Errorf("expected an empty idle board, got %+v", view)
	}
	assertBalance(t, w, "90")
	if head := w.Transactions()[0]; head.Type != ledger.KindGameLoss {
		t.Errorf("expected Game Loss note, got %s", head.Type)
	}
}
