package game

import (
	"context"
	"errors"
	"testing"
)

func TestGameFactory_RegisterEngine(t *testing.T) {
	rules := testRules(t)
	deps := Deps{Wallet: newWallet(t, "100")}
	factory := NewGameFactory(nil)

	t.Run("register mines engine", func(t *testing.T) {
		factory.RegisterEngine(NewMinesEngine(deps, rules))

		engine, exists := factory.GetEngine(GameTypeMines)
		if !exists {
			t.Fatal("mines engine should be registered")
		}
		if engine.GetType() != GameTypeMines {
			t.Error("retrieved engine should be mines type")
		}
	})

	t.Run("re-register keeps one entry", func(t *testing.T) {
		factory.RegisterEngine(NewMinesEngine(deps, rules))
		if n := len(factory.Engines()); n != 1 {
			t.Errorf("expected 1 engine, got %d", n)
		}
	})

	t.Run("get non-existent engine", func(t *testing.T) {
		if _, exists := factory.GetEngine(GameType("roulette")); exists {
			t.Error("roulette engine should not exist")
		}
	})
}

func TestNewDefaultFactory(t *testing.T) {
	factory := NewDefaultFactory(Deps{Wallet: newWallet(t, "100")}, testRules(t))

	want := []struct {
		game GameType
		name string
	}{
		{GameTypeSlots, "Neon Slots"},
		{GameTypeCoinFlip, "Cyber Flip"},
		{GameTypeCrash, "Cosmic Crash"},
		{GameTypeDiceDuel, "Digital Dice Duel"},
		{GameTypeMines, "Data Mine Sweeper"},
		{GameTypeCardClash, "Card Clash (Hi-Lo)"},
	}
	engines := factory.Engines()
	if len(engines) != len(want) {
		t.Fatalf("expected %d engines, got %d", len(want), len(engines))
	}
	for i, w := range want {
		if engines[i].GetType() != w.game || engines[i].Name() != w.name {
			t.Errorf("engine %d = %s (%s), want %s (%s)", i, engines[i].GetType(), engines[i].Name(), w.game, w.name)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := factory.StartAll(ctx); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	if err := factory.StopAll(); err != nil {
		t.Fatalf("StopAll() error = %v", err)
	}
}

func TestEngines_ShareOneWallet(t *testing.T) {
	w := newWallet(t, "100")
	src := &scriptedSource{ints: []int{7, 7, 7, 5, 5, 0, 1}}
	factory := NewDefaultFactory(Deps{Wallet: w, Source: src}, testRules(t))
	ctx := context.Background()

	slots, _ := factory.GetEngine(GameTypeSlots)
	if _, err := slots.PlaceBet(ctx, BetRequest{Amount: dec("10")}); err != nil {
		t.Fatal(err)
	}
	dice, _ := factory.GetEngine(GameTypeDiceDuel)
	if _, err := dice.PlaceBet(ctx, BetRequest{Amount: dec("50")}); err != nil {
		t.Fatal(err)
	}
	// 100 - 10 + 210 - 50 + 100
	assertBalance(t, w, "350")

	mines, _ := factory.GetEngine(GameTypeMines)
	if _, err := mines.PlaceBet(ctx, BetRequest{Amount: dec("351")}); err == nil {
		t.Fatal("expected insufficient funds")
	}
	if _, err := mines.ProcessAction(ctx, "dig", ActionRequest{}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action error = %v, want ErrUnknownAction", err)
	}
}
