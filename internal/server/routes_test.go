package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scrazino/internal/game"
	"scrazino/internal/ledger"
	"scrazino/internal/metrics"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) (*FiberServer, *ledger.Ledger) {
	t.Helper()
	recorder := metrics.NewRecorder(nil)
	wallet, err := ledger.Open(context.Background(), ledger.NewMemoryStore(),
		ledger.WithInitialBalance(decimal.NewFromInt(100)),
		ledger.WithObserver(recorder))
	if err != nil {
		t.Fatalf("ledger.Open() error = %v", err)
	}
	rules, err := game.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	rules.RevealDelay = 0

	hub := game.NewHub(nil)
	factory := game.NewDefaultFactory(game.Deps{Wallet: wallet, Hub: hub, Observer: recorder}, rules)
	srv := New(Options{
		Wallet:  wallet,
		Games:   factory,
		Hub:     hub,
		Metrics: recorder,
		Checks: map[string]HealthCheck{
			"store": func() map[string]string { return map[string]string{"status": "up"} },
		},
	})
	return srv, wallet
}

func doRequest(t *testing.T, srv *FiberServer, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := srv.Test(req)
	if err != nil {
		t.Fatalf("could not perform request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response body: %v", err)
	}
	result := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("could not unmarshal %s: %v", raw, err)
		}
	}
	return resp.StatusCode, result
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	status, result := doRequest(t, srv, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Fatalf("expected status OK; got %v", status)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status to be 'ok'; got %v", result["status"])
	}
	store, ok := result["store"].(map[string]any)
	if !ok || store["status"] != "up" {
		t.Errorf("store check missing: %v", result["store"])
	}
	gameInfo, _ := result["game"].(map[string]any)
	if gameInfo["engines"] != float64(6) {
		t.Errorf("expected 6 engines, got %v", gameInfo["engines"])
	}
}

func TestWalletRoutes(t *testing.T) {
	srv, wallet := newTestServer(t)

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantCode    string
		wantMessage string
		wantBalance string
	}{
		{name: "deposit", path: "/api/v1/wallet/deposit", body: `{"amount": 50}`, wantStatus: 200, wantBalance: "150"},
		{name: "deposit as string", path: "/api/v1/wallet/deposit", body: `{"amount": "0.55"}`, wantStatus: 200, wantBalance: "150.55"},
		{
			name: "zero deposit", path: "/api/v1/wallet/deposit", body: `{"amount": 0}`,
			wantStatus: 400, wantCode: "invalid_amount", wantMessage: "Пожалуйста, введите корректную сумму больше 0 ₽.",
		},
		{
			name: "deposit above limit", path: "/api/v1/wallet/deposit", body: `{"amount": 20000}`,
			wantStatus: 400, wantCode: "deposit_limit", wantMessage: "Максимальная сумма пополнения 10000 ₽.",
		},
		{name: "malformed body", path: "/api/v1/wallet/deposit", body: `{"amount":`, wantStatus: 400, wantCode: "invalid_amount"},
		{
			name: "overdraw", path: "/api/v1/wallet/withdraw", body: `{"amount": 500}`,
			wantStatus: 402, wantCode: "insufficient_funds", wantMessage: "Недостаточно средств для этого вывода.",
		},
		{name: "withdraw", path: "/api/v1/wallet/withdraw", body: `{"amount": 30.55}`, wantStatus: 200, wantBalance: "120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, result := doRequest(t, srv, http.MethodPost, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, result)
			}
			if tt.wantCode != "" && result["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", result["error"], tt.wantCode)
			}
			if tt.wantMessage != "" && result["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %s", result["message"], tt.wantMessage)
			}
			if tt.wantBalance != "" && result["balance"] != tt.wantBalance {
				t.Errorf("balance = %v, want %s", result["balance"], tt.wantBalance)
			}
		})
	}

	if !wallet.Balance().Equal(decimal.NewFromInt(120)) {
		t.Errorf("wallet balance = %s, want 120", wallet.Balance())
	}

	status, result := doRequest(t, srv, http.MethodGet, "/api/v1/wallet", "")
	if status != 200 || result["balance"] != "120" || result["currency"] != "₽" {
		t.Errorf("GET /wallet = %d %v", status, result)
	}

	status, result = doRequest(t, srv, http.MethodGet, "/api/v1/wallet/transactions?limit=2", "")
	if status != 200 || result["count"] != float64(2) {
		t.Fatalf("GET /wallet/transactions = %d %v", status, result)
	}
	txs := result["transactions"].([]any)
	if head := txs[0].(map[string]any); head["type"] != string(ledger.KindWithdrawal) {
		t.Errorf("newest transaction = %v", head)
	}
}

func TestGameRoutes(t *testing.T) {
	srv, wallet := newTestServer(t)

	status, result := doRequest(t, srv, http.MethodGet, "/api/v1/games", "")
	if status != 200 {
		t.Fatalf("GET /games status = %d", status)
	}
	lobby := result["games"].([]any)
	if len(lobby) != 6 || lobby[0].(map[string]any)["id"] != "slots" {
		t.Errorf("unexpected lobby %v", lobby)
	}

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		wantStatus  int
		wantCode    string
		wantMessage string
		wantPhase   string
	}{
		{
			name: "unknown game", method: http.MethodGet, path: "/api/v1/games/roulette/state",
			wantStatus: 404, wantCode: "unknown_game", wantMessage: "Игра не найдена.",
		},
		{
			name: "coin flip without call", method: http.MethodPost, path: "/api/v1/games/coin-flip/bet", body: `{"amount": 10}`,
			wantStatus: 400, wantCode: "invalid_choice", wantMessage: "Пожалуйста, выберите Орел или Решку.",
		},
		{
			name: "zero bet", method: http.MethodPost, path: "/api/v1/games/digital-dice-duel/bet", body: `{"amount": 0}`,
			wantStatus: 400, wantCode: "invalid_amount", wantMessage: "Сумма ставки должна быть положительной.",
		},
		{
			name: "bet above balance", method: http.MethodPost, path: "/api/v1/games/digital-dice-duel/bet", body: `{"amount": 1000}`,
			wantStatus: 402, wantCode: "insufficient_funds", wantMessage: "Недостаточно средств для этой ставки.",
		},
		{
			name: "reveal without board", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/action/reveal", body: `{"row": 0, "col": 0}`,
			wantStatus: 409, wantCode: "invalid_game_state",
		},
		{
			name: "mines bet", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/bet", body: `{"amount": 10}`,
			wantStatus: 200, wantPhase: "resolving",
		},
		{
			name: "second bet while in play", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/bet", body: `{"amount": 10}`,
			wantStatus: 409, wantCode: "invalid_game_state",
		},
		{
			name: "unknown action", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/action/dig",
			wantStatus: 400, wantCode: "unknown_action", wantMessage: "Неизвестное действие.",
		},
		{
			name: "off the board", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/action/reveal", body: `{"row": 9, "col": 0}`,
			wantStatus: 400, wantCode: "invalid_choice",
		},
		{
			name: "reveal without a cell", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/action/reveal",
			wantStatus: 400, wantCode: "bad_request", wantMessage: "Некорректный запрос.",
		},
		{
			name: "flag without col", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/action/flag", body: `{"row": 0}`,
			wantStatus: 400, wantCode: "bad_request",
		},
		{
			name: "state", method: http.MethodGet, path: "/api/v1/games/data-mine-sweeper/state",
			wantStatus: 200, wantPhase: "resolving",
		},
		{
			name: "abandon", method: http.MethodPost, path: "/api/v1/games/data-mine-sweeper/abandon",
			wantStatus: 200, wantPhase: "idle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, result := doRequest(t, srv, tt.method, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, result)
			}
			if tt.wantCode != "" && result["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", result["error"], tt.wantCode)
			}
			if tt.wantMessage != "" && result["message"] != tt.wantMessage {
				t.Errorf("message = %v, want %s", result["message"], tt.wantMessage)
			}
			if tt.wantPhase != "" && result["phase"] != tt.wantPhase {
				t.Errorf("phase = %v, want %s", result["phase"], tt.wantPhase)
			}
		})
	}

	// the abandoned stake stays with the house
	if !wallet.Balance().Equal(decimal.NewFromInt(90)) {
		t.Errorf("wallet balance = %s, want 90", wallet.Balance())
	}
}

func TestDiceDuelRoundSettles(t *testing.T) {
	srv, wallet := newTestServer(t)

	status, result := doRequest(t, srv, http.MethodPost, "/api/v1/games/digital-dice-duel/bet", `{"amount": 20}`)
	if status != 200 {
		t.Fatalf("status = %d (%v)", status, result)
	}

	want := map[string]string{"won": "", "lost": "80"}
	phase, _ := result["phase"].(string)
	if _, ok := want[phase]; !ok {
		t.Fatalf("instant reveal left phase %q", phase)
	}
	player, dealer := result["player_sum"].(float64), result["dealer_sum"].(float64)
	switch {
	case player > dealer:
		want["won"] = "120"
	case player == dealer:
		want["won"] = "100"
	}
	if !wallet.Balance().Equal(decimal.RequireFromString(want[phase])) {
		t.Errorf("balance = %s after %s (%v vs %v)", wallet.Balance(), phase, player, dealer)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/v1/wallet/deposit", `{"amount": 5}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := srv.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `scrazino_transactions_total{type="Deposit"} 1`) {
		t.Errorf("deposit counter missing from:\n%s", body)
	}
}

func TestUnmatchedRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	status, result := doRequest(t, srv, http.MethodGet, "/api/v1/nope", "")
	if status != http.StatusNotFound || result["error"] != "not_found" {
		t.Errorf("GET /api/v1/nope = %d %v", status, result)
	}

	status, _ = doRequest(t, srv, http.MethodGet, "/ws", "")
	if status != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws = %d, want %d", status, http.StatusUpgradeRequired)
	}
}

func TestShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
