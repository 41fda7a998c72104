package server

import (
	"context"
	"fmt"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"scrazino/internal/game"
	"scrazino/internal/ledger"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)
	if s.metrics != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.App.Group("/api/v1")

	api.Get("/wallet", s.walletHandler)
	api.Post("/wallet/deposit", s.depositHandler)
	api.Post("/wallet/withdraw", s.withdrawHandler)
	api.Get("/wallet/transactions", s.transactionsHandler)

	api.Get("/games", s.lobbyHandler)
	api.Get("/games/:game/state", s.gameStateHandler)
	api.Post("/games/:game/bet", s.placeBetHandler)
	api.Post("/games/:game/action/:action", s.gameActionHandler)
	api.Post("/games/:game/abandon", s.abandonHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"status": "ok",
		"game": fiber.Map{
			"status":            "running",
			"engines":           len(s.games.Engines()),
			"connected_clients": s.hub.GetClientCount(),
		},
	}
	for name, check := range s.checks {
		health[name] = check()
	}
	return c.JSON(health)
}

type walletView struct {
	Balance        decimal.Decimal `json:"balance"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	MaxDeposit     decimal.Decimal `json:"max_deposit"`
}

func (s *FiberServer) walletState() walletView {
	return walletView{
		Balance:        s.wallet.Balance(),
		Currency:       s.wallet.Currency(),
		InitialBalance: s.wallet.InitialBalance(),
		MaxDeposit:     s.wallet.MaxDeposit(),
	}
}

func (s *FiberServer) walletHandler(c *fiber.Ctx) error {
	return c.JSON(s.walletState())
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *FiberServer) depositHandler(c *fiber.Ctx) error {
	return s.moveFunds(c, s.wallet.Deposit)
}

func (s *FiberServer) withdrawHandler(c *fiber.Ctx) error {
	return s.moveFunds(c, s.wallet.Withdraw)
}

func (s *FiberServer) moveFunds(c *fiber.Ctx, op func(ctx context.Context, amount decimal.Decimal) (ledger.Transaction, error)) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return s.send(c, apiError{fiber.StatusBadRequest, "invalid_amount", s.amountMessage()}, err)
	}
	tx, err := op(c.UserContext(), req.Amount)
	if err != nil {
		return s.send(c, s.walletError(err), err)
	}
	s.hub.Broadcast(game.WSMessage{Type: "balance", Data: s.walletState()})
	return c.JSON(fiber.Map{
		"transaction": tx,
		"balance":     s.wallet.Balance(),
	})
}

func (s *FiberServer) transactionsHandler(c *fiber.Ctx) error {
	txs := s.wallet.Transactions()
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}
	return c.JSON(fiber.Map{
		"transactions": txs,
		"count":        len(txs),
	})
}

type lobbyEntry struct {
	ID    game.GameType `json:"id"`
	Name  string        `json:"name"`
	State any           `json:"state"`
}

func (s *FiberServer) lobby() []lobbyEntry {
	engines := s.games.Engines()
	out := make([]lobbyEntry, 0, len(engines))
	for _, e := range engines {
		out = append(out, lobbyEntry{ID: e.GetType(), Name: e.Name(), State: e.GetState()})
	}
	return out
}

func (s *FiberServer) lobbyHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"games": s.lobby()})
}

func (s *FiberServer) engine(c *fiber.Ctx) (game.GameType, game.GameEngine, error) {
	gameType := game.GameType(c.Params("game"))
	engine, ok := s.games.GetEngine(gameType)
	if !ok {
		return gameType, nil, errUnknownGame
	}
	return gameType, engine, nil
}

func (s *FiberServer) gameStateHandler(c *fiber.Ctx) error {
	gameType, engine, err := s.engine(c)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}
	return c.JSON(engine.GetState())
}

func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	gameType, engine, err := s.engine(c)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}

	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return s.send(c, apiError{fiber.StatusBadRequest, "bad_request", msgBadRequest}, err)
	}
	state, err := engine.PlaceBet(c.UserContext(), req)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}
	return c.JSON(state)
}

func (s *FiberServer) gameActionHandler(c *fiber.Ctx) error {
	gameType, engine, err := s.engine(c)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}

	action := c.Params("action")
	req, err := parseAction(c, action)
	if err != nil {
		return s.send(c, apiError{fiber.StatusBadRequest, "bad_request", msgBadRequest}, err)
	}
	state, err := engine.ProcessAction(c.UserContext(), action, req)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}
	return c.JSON(state)
}

// actionBody keeps the cell coordinates optional so a missing row or col is
// told apart from the top-left cell.
type actionBody struct {
	Row   *int   `json:"row"`
	Col   *int   `json:"col"`
	Guess string `json:"guess"`
}

// parseAction decodes the optional action body. Cell actions must name both
// coordinates.
func parseAction(c *fiber.Ctx, action string) (game.ActionRequest, error) {
	var body actionBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return game.ActionRequest{}, err
		}
	}
	req := game.ActionRequest{Guess: body.Guess}
	switch action {
	case game.ActionReveal, game.ActionFlag:
		if body.Row == nil || body.Col == nil {
			return req, fmt.Errorf("%s: row and col are required", action)
		}
	}
	if body.Row != nil {
		req.Row = *body.Row
	}
	if body.Col != nil {
		req.Col = *body.Col
	}
	return req, nil
}

func (s *FiberServer) abandonHandler(c *fiber.Ctx) error {
	gameType, engine, err := s.engine(c)
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}
	state, err := engine.Abandon(c.UserContext())
	if err != nil {
		return s.send(c, gameError(gameType, err), err)
	}
	return c.JSON(state)
}

// gameWebSocketHandler streams game events. The client gets the wallet and
// lobby on connect.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	id := conn.Query("client_id", uuid.NewString())
	s.hub.Serve(conn, id, game.WSMessage{
		Type: "initial_state",
		Data: fiber.Map{
			"wallet": s.walletState(),
			"games":  s.lobby(),
		},
	})
}
