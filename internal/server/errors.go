package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"scrazino/internal/game"
	"scrazino/internal/ledger"
)

var errUnknownGame = errors.New("unknown game")

const (
	msgBadRequest     = "Некорректный запрос."
	msgInternal       = "Не удалось выполнить операцию. Пожалуйста, попробуйте еще раз."
	msgBetAmount      = "Сумма ставки должна быть положительной."
	msgBetFunds       = "Недостаточно средств для этой ставки."
	msgWithdrawFunds  = "Недостаточно средств для этого вывода."
	msgCoinChoice     = "Пожалуйста, выберите Орел или Решку."
	msgInvalidChoice  = "Недопустимый ход."
	msgGameState      = "Действие недоступно в текущем состоянии игры."
	msgDeckExhausted  = game.NoticeDeckExhausted
	msgUnknownAction  = "Неизвестное действие."
	msgUnknownGame    = "Игра не найдена."
	msgTooManyRequest = "Слишком много запросов. Попробуйте позже."
)

// apiError is the JSON error body.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (s *FiberServer) send(c *fiber.Ctx, e apiError, cause error) error {
	if e.Status >= fiber.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(cause))
	} else {
		s.log.Debug("request rejected", zap.String("path", c.Path()), zap.String("code", e.Code), zap.Error(cause))
	}
	return c.Status(e.Status).JSON(e)
}

func (s *FiberServer) amountMessage() string {
	return fmt.Sprintf("Пожалуйста, введите корректную сумму больше 0 %s.", s.wallet.Currency())
}

// walletError maps a deposit or withdrawal failure.
func (s *FiberServer) walletError(err error) apiError {
	switch {
	case errors.Is(err, ledger.ErrDepositLimit):
		return apiError{fiber.StatusBadRequest, "deposit_limit",
			fmt.Sprintf("Максимальная сумма пополнения %s %s.", s.wallet.MaxDeposit().String(), s.wallet.Currency())}
	case errors.Is(err, ledger.ErrInvalidAmount):
		return apiError{fiber.StatusBadRequest, "invalid_amount", s.amountMessage()}
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apiError{fiber.StatusPaymentRequired, "insufficient_funds", msgWithdrawFunds}
	}
	return apiError{fiber.StatusInternalServerError, "internal", msgInternal}
}

// gameError maps an engine failure.
func gameError(gameType game.GameType, err error) apiError {
	switch {
	case errors.Is(err, errUnknownGame):
		return apiError{fiber.StatusNotFound, "unknown_game", msgUnknownGame}
	case errors.Is(err, ledger.ErrInvalidAmount):
		return apiError{fiber.StatusBadRequest, "invalid_amount", msgBetAmount}
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apiError{fiber.StatusPaymentRequired, "insufficient_funds", msgBetFunds}
	case errors.Is(err, game.ErrInvalidChoice):
		if gameType == game.GameTypeCoinFlip {
			return apiError{fiber.StatusBadRequest, "invalid_choice", msgCoinChoice}
		}
		return apiError{fiber.StatusBadRequest, "invalid_choice", msgInvalidChoice}
	case errors.Is(err, game.ErrUnknownAction):
		return apiError{fiber.StatusBadRequest, "unknown_action", msgUnknownAction}
	case errors.Is(err, game.ErrDeckExhausted):
		return apiError{fiber.StatusConflict, "deck_exhausted", msgDeckExhausted}
	case errors.Is(err, game.ErrInvalidGameState):
		return apiError{fiber.StatusConflict, "invalid_game_state", msgGameState}
	}
	return apiError{fiber.StatusInternalServerError, "internal", msgInternal}
}

// errorHandler renders errors that escape the handlers: unmatched routes,
// recovered panics and anything else returned as a plain error.
func (s *FiberServer) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return s.send(c, apiError{fe.Code, "not_found", fe.Message}, err)
		case fiber.StatusTooManyRequests:
			return s.send(c, apiError{fe.Code, "rate_limited", msgTooManyRequest}, err)
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			return s.send(c, apiError{fiber.StatusBadRequest, "bad_request", msgBadRequest}, err)
		}
		if fe.Code < fiber.StatusInternalServerError {
			return s.send(c, apiError{fe.Code, "error", fe.Message}, err)
		}
	}
	return s.send(c, apiError{fiber.StatusInternalServerError, "internal", msgInternal}, err)
}
