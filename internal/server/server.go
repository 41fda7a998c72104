package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"scrazino/internal/game"
	"scrazino/internal/ledger"
	"scrazino/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultRateLimit = 100

// HealthCheck reports the status of one backing service.
type HealthCheck func() map[string]string

type Options struct {
	Wallet  *ledger.Ledger
	Games   *game.GameFactory
	Hub     *game.Hub
	Metrics *metrics.Recorder
	// Checks are reported by /health under their key.
	Checks map[string]HealthCheck
	Logger *zap.Logger
	// RateLimit is the number of requests per client per minute.
	RateLimit int
}

type FiberServer struct {
	*fiber.App

	wallet  *ledger.Ledger
	games   *game.GameFactory
	hub     *game.Hub
	metrics *metrics.Recorder
	checks  map[string]HealthCheck
	log     *zap.Logger
}

func New(opts Options) *FiberServer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}

	server := &FiberServer{
		wallet:  opts.Wallet,
		games:   opts.Games,
		hub:     opts.Hub,
		metrics: opts.Metrics,
		checks:  opts.Checks,
		log:     log.Named("server"),
	}
	server.App = fiber.New(fiber.Config{
		ServerHeader:  "scrazino",
		AppName:       "scrazino",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		IdleTimeout:   120 * time.Second,
		StrictRouting: false,
		JSONEncoder:   json.Marshal,
		JSONDecoder:   json.Unmarshal,
		ErrorHandler:  server.errorHandler,
	})

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        opts.RateLimit,
		Expiration: 1 * time.Minute,
	}))

	server.RegisterFiberRoutes()
	return server
}

// Shutdown stops the game engines, then drains open connections.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	if s.games != nil {
		if err := s.games.StopAll(); err != nil {
			s.log.Error("stop game engines", zap.Error(err))
		}
	}
	return s.App.ShutdownWithContext(ctx)
}
