package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"scrazino/internal/config"
	"scrazino/internal/ledger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
	log    *zap.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg config.Redis, log *zap.Logger) (Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(pingCtx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info("redis connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &service{client: client, log: log}, nil
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if _, err := s.client.Ping(ctx).Result(); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	s.log.Info("disconnecting from redis")
	return s.client.Close()
}

// LedgerStore persists the wallet snapshot as two plain string keys.
type LedgerStore struct {
	client redis.Cmdable
}

func NewLedgerStore(client redis.Cmdable) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) Load(ctx context.Context) (ledger.Snapshot, bool, error) {
	values, err := s.client.MGet(ctx, ledger.BalanceKey, ledger.TransactionsKey).Result()
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("redis mget: %w", err)
	}
	balance, ok := values[0].(string)
	if !ok {
		return ledger.Snapshot{}, false, nil
	}
	transactions, _ := values[1].(string)

	snap, err := ledger.DecodeSnapshot(balance, transactions)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save writes both keys inside one MULTI/EXEC block.
func (s *LedgerStore) Save(ctx context.Context, snap ledger.Snapshot) error {
	balance, transactions, err := ledger.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ledger.BalanceKey, balance, 0)
		pipe.Set(ctx, ledger.TransactionsKey, transactions, 0)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}
