package database

import (
	"context"
	"errors"
	"fmt"

	"scrazino/internal/ledger"

	sq "github.com/Masterminds/squirrel"
	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	walletTable       = "wallet"
	transactionsTable = "transactions"

	colID          = "id"
	colBalance     = "balance"
	colUpdatedAt   = "updated_at"
	colPosition    = "position"
	colType        = "type"
	colAmount      = "amount"
	colCreatedAt   = "created_at"
	colDescription = "description"

	walletRowID = 1
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// LedgerStore keeps the wallet snapshot in Postgres: one wallet row plus the
// retained transaction rows, rewritten together in one database transaction.
type LedgerStore struct {
	pool      *pgxpool.Pool
	txManager trm.Manager
	getter    *trmpgx.CtxGetter
}

func NewLedgerStore(pool *pgxpool.Pool) (*LedgerStore, error) {
	m, err := manager.New(trmpgx.NewDefaultFactory(pool))
	if err != nil {
		return nil, fmt.Errorf("create tx manager: %w", err)
	}
	return &LedgerStore{pool: pool, txManager: m, getter: trmpgx.DefaultCtxGetter}, nil
}

func (s *LedgerStore) Load(ctx context.Context) (ledger.Snapshot, bool, error) {
	var (
		snap  ledger.Snapshot
		found bool
	)
	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		conn := s.getter.DefaultTrOrDB(ctx, s.pool)

		query, args, err := psql.Select(colBalance + "::text").
			From(walletTable).
			Where(sq.Eq{colID: walletRowID}).
			ToSql()
		if err != nil {
			return err
		}
		var balance string
		if err := conn.QueryRow(ctx, query, args...).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("select wallet: %w", err)
		}
		snap.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return fmt.Errorf("parse balance %q: %w", balance, err)
		}

		query, args, err = psql.Select(colID, colType, colAmount+"::text", colCreatedAt, colDescription).
			From(transactionsTable).
			OrderBy(colPosition).
			ToSql()
		if err != nil {
			return err
		}
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select transactions: %w", err)
		}
		defer rows.Close()

		snap.Transactions = []ledger.Transaction{}
		for rows.Next() {
			var (
				tx     ledger.Transaction
				kind   string
				amount string
			)
			if err := rows.Scan(&tx.ID, &kind, &amount, &tx.Timestamp, &tx.Description); err != nil {
				return fmt.Errorf("scan transaction: %w", err)
			}
			tx.Type = ledger.Kind(kind)
			tx.Amount, err = decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parse amount %q: %w", amount, err)
			}
			tx.Timestamp = tx.Timestamp.UTC()
			snap.Transactions = append(snap.Transactions, tx)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	return snap, found, nil
}

func (s *LedgerStore) Save(ctx context.Context, snap ledger.Snapshot) error {
	return s.txManager.Do(ctx, func(ctx context.Context) error {
		conn := s.getter.DefaultTrOrDB(ctx, s.pool)

		query, args, err := psql.Insert(walletTable).
			Columns(colID, colBalance, colUpdatedAt).
			Values(walletRowID, snap.Balance.String(), sq.Expr("NOW()")).
			Suffix("ON CONFLICT (" + colID + ") DO UPDATE SET " +
				colBalance + " = EXCLUDED." + colBalance + ", " +
				colUpdatedAt + " = EXCLUDED." + colUpdatedAt).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert wallet: %w", err)
		}

		query, args, err = psql.Delete(transactionsTable).ToSql()
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		if len(snap.Transactions) == 0 {
			return nil
		}

		insert := psql.Insert(transactionsTable).
			Columns(colID, colPosition, colType, colAmount, colCreatedAt, colDescription)
		for i, tx := range snap.Transactions {
			insert = insert.Values(tx.ID, i, string(tx.Type), tx.Amount.String(), tx.Timestamp.UTC(), tx.Description)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
}
