package ledger

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// Keys of the two-entry persisted layout shared by every key/value backend.
const (
	BalanceKey      = "scrazino-balance"
	TransactionsKey = "scrazino-transactions"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store persists ledger snapshots. Load reports found=false when nothing has
// been saved yet.
type Store interface {
	Load(ctx context.Context) (snap Snapshot, found bool, err error)
	Save(ctx context.Context, snap Snapshot) error
}

// EncodeSnapshot renders a snapshot as the two persisted values: the balance as
// a numeric string and the transaction log as a JSON array.
func EncodeSnapshot(snap Snapshot) (balance string, transactions string, err error) {
	txs := snap.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return "", "", fmt.Errorf("encode transactions: %w", err)
	}
	return snap.Balance.String(), string(data), nil
}

// DecodeSnapshot parses the values written by EncodeSnapshot. An empty
// transactions value is treated as an empty log.
func DecodeSnapshot(balance, transactions string) (Snapshot, error) {
	bal, err := decimal.NewFromString(balance)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode balance %q: %w", balance, err)
	}
	txs := []Transaction{}
	if transactions != "" {
		if err := json.Unmarshal([]byte(transactions), &txs); err != nil {
			return Snapshot{}, fmt.Errorf("decode transactions: %w", err)
		}
	}
	return Snapshot{Balance: bal, Transactions: txs}, nil
}

// MemoryStore keeps the encoded snapshot in process memory.
type MemoryStore struct {
	mu           sync.Mutex
	balance      string
	transactions string
	saved        bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return Snapshot{}, false, nil
	}
	snap, err := DecodeSnapshot(m.balance, m.transactions)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (m *MemoryStore) Save(ctx context.Context, snap Snapshot) error {
	balance, txs, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance, m.transactions, m.saved = balance, txs, true
	return nil
}
