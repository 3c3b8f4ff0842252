package ledger

import (
	"context"
	"sync"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// TransactionLog is the append-only storage behind a devnet ledger.
type TransactionLog interface {
	Append(ctx context.Context, tx interfaces.LedgerTransaction) error
	// Range returns up to limit transactions starting at offset, in append order.
	Range(ctx context.Context, offset, limit int) ([]interfaces.LedgerTransaction, error)
	Len(ctx context.Context) (int, error)
}

// MemoryLog is an in-memory TransactionLog.
type MemoryLog struct {
	mu  sync.RWMutex
	txs []interfaces.LedgerTransaction
}

// NewMemoryLog creates an empty log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(ctx context.Context, tx interfaces.LedgerTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, tx)
	return nil
}

func (l *MemoryLog) Range(ctx context.Context, offset, limit int) ([]interfaces.LedgerTransaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if offset >= len(l.txs) {
		return nil, nil
	}
	end := min(offset+limit, len(l.txs))
	out := make([]interfaces.LedgerTransaction, end-offset)
	copy(out, l.txs[offset:end])
	return out, nil
}

func (l *MemoryLog) Len(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.txs), nil
}
