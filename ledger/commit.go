package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Committer persists a record change and its transaction atomically. A
// record store that is also the transaction log may implement it.
type Committer interface {
	Commit(ctx context.Context, record *interfaces.VehicleRecord, tx interfaces.LedgerTransaction) error
}

// stagedStore reads through to base and holds back the single write an
// operation makes until the ledger commits it.
type stagedStore struct {
	base    interfaces.RecordStore
	pending *interfaces.VehicleRecord
}

func (s *stagedStore) Get(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	if s.pending != nil && s.pending.Registration == registration {
		record := *s.pending
		return &record, nil
	}
	return s.base.Get(ctx, registration)
}

func (s *stagedStore) Put(ctx context.Context, record *interfaces.VehicleRecord) error {
	staged := *record
	s.pending = &staged
	return nil
}

// commit makes the staged record and tx durable together. Without a
// Committer the record is written first and restored if the append fails.
func (l *Local) commit(ctx context.Context, staged *stagedStore, tx interfaces.LedgerTransaction) error {
	if l.committer != nil {
		return l.committer.Commit(ctx, staged.pending, tx)
	}
	if staged.pending == nil {
		return l.txlog.Append(ctx, tx)
	}

	prior, err := l.store.Get(ctx, staged.pending.Registration)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		// Unregistered records read as absent.
		prior = &interfaces.VehicleRecord{Registration: staged.pending.Registration}
	} else if err != nil {
		return fmt.Errorf("loading record %s: %w", staged.pending.Registration, err)
	}

	if err := l.store.Put(ctx, staged.pending); err != nil {
		return err
	}
	if err := l.txlog.Append(ctx, tx); err != nil {
		if restoreErr := l.store.Put(ctx, prior); restoreErr != nil {
			l.log.Error("Failed to restore record after append failure",
				slog.String("registration", prior.Registration.String()),
				slog.String("txID", tx.ID),
				"err", restoreErr)
			return errors.Join(err, restoreErr)
		}
		return err
	}
	return nil
}
