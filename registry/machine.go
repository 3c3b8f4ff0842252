package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Machine validates and applies registry operations against a RecordStore.
// All calls are serialized, so a Machine is safe for concurrent use as long
// as nothing else writes to its store.
type Machine struct {
	mu    sync.Mutex
	store interfaces.RecordStore
	now   func() time.Time
	log   *slog.Logger
}

// NewMachine creates a state machine over store.
func NewMachine(store interfaces.RecordStore, log *slog.Logger) *Machine {
	return &Machine{
		store: store,
		now:   time.Now,
		log:   log,
	}
}

// WithClock overrides the clock used for RegisteredAt by the direct entry
// points. Apply always uses the timestamp it is given.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Register records registration as owned by caller.
func (m *Machine) Register(ctx context.Context, registration interfaces.Registration, caller interfaces.Address) (*interfaces.Receipt, error) {
	return m.Apply(ctx, interfaces.Operation{Kind: interfaces.OpRegister, Registration: registration, Caller: caller}, m.now())
}

// Transfer moves ownership of registration to newOwner. Only the current
// owner may transfer.
func (m *Machine) Transfer(ctx context.Context, registration interfaces.Registration, newOwner interfaces.Address, caller interfaces.Address) (*interfaces.Receipt, error) {
	return m.Apply(ctx, interfaces.Operation{Kind: interfaces.OpTransfer, Registration: registration, NewOwner: newOwner, Caller: caller}, m.now())
}

// AddServiceRecord counts a service event for registration. Only the current
// owner may add service records.
func (m *Machine) AddServiceRecord(ctx context.Context, registration interfaces.Registration, serviceDetails string, caller interfaces.Address) (*interfaces.Receipt, error) {
	return m.Apply(ctx, interfaces.Operation{Kind: interfaces.OpAddService, Registration: registration, ServiceDetails: serviceDetails, Caller: caller}, m.now())
}

// GetInfo returns the static version string. It never fails.
func (m *Machine) GetInfo(ctx context.Context, caller interfaces.Address) (*interfaces.Receipt, error) {
	return m.Apply(ctx, interfaces.Operation{Kind: interfaces.OpGetInfo, Caller: caller}, m.now())
}

// Apply validates op and, if it is allowed, writes the resulting record. at
// is the ledger timestamp of the carrying transaction.
func (m *Machine) Apply(ctx context.Context, op interfaces.Operation, at time.Time) (*interfaces.Receipt, error) {
	if op.Kind == interfaces.OpGetInfo {
		receipt := &interfaces.Receipt{Op: op.Kind, Caller: op.Caller, Info: InfoString}
		receipt.Message = RenderMessage(receipt)
		return receipt, nil
	}

	if err := op.Validate(); err != nil {
		return nil, errInvalidInput(op.Kind, op.Registration, op.Caller, err)
	}
	if op.Caller == "" {
		return nil, errInvalidInput(op.Kind, op.Registration, op.Caller, fmt.Errorf("%w: caller is required", interfaces.ErrInvalidInput))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.Get(ctx, op.Registration)
	if err != nil && !errors.Is(err, interfaces.ErrRecordNotFound) {
		return nil, fmt.Errorf("loading record %s: %w", op.Registration, err)
	}
	if current != nil && !current.Registered {
		current = nil
	}

	var next interfaces.VehicleRecord
	receipt := &interfaces.Receipt{
		Op:           op.Kind,
		Registration: op.Registration,
		Caller:       op.Caller,
	}

	switch op.Kind {
	case interfaces.OpRegister:
		if current != nil {
			return nil, errAlreadyRegistered(op.Kind, op.Registration, op.Caller)
		}
		next = interfaces.VehicleRecord{
			Registration: op.Registration,
			Owner:        op.Caller,
			Registered:   true,
			RegisteredAt: at.UTC(),
		}

	case interfaces.OpTransfer:
		if current == nil {
			return nil, errNotFound(op.Kind, op.Registration, op.Caller)
		}
		if current.Owner != op.Caller {
			return nil, errNotOwner(op.Kind, op.Registration, op.Caller)
		}
		next = *current
		next.Owner = op.NewOwner
		receipt.PreviousOwner = current.Owner

	case interfaces.OpAddService:
		if current == nil {
			return nil, errNotFound(op.Kind, op.Registration, op.Caller)
		}
		if current.Owner != op.Caller {
			return nil, errNotOwner(op.Kind, op.Registration, op.Caller)
		}
		next = *current
		next.ServiceCount++
		receipt.ServiceDetails = op.ServiceDetails
	}

	if err := m.store.Put(ctx, &next); err != nil {
		return nil, fmt.Errorf("storing record %s: %w", op.Registration, err)
	}

	m.log.Debug("Applied registry operation",
		slog.String("op", string(op.Kind)),
		slog.String("registration", op.Registration.String()),
		slog.String("caller", op.Caller.String()))

	receipt.Owner = next.Owner
	receipt.Record = &next
	receipt.Timestamp = at.UTC()
	receipt.Message = RenderMessage(receipt)
	return receipt, nil
}

// Record returns the current record for registration.
func (m *Machine) Record(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	record, err := m.store.Get(ctx, registration)
	if errors.Is(err, interfaces.ErrRecordNotFound) || (err == nil && !record.Registered) {
		return nil, errNotFound("", registration, "")
	}
	if err != nil {
		return nil, fmt.Errorf("loading record %s: %w", registration, err)
	}
	return record, nil
}

// Owner returns the current owner of registration.
func (m *Machine) Owner(ctx context.Context, registration interfaces.Registration) (interfaces.Address, error) {
	record, err := m.Record(ctx, registration)
	if err != nil {
		return "", err
	}
	return record.Owner, nil
}

// IsRegistered reports whether registration has been registered.
func (m *Machine) IsRegistered(ctx context.Context, registration interfaces.Registration) (bool, error) {
	_, err := m.Record(ctx, registration)
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
