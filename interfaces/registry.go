package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrRecordNotFound is returned by a RecordStore when no record exists for a key.
var ErrRecordNotFound = errors.New("vehicle record not found")

// VehicleRecord is the registry state for one registration.
type VehicleRecord struct {
	Registration Registration `json:"registration"`
	Owner        Address      `json:"owner"`
	Registered   bool         `json:"registered"`
	ServiceCount uint64       `json:"service_count"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// RecordStore maps registrations to records. Put replaces the record for its
// registration atomically.
type RecordStore interface {
	Get(ctx context.Context, registration Registration) (*VehicleRecord, error)
	Put(ctx context.Context, record *VehicleRecord) error
}

// Receipt is the structured success result of a registry operation.
// Message is rendered from the other fields for display and is never parsed.
type Receipt struct {
	Op             OpKind         `json:"op"`
	Registration   Registration   `json:"registration,omitempty"`
	Caller         Address        `json:"caller,omitempty"`
	Owner          Address        `json:"owner,omitempty"`
	PreviousOwner  Address        `json:"previous_owner,omitempty"`
	ServiceDetails string         `json:"service_details,omitempty"`
	Info           string         `json:"info,omitempty"`
	Record         *VehicleRecord `json:"record,omitempty"`

	TxID        string    `json:"tx_id,omitempty"`
	Round       uint64    `json:"round,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	ReturnValue string    `json:"return_value,omitempty"`

	Message string `json:"message"`
}

// VehicleRegistry is the caller-facing registry contract. It is implemented by
// clients that submit operations to a ledger.
type VehicleRegistry interface {
	Register(ctx context.Context, registration Registration, caller Address) (*Receipt, error)
	Transfer(ctx context.Context, registration Registration, newOwner Address, caller Address) (*Receipt, error)
	AddServiceRecord(ctx context.Context, registration Registration, serviceDetails string, caller Address) (*Receipt, error)
	GetInfo(ctx context.Context, caller Address) (*Receipt, error)
}

// RecordReader exposes the current state of registrations.
type RecordReader interface {
	Record(ctx context.Context, registration Registration) (*VehicleRecord, error)
}
