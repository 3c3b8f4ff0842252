package interfaces

import (
	"fmt"
	"time"
)

// OpKind tags the variant of an Operation.
type OpKind string

const (
	OpRegister   OpKind = "register"
	OpTransfer   OpKind = "transfer"
	OpAddService OpKind = "service"
	OpGetInfo    OpKind = "info"
	OpUnknown    OpKind = "unknown"

	// OpHistory tags history queries in errors. It is never submitted.
	OpHistory OpKind = "history"
)

// Mutating reports whether the operation changes registry state.
func (k OpKind) Mutating() bool {
	return k == OpRegister || k == OpTransfer || k == OpAddService
}

// Operation is one request a caller may submit to the registry. Which fields
// are meaningful depends on Kind:
//
//	OpRegister:   Registration
//	OpTransfer:   Registration, NewOwner
//	OpAddService: Registration, ServiceDetails
//	OpGetInfo:    none
//	OpUnknown:    Reason, RawArgs (decoder output only)
//
// Caller is the signer of the carrying transaction. TxID, Round and Timestamp
// are only set when the operation was decoded from a ledger transaction.
type Operation struct {
	Kind           OpKind
	Method         string
	Registration   Registration
	NewOwner       Address
	ServiceDetails string
	Caller         Address

	TxID      string
	Round     uint64
	Timestamp time.Time

	Reason  string
	RawArgs [][]byte
}

// RegisterOp builds a register operation.
func RegisterOp(registration Registration) Operation {
	return Operation{Kind: OpRegister, Registration: registration}
}

// TransferOp builds a transfer operation.
func TransferOp(registration Registration, newOwner Address) Operation {
	return Operation{Kind: OpTransfer, Registration: registration, NewOwner: newOwner}
}

// AddServiceOp builds a service-record operation.
func AddServiceOp(registration Registration, serviceDetails string) Operation {
	return Operation{Kind: OpAddService, Registration: registration, ServiceDetails: serviceDetails}
}

// GetInfoOp builds the read-only info operation.
func GetInfoOp() Operation {
	return Operation{Kind: OpGetInfo}
}

// Validate checks that the fields required by Kind are present and well formed.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpGetInfo:
		return nil
	case OpRegister:
		return op.Registration.Validate()
	case OpTransfer:
		if err := op.Registration.Validate(); err != nil {
			return err
		}
		if op.NewOwner == "" {
			return fmt.Errorf("%w: new owner is required", ErrInvalidInput)
		}
		return nil
	case OpAddService:
		if err := op.Registration.Validate(); err != nil {
			return err
		}
		if op.ServiceDetails == "" {
			return fmt.Errorf("%w: service details are required", ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported operation %q", ErrInvalidInput, op.Kind)
	}
}
