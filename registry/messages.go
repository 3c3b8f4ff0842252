package registry

import (
	"fmt"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// InfoString is the static version string reported by getInfo.
const InfoString = "Irish Vehicle Registry v2.0 - Enhanced with State Storage"

// RenderMessage derives the display message for a receipt.
func RenderMessage(r *interfaces.Receipt) string {
	switch r.Op {
	case interfaces.OpRegister:
		return fmt.Sprintf("Vehicle %s registered successfully to %s", r.Registration, r.Owner)
	case interfaces.OpTransfer:
		return fmt.Sprintf("%s ownership transferred to %s", r.Registration, r.Owner)
	case interfaces.OpAddService:
		return fmt.Sprintf("Service record '%s' added for %s at %d", r.ServiceDetails, r.Registration, r.Timestamp.Unix())
	case interfaces.OpGetInfo:
		return r.Info
	default:
		return ""
	}
}

func errAlreadyRegistered(op interfaces.OpKind, registration interfaces.Registration, caller interfaces.Address) error {
	return interfaces.NewRegistryError(interfaces.KindAlreadyRegistered, op, registration, caller,
		"Vehicle %s is already registered", registration)
}

func errNotFound(op interfaces.OpKind, registration interfaces.Registration, caller interfaces.Address) error {
	return interfaces.NewRegistryError(interfaces.KindNotFound, op, registration, caller,
		"Vehicle %s not found", registration)
}

func errNotOwner(op interfaces.OpKind, registration interfaces.Registration, caller interfaces.Address) error {
	action := "transfer"
	if op == interfaces.OpAddService {
		action = "add service records for"
	}
	return interfaces.NewRegistryError(interfaces.KindNotOwner, op, registration, caller,
		"Only owner can %s %s", action, registration)
}

func errInvalidInput(op interfaces.OpKind, registration interfaces.Registration, caller interfaces.Address, err error) error {
	return &interfaces.RegistryError{
		Kind:         interfaces.KindInvalidInput,
		Op:           op,
		Registration: registration,
		Caller:       caller,
		Reason:       fmt.Sprintf("invalid %s request", op),
		Err:          err,
	}
}
