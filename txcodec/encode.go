package txcodec

import (
	"fmt"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Encode converts an operation into application call arguments. The
// operation is validated first; Caller and ledger metadata are not encoded.
func Encode(op interfaces.Operation) ([][]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	method, ok := MethodFor(op.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: no method for operation %q", interfaces.ErrInvalidInput, op.Kind)
	}

	var params []string
	switch op.Kind {
	case interfaces.OpRegister:
		params = []string{op.Registration.String()}
	case interfaces.OpTransfer:
		params = []string{op.Registration.String(), op.NewOwner.String()}
	case interfaces.OpAddService:
		params = []string{op.Registration.String(), op.ServiceDetails}
	}

	args := make([][]byte, 0, 1+len(params))
	args = append(args, append([]byte(nil), method.Selector[:]...))
	for _, p := range params {
		encoded, err := EncodeString(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidInput, method.Name, err)
		}
		args = append(args, encoded)
	}
	return args, nil
}

// EncodeString encodes s as an ARC-4 string.
func EncodeString(s string) ([]byte, error) {
	return stringType.Encode(s)
}
