package txcodec

import (
	"fmt"
	"unicode/utf8"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// Decode parses a ledger transaction into an operation. It never fails: input
// that cannot be decoded produces an OpUnknown operation with Reason set and
// the raw arguments preserved. Sender, transaction id, round and timestamp are
// always carried over.
func Decode(tx interfaces.LedgerTransaction) (op interfaces.Operation) {
	op = interfaces.Operation{
		Kind:      interfaces.OpUnknown,
		Caller:    tx.Sender,
		TxID:      tx.ID,
		Round:     tx.Round,
		Timestamp: tx.Timestamp,
		RawArgs:   tx.Args,
	}

	defer func() {
		if r := recover(); r != nil {
			op.Kind = interfaces.OpUnknown
			op.Reason = fmt.Sprintf("%s: %v", interfaces.KindDecodeFailure, r)
		}
	}()

	if len(tx.Args) == 0 {
		op.Reason = "no application arguments"
		return op
	}
	if len(tx.Args[0]) != SelectorSize {
		op.Reason = fmt.Sprintf("%s: selector must be %d bytes, got %d", interfaces.KindDecodeFailure, SelectorSize, len(tx.Args[0]))
		return op
	}

	var sel Selector
	copy(sel[:], tx.Args[0])
	method, ok := MethodBySelector(sel)
	if !ok {
		op.Reason = fmt.Sprintf("unknown method selector %s", sel)
		return op
	}
	op.Method = method.Name

	params := tx.Args[1:]
	if len(params) != method.NumArgs {
		op.Reason = fmt.Sprintf("%s: %s expects %d arguments, got %d", interfaces.KindDecodeFailure, method.Name, method.NumArgs, len(params))
		return op
	}

	values := make([]string, len(params))
	for i, raw := range params {
		value, err := DecodeString(raw)
		if err != nil {
			op.Reason = fmt.Sprintf("%s: %s argument %d: %v", interfaces.KindDecodeFailure, method.Name, i, err)
			return op
		}
		values[i] = value
	}

	switch method.Kind {
	case interfaces.OpRegister:
		op.Registration = interfaces.NormalizeRegistration(values[0])
	case interfaces.OpTransfer:
		op.Registration = interfaces.NormalizeRegistration(values[0])
		op.NewOwner = interfaces.Address(values[1])
	case interfaces.OpAddService:
		op.Registration = interfaces.NormalizeRegistration(values[0])
		op.ServiceDetails = values[1]
	}
	op.Kind = method.Kind
	return op
}

// DecodeString decodes a single ARC-4 string, rejecting trailing bytes and
// invalid UTF-8.
func DecodeString(raw []byte) (string, error) {
	if len(raw) < 2 {
		return "", fmt.Errorf("truncated string header (%d bytes)", len(raw))
	}
	declared := int(raw[0])<<8 | int(raw[1])
	if declared != len(raw)-2 {
		return "", fmt.Errorf("string length %d does not match payload of %d bytes", declared, len(raw)-2)
	}
	decoded, err := stringType.Decode(raw)
	if err != nil {
		return "", err
	}
	s, ok := decoded.(string)
	if !ok {
		return "", fmt.Errorf("unexpected decoded type %T", decoded)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("string is not valid UTF-8")
	}
	return s, nil
}
