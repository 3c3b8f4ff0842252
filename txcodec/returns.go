package txcodec

import (
	"bytes"
	"errors"
	"fmt"
)

// ReturnPrefix marks the log entry carrying an ARC-4 method return value.
var ReturnPrefix = []byte{0x15, 0x1f, 0x7c, 0x75}

// ErrNoReturnValue is returned when no log entry carries a return value.
var ErrNoReturnValue = errors.New("no ARC-4 return value in logs")

// EncodeReturn builds the log entry for a string return value.
func EncodeReturn(value string) ([]byte, error) {
	encoded, err := EncodeString(value)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), ReturnPrefix...), encoded...), nil
}

// DecodeReturn extracts the string return value from transaction logs. The
// last prefixed entry wins.
func DecodeReturn(logs [][]byte) (string, error) {
	for i := len(logs) - 1; i >= 0; i-- {
		if !bytes.HasPrefix(logs[i], ReturnPrefix) {
			continue
		}
		value, err := DecodeString(logs[i][len(ReturnPrefix):])
		if err != nil {
			return "", fmt.Errorf("decoding return value: %w", err)
		}
		return value, nil
	}
	return "", ErrNoReturnValue
}
