package interfaces

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MaxRegistrationLength bounds the normalized registration length.
const MaxRegistrationLength = 20

var registrationPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Registration is the natural key of a vehicle record: an uppercase
// alphanumeric plate string such as "12D12345".
type Registration string

// NormalizeRegistration applies the boundary normalization used for every
// registration key: whitespace and hyphens are removed and letters are
// upper-cased. "12-d-12345" and " 12D12345 " both normalize to "12D12345".
func NormalizeRegistration(raw string) Registration {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
	return Registration(normalized)
}

// NewRegistration normalizes and validates a registration string.
func NewRegistration(raw string) (Registration, error) {
	registration := NormalizeRegistration(raw)
	if err := registration.Validate(); err != nil {
		return "", err
	}
	return registration, nil
}

// Validate checks that the registration is already normalized and well formed.
func (r Registration) Validate() error {
	switch {
	case r == "":
		return fmt.Errorf("%w: registration is required", ErrInvalidInput)
	case len(r) > MaxRegistrationLength:
		return fmt.Errorf("%w: registration %q exceeds %d characters", ErrInvalidInput, string(r), MaxRegistrationLength)
	case !registrationPattern.MatchString(string(r)):
		return fmt.Errorf("%w: registration %q must be uppercase alphanumeric", ErrInvalidInput, string(r))
	}
	return nil
}

// String returns the registration as a string.
func (r Registration) String() string {
	return string(r)
}

// Address is an opaque ledger identity (an account address). Addresses are
// compared exactly; only surrounding whitespace is trimmed at the boundary.
type Address string

// NewAddress trims and validates an address.
func NewAddress(raw string) (Address, error) {
	addr := Address(strings.TrimSpace(raw))
	if addr == "" {
		return "", fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if strings.IndexFunc(string(addr), unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: address %q contains whitespace", ErrInvalidInput, string(addr))
	}
	return addr, nil
}

// String returns the address as a string.
func (a Address) String() string {
	return string(a)
}

// ApplicationID identifies the registry program on the ledger.
type ApplicationID uint64
