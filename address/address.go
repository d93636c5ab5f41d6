package address

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the byte length of an Address.
const Size = 32

// Address identifies an account. Wallet addresses are ed25519 public keys;
// derived addresses are off-curve hashes (see FindProgramAddress).
type Address [Size]byte

// Zero is the all-zero address.
var Zero Address

var ErrInvalidAddress = errors.New("address: invalid address")

// FromBytes copies b into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Parse decodes the base58 text form of an address.
func Parse(s string) (Address, error) {
	if s == "" {
		return Zero, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return FromBytes(b)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return base58.Encode(a[:]) }

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a[:])
	return out
}

func (a Address) IsZero() bool { return a == Zero }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
