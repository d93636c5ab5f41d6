package keys

import (
	"errors"

	"golang.org/x/crypto/sha3"
)

const deriveDomain = "xdao-intro-keys-v1"

// DeriveSeed deterministically derives a label-specific seed from a root seed.
func DeriveSeed(rootSeed []byte, label string) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, errors.New("root seed must be 32 bytes")
	}
	if err := CheckName(label); err != nil {
		return nil, err
	}

	h := sha3.New256()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(deriveDomain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("label:"))
	_, _ = h.Write([]byte(label))
	sum := h.Sum(nil)

	out := make([]byte, SeedSize)
	copy(out, sum[:SeedSize])
	return out, nil
}
