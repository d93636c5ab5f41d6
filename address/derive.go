package address

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	sha256 "github.com/minio/sha256-simd"
)

const (
	// MaxSeeds is the maximum number of seeds accepted by CreateProgramAddress,
	// bump seed included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum byte length of a single seed.
	MaxSeedLen = 32
)

var derivedMarker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedLength is returned when a seed is longer than MaxSeedLen.
	ErrMaxSeedLength = errors.New("address: seed exceeds maximum length")
	// ErrTooManySeeds is returned when more than MaxSeeds seeds are given.
	ErrTooManySeeds = errors.New("address: too many seeds")
	// ErrOnCurve means the hashed candidate is a valid ed25519 point.
	ErrOnCurve = errors.New("address: candidate lies on the ed25519 curve")
	// ErrNoViableBump means every bump from 255 down to 0 landed on the curve.
	ErrNoViableBump = errors.New("address: no viable bump seed")
)

// CreateProgramAddress computes the derived address for the exact seeds given.
// Callers proving a derivation pass the bump as the final one-byte seed.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Zero, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(seed))
		}
		_, _ = h.Write(seed)
	}
	_, _ = h.Write(programID[:])
	_, _ = h.Write(derivedMarker)

	var out Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return Zero, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bump seeds from 255 down to 0 and returns the
// first derived address that is off the curve, together with its bump.
//
// The result is a pure function of seeds and programID.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, fmt.Errorf("%w: %d seeds leave no room for a bump", ErrTooManySeeds, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(b), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// IsOnCurve reports whether a decodes to a point on the ed25519 curve.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
