package keys

import (
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"

	"xdao.co/intro/address"
)

// SeedSize is the byte length of an ed25519 seed.
const SeedSize = ed25519.SeedSize

// Keypair is an ed25519 signing key. Its public key is the account address.
type Keypair struct {
	priv ed25519.PrivateKey
}

// FromSeed returns the keypair for a 32-byte seed.
func FromSeed(seed []byte) (Keypair, error) {
	if len(seed) != SeedSize {
		return Keypair{}, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	return Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Generate returns a keypair with a seed read from rand.
func Generate(rand io.Reader) (Keypair, []byte, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return Keypair{}, nil, err
	}
	kp, err := FromSeed(seed)
	return kp, seed, err
}

func (k Keypair) Address() address.Address {
	var a address.Address
	copy(a[:], k.priv.Public().(ed25519.PublicKey))
	return a
}

func (k Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Seed returns a copy of the keypair's seed.
func (k Keypair) Seed() []byte {
	return append([]byte(nil), k.priv.Seed()...)
}

// Verify reports whether sig is a valid signature of message by signer.
func Verify(signer address.Address, message, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, sig)
}
