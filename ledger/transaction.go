package ledger

import (
	"fmt"

	sha256 "github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"

	"xdao.co/intro/address"
	"xdao.co/intro/keys"
)

// AccountMeta is one positional account of a Message.
type AccountMeta struct {
	Address  address.Address
	Signer   bool
	Writable bool
}

// Message is the signed part of a transaction: one program invocation with
// its positional accounts.
type Message struct {
	ProgramID address.Address
	Accounts  []AccountMeta
	Data      []byte
	// Nonce distinguishes otherwise identical messages.
	Nonce []byte
}

// Signers returns the addresses of signer metas, in order.
func (m Message) Signers() []address.Address {
	var out []address.Address
	for _, meta := range m.Accounts {
		if meta.Signer {
			out = append(out, meta.Address)
		}
	}
	return out
}

// FeePayer is the first signer, or the zero address when nobody signs.
func (m Message) FeePayer() (address.Address, bool) {
	signers := m.Signers()
	if len(signers) == 0 {
		return address.Zero, false
	}
	return signers[0], true
}

// Transaction pairs a Message with one signature per signer meta.
type Transaction struct {
	Message    Message
	Signatures [][]byte
}

// NewTransaction signs msg with the keypairs of its signer metas.
func NewTransaction(msg Message, signers ...keys.Keypair) (*Transaction, error) {
	byAddr := make(map[address.Address]keys.Keypair, len(signers))
	for _, kp := range signers {
		byAddr[kp.Address()] = kp
	}
	payload := msg.Marshal()
	tx := &Transaction{Message: msg}
	for _, s := range msg.Signers() {
		kp, ok := byAddr[s]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, s)
		}
		tx.Signatures = append(tx.Signatures, kp.Sign(payload))
	}
	return tx, nil
}

// Verify checks every signer meta against its signature.
func (tx *Transaction) Verify() error {
	signers := tx.Message.Signers()
	if len(signers) != len(tx.Signatures) {
		return fmt.Errorf("%w: %d signers, %d signatures", ErrSignatureVerification, len(signers), len(tx.Signatures))
	}
	payload := tx.Message.Marshal()
	for i, s := range signers {
		if !keys.Verify(s, payload, tx.Signatures[i]) {
			return fmt.Errorf("%w: signer %s", ErrSignatureVerification, s)
		}
	}
	return nil
}

// ID is the base58 first signature, or the base58 message hash for
// transactions without signers.
func (tx *Transaction) ID() string {
	if len(tx.Signatures) > 0 {
		return base58.Encode(tx.Signatures[0])
	}
	sum := sha256.Sum256(tx.Message.Marshal())
	return base58.Encode(sum[:])
}
