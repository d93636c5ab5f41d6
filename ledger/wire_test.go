package ledger

import (
	"bytes"
	"errors"
	"testing"

	"xdao.co/intro/address"
	"xdao.co/intro/keys"
)

func TestTransactionWireRoundTrip(t *testing.T) {
	kp, err := keys.FromSeed(bytes.Repeat([]byte{3}, keys.SeedSize))
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	var target address.Address
	target[0] = 9
	msg := Message{
		ProgramID: target,
		Accounts: []AccountMeta{
			{Address: kp.Address(), Signer: true, Writable: true},
			{Address: target, Writable: true},
			{Address: SystemProgramID},
		},
		Data:  []byte{0, 1, 0, 0, 0, 'a', 0, 0, 0, 0},
		Nonce: []byte("nonce-1"),
	}
	tx, err := NewTransaction(msg, kp)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}

	got, err := UnmarshalTransaction(tx.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalTransaction: %v", err)
	}
	if err := got.Verify(); err != nil {
		t.Fatalf("decoded transaction no longer verifies: %v", err)
	}
	if !bytes.Equal(got.Message.Marshal(), msg.Marshal()) {
		t.Fatalf("message bytes changed across round trip")
	}
	if got.ID() != tx.ID() {
		t.Fatalf("ID changed: %s vs %s", got.ID(), tx.ID())
	}
	if string(got.Message.Nonce) != "nonce-1" {
		t.Fatalf("nonce = %q", got.Message.Nonce)
	}

	msg.Nonce = []byte("nonce-2")
	other, err := NewTransaction(msg, kp)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if other.ID() == tx.ID() {
		t.Fatalf("distinct nonces produced the same transaction ID")
	}
}

func TestAccountAndReceiptWireRoundTrip(t *testing.T) {
	var a, o address.Address
	a[0], o[1] = 1, 2
	acct := Account{Address: a, Owner: o, Lamports: 7_850_880, Data: []byte{1, 2, 3}}
	gotAcct, err := UnmarshalAccount(acct.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalAccount: %v", err)
	}
	if gotAcct.Address != a || gotAcct.Owner != o || gotAcct.Lamports != acct.Lamports || !bytes.Equal(gotAcct.Data, acct.Data) {
		t.Fatalf("account mismatch: %+v", gotAcct)
	}

	r := Receipt{ID: "sig", Logs: []string{"one", "two"}, Code: 4, Error: "InvalidPDA: nope"}
	gotR, err := UnmarshalReceipt(r.Marshal())
	if err != nil {
		t.Fatalf("UnmarshalReceipt: %v", err)
	}
	if gotR.ID != r.ID || len(gotR.Logs) != 2 || gotR.Code != 4 || gotR.Error != r.Error {
		t.Fatalf("receipt mismatch: %+v", gotR)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	if _, err := UnmarshalTransaction([]byte{0x0a, 0x05, 0x01}); !errors.Is(err, ErrMalformedWire) {
		t.Fatalf("expected ErrMalformedWire, got %v", err)
	}
	// Field 1 of an account must be 32 address bytes.
	if _, err := UnmarshalAccount([]byte{0x0a, 0x01, 0x00}); !errors.Is(err, ErrMalformedWire) {
		t.Fatalf("expected ErrMalformedWire, got %v", err)
	}
}
