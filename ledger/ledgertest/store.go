// Package ledgertest holds a conformance suite for ledger.Store implementations.
package ledgertest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
)

// NewStore constructs a fresh, empty Store for a test.
// The returned Store MUST be isolated from other tests.
type NewStore func(t *testing.T) ledger.Store

func addr(b byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, addr(1)); !ledger.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrAccountNotFound", err)
		}
	})

	t.Run("CommitGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := ledger.Account{Address: addr(1), Owner: addr(2), Lamports: 42, Data: []byte("payload")}
		if err := s.Commit(ctx, []ledger.Account{want}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, err := s.Get(ctx, want.Address)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Address != want.Address || got.Owner != want.Owner || got.Lamports != want.Lamports || !bytes.Equal(got.Data, want.Data) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
	})

	t.Run("CommitOverwrites", func(t *testing.T) {
		s := newStore(t)
		a := ledger.Account{Address: addr(1), Owner: addr(2), Lamports: 1, Data: []byte("v1")}
		if err := s.Commit(ctx, []ledger.Account{a}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		a.Lamports = 2
		a.Data = []byte("v2")
		if err := s.Commit(ctx, []ledger.Account{a}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		got, err := s.Get(ctx, a.Address)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Lamports != 2 || string(got.Data) != "v2" {
			t.Fatalf("expected overwrite, got %+v", got)
		}
	})

	t.Run("NoAliasing", func(t *testing.T) {
		s := newStore(t)
		data := []byte("abc")
		if err := s.Commit(ctx, []ledger.Account{{Address: addr(1), Data: data}}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		data[0] = 'X'
		got, err := s.Get(ctx, addr(1))
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got.Data) != "abc" {
			t.Fatalf("store aliased caller buffer: %q", got.Data)
		}
		got.Data[1] = 'Y'
		again, _ := s.Get(ctx, addr(1))
		if string(again.Data) != "abc" {
			t.Fatalf("store aliased returned buffer: %q", again.Data)
		}
	})

	t.Run("CommitTxRecordsID", func(t *testing.T) {
		s := newStore(t)
		if seen, err := s.Processed(ctx, "tx-1"); err != nil || seen {
			t.Fatalf("Processed before commit: seen=%v err=%v", seen, err)
		}
		a := ledger.Account{Address: addr(1), Owner: addr(2), Lamports: 1, Data: []byte("v1")}
		if err := s.CommitTx(ctx, "tx-1", []ledger.Account{a}); err != nil {
			t.Fatalf("CommitTx: %v", err)
		}
		if seen, err := s.Processed(ctx, "tx-1"); err != nil || !seen {
			t.Fatalf("Processed after commit: seen=%v err=%v", seen, err)
		}
		if seen, _ := s.Processed(ctx, "tx-2"); seen {
			t.Fatalf("unrelated id reported as processed")
		}
	})

	t.Run("CommitTxRejectsDuplicate", func(t *testing.T) {
		s := newStore(t)
		a := ledger.Account{Address: addr(1), Owner: addr(2), Lamports: 1, Data: []byte("v1")}
		if err := s.CommitTx(ctx, "tx-1", []ledger.Account{a}); err != nil {
			t.Fatalf("CommitTx: %v", err)
		}
		a.Data = []byte("v2")
		err := s.CommitTx(ctx, "tx-1", []ledger.Account{a})
		if !errors.Is(err, ledger.ErrAlreadyProcessed) {
			t.Fatalf("duplicate CommitTx: got err=%v want ErrAlreadyProcessed", err)
		}
		got, err := s.Get(ctx, a.Address)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got.Data) != "v1" {
			t.Fatalf("duplicate CommitTx wrote data: %q", got.Data)
		}
	})

	t.Run("AllSorted", func(t *testing.T) {
		s := newStore(t)
		if err := s.Commit(ctx, []ledger.Account{{Address: addr(3)}, {Address: addr(1)}, {Address: addr(2)}}); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 accounts, got %d", len(all))
		}
		for i, want := range []address.Address{addr(1), addr(2), addr(3)} {
			if all[i].Address != want {
				t.Fatalf("All[%d] = %s, want %s", i, all[i].Address, want)
			}
		}
	})
}
