package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
	"xdao.co/intro/ledger/ledgertest"
)

func openTemp(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	ledgertest.RunStoreConformance(t, func(t *testing.T) ledger.Store {
		return openTemp(t, filepath.Join(t.TempDir(), "ledger.db"))
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	var addr address.Address
	addr[31] = 7
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	// Max uint64 must survive the signed column.
	want := ledger.Account{Address: addr, Lamports: ^uint64(0), Data: []byte("persist")}
	if err := s1.Commit(ctx, []ledger.Account{want}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2 := openTemp(t, path)
	got, err := s2.Get(ctx, addr)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Lamports != want.Lamports || string(got.Data) != "persist" {
		t.Fatalf("got %+v", got)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "ledger.db"))
	_, err := s.Get(context.Background(), address.Address{1})
	if !ledger.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
