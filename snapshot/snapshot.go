// Package snapshot exports and imports the full account set of a ledger as a
// single content-addressed blob.
//
// A snapshot is a protobuf-wire message:
//
//	1: format version (varint, currently 1)
//	2: account (bytes, ledger.Account wire form), repeated, strictly ascending by address
//
// The encoding is canonical: the same account set always yields the same bytes
// and therefore the same CID.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/intro/ledger"
	"xdao.co/intro/storage"
)

const Version = 1

var (
	ErrMalformed          = errors.New("snapshot: malformed encoding")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	ErrUnsorted           = errors.New("snapshot: accounts not strictly sorted by address")
)

const (
	fieldVersion protowire.Number = 1
	fieldAccount protowire.Number = 2
)

// Encode renders accounts canonically. The input slice is not modified.
func Encode(accounts []ledger.Account) []byte {
	sorted := make([]ledger.Account, len(accounts))
	copy(sorted, accounts)
	ledger.SortAccounts(sorted)

	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	for _, a := range sorted {
		b = protowire.AppendTag(b, fieldAccount, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Marshal())
	}
	return b
}

// Decode parses a snapshot and enforces its canonical ordering.
func Decode(b []byte) ([]ledger.Account, error) {
	var (
		version  uint64
		accounts []ledger.Account
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: version: %v", ErrMalformed, protowire.ParseError(n))
			}
			version = v
			b = b[n:]
		case num == fieldAccount && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: account: %v", ErrMalformed, protowire.ParseError(n))
			}
			a, err := ledger.UnmarshalAccount(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: account %d: %v", ErrMalformed, len(accounts), err)
			}
			if k := len(accounts); k > 0 && bytes.Compare(accounts[k-1].Address[:], a.Address[:]) >= 0 {
				return nil, fmt.Errorf("%w: %s after %s", ErrUnsorted, a.Address, accounts[k-1].Address)
			}
			accounts = append(accounts, a)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	return accounts, nil
}

// Export writes every account in src to cas and returns the snapshot CID.
func Export(ctx context.Context, src ledger.Store, cas storage.CAS) (cid.Cid, int, error) {
	accounts, err := src.All(ctx)
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("snapshot: list accounts: %w", err)
	}
	id, err := cas.Put(ctx, Encode(accounts))
	if err != nil {
		return cid.Undef, 0, fmt.Errorf("snapshot: store: %w", err)
	}
	return id, len(accounts), nil
}

// Import loads snapshot id from cas and commits its accounts to dst in one batch.
// Accounts already in dst that the snapshot does not mention are left alone.
func Import(ctx context.Context, cas storage.CAS, id cid.Cid, dst ledger.Store) (int, error) {
	b, err := cas.Get(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("snapshot: fetch %s: %w", id, err)
	}
	accounts, err := Decode(b)
	if err != nil {
		return 0, err
	}
	if err := dst.Commit(ctx, accounts); err != nil {
		return 0, fmt.Errorf("snapshot: commit: %w", err)
	}
	return len(accounts), nil
}
