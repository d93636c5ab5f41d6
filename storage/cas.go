// Package storage holds content-addressed blob stores for ledger snapshots.
package storage

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs are CIDv1 raw sha2-256 of the bytes written (see cidutil.Sum).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(ctx context.Context, b []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) bool
}

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrInvalidCID = errors.New("storage: invalid cid")
	// ErrCIDMismatch means bytes did not hash to the CID they were stored or
	// served under, or two mirrored backends disagreed.
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	// ErrImmutable is returned when a Put would replace existing bytes.
	ErrImmutable = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
