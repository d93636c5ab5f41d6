// Package cidutil derives and checks the content identifiers used for ledger snapshots.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrUnsupportedCID = errors.New("cidutil: expected CIDv1 raw sha2-256")

// Sum returns the CIDv1 (raw codec, sha2-256 multihash) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is Sum rendered in its default multibase, or "" if hashing fails.
func String(data []byte) string {
	id, err := Sum(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes s and rejects anything other than CIDv1 raw sha2-256.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: parse %q: %w", s, err)
	}
	if err := Check(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Check reports whether id has the shape Sum produces.
func Check(id cid.Cid) error {
	if !id.Defined() {
		return ErrUnsupportedCID
	}
	p := id.Prefix()
	if p.Version != 1 || p.Codec != cid.Raw || p.MhType != multihash.SHA2_256 {
		return fmt.Errorf("%w: got %s", ErrUnsupportedCID, id)
	}
	return nil
}

// Verify reports whether data hashes to id.
func Verify(id cid.Cid, data []byte) bool {
	got, err := Sum(data)
	return err == nil && got.Equals(id)
}
