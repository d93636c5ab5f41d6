package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/intro/cidutil"
)

// NamedCAS associates a CAS with a stable backend name for reporting.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// Mirror writes to every backend and reads from the first one that has the
// object. Backend order is the read order.
type Mirror struct {
	Backends []NamedCAS
}

var _ CAS = Mirror{}

// PutAll writes b to all backends and returns the per-backend CID.
// Any backend returning a CID other than cidutil.Sum(b) yields ErrCIDMismatch.
func (m Mirror) PutAll(ctx context.Context, b []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.Sum(b)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(m.Backends) == 0 {
		return cid.Undef, nil, errors.New("storage: mirror has no backends")
	}

	out := make(map[string]cid.Cid, len(m.Backends))
	for _, be := range m.Backends {
		if be.CAS == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil CAS for backend %q", be.Name)
		}
		got, err := be.CAS.Put(ctx, b)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", be.Name, err)
		}
		out[be.Name] = got
		if got != want {
			return cid.Undef, out, ErrCIDMismatch
		}
	}
	return want, out, nil
}

func (m Mirror) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(ctx, b)
	return id, err
}

func (m Mirror) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	for _, be := range m.Backends {
		b, err := be.CAS.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, fmt.Errorf("storage: backend %q: %w", be.Name, err)
	}
	return nil, ErrNotFound
}

func (m Mirror) Has(ctx context.Context, id cid.Cid) bool {
	for _, be := range m.Backends {
		if be.CAS.Has(ctx, id) {
			return true
		}
	}
	return false
}
