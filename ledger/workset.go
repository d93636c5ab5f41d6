package ledger

import (
	"context"
	"fmt"

	"xdao.co/intro/address"
	"xdao.co/intro/processor"
)

// workingSet is the copy-on-write view of the accounts one transaction touches.
type workingSet struct {
	accounts map[address.Address]*Account
	writable map[address.Address]bool
	dirty    []address.Address
	touched  map[address.Address]bool
}

func loadWorkingSet(ctx context.Context, store Store, metas []AccountMeta) (*workingSet, error) {
	ws := &workingSet{
		accounts: map[address.Address]*Account{},
		writable: map[address.Address]bool{},
		touched:  map[address.Address]bool{},
	}
	for _, meta := range metas {
		if meta.Writable {
			ws.writable[meta.Address] = true
		}
		if _, seen := ws.accounts[meta.Address]; seen {
			continue
		}
		a, err := store.Get(ctx, meta.Address)
		switch {
		case err == nil:
			ws.accounts[meta.Address] = &a
		case IsNotFound(err):
			ws.accounts[meta.Address] = nil
		default:
			return nil, fmt.Errorf("load %s: %w", meta.Address, err)
		}
	}
	return ws, nil
}

func (ws *workingSet) get(addr address.Address) *Account {
	return ws.accounts[addr]
}

func (ws *workingSet) markDirty(addr address.Address) {
	if !ws.touched[addr] {
		ws.touched[addr] = true
		ws.dirty = append(ws.dirty, addr)
	}
}

func (ws *workingSet) changes() []Account {
	out := make([]Account, 0, len(ws.dirty))
	for _, addr := range ws.dirty {
		if a := ws.accounts[addr]; a != nil {
			out = append(out, a.Clone())
		}
	}
	return out
}

// handle exposes one working-set account to a program as processor.Storage.
type handle struct {
	ws      *workingSet
	addr    address.Address
	program address.Address
}

var _ processor.Storage = (*handle)(nil)

func (h *handle) Address() address.Address { return h.addr }

func (h *handle) Owner() address.Address {
	if a := h.ws.get(h.addr); a != nil {
		return a.Owner
	}
	return SystemProgramID
}

func (h *handle) Exists() bool { return h.ws.get(h.addr) != nil }

func (h *handle) Data() []byte {
	a := h.ws.get(h.addr)
	if a == nil {
		return nil
	}
	return append([]byte(nil), a.Data...)
}

func (h *handle) Capacity() int {
	if a := h.ws.get(h.addr); a != nil {
		return len(a.Data)
	}
	return 0
}

func (h *handle) Overwrite(b []byte) error {
	a := h.ws.get(h.addr)
	if a == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, h.addr)
	}
	if !h.ws.writable[h.addr] {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, h.addr)
	}
	if a.Owner != h.program {
		return fmt.Errorf("%w: %s", ErrExternalDataModified, h.addr)
	}
	if len(b) > len(a.Data) {
		return fmt.Errorf("%w: %d > %d", ErrDataTooLarge, len(b), len(a.Data))
	}
	copy(a.Data, b)
	h.ws.markDirty(h.addr)
	return nil
}

// systemAllocator creates program-owned accounts funded by the fee payer.
type systemAllocator struct {
	ws          *workingSet
	rent        Rent
	program     address.Address
	payer       address.Address
	payerSigned bool
}

var _ processor.Allocator = (*systemAllocator)(nil)

func (s *systemAllocator) MinimumBalance(size int) uint64 { return s.rent.MinimumBalance(size) }

func (s *systemAllocator) Allocate(at address.Address, size int, lamports uint64, owner address.Address, proof [][]byte) (processor.Storage, error) {
	if owner != s.program {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOwner, owner)
	}
	if !s.payerSigned {
		return nil, ErrPayerNotSigner
	}
	if size < 0 || size > MaxAccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, size)
	}
	if s.ws.get(at) != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountInUse, at)
	}
	derived, err := address.CreateProgramAddress(proof, s.program)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
	}
	if derived != at {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeeds, at)
	}
	if !s.ws.writable[at] || !s.ws.writable[s.payer] {
		return nil, ErrReadonlyAccount
	}
	payer := s.ws.get(s.payer)
	if payer == nil || payer.Lamports < lamports {
		var have uint64
		if payer != nil {
			have = payer.Lamports
		}
		return nil, fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientFunds, lamports, have)
	}

	payer.Lamports -= lamports
	s.ws.markDirty(s.payer)
	s.ws.accounts[at] = &Account{
		Address:  at,
		Owner:    owner,
		Lamports: lamports,
		Data:     make([]byte, size),
	}
	s.ws.markDirty(at)
	return &handle{ws: s.ws, addr: at, program: s.program}, nil
}
