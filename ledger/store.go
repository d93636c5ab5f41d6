package ledger

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"xdao.co/intro/address"
)

// Store persists accounts and the IDs of committed transactions.
//
// Contract:
//   - Get returns ErrAccountNotFound for absent accounts.
//   - Commit and CommitTx apply all accounts or none.
//   - CommitTx records txID in the same step and returns ErrAlreadyProcessed,
//     writing nothing, when txID was recorded before.
//   - All returns accounts sorted by address.
//   - Returned accounts never alias stored buffers.
type Store interface {
	Get(ctx context.Context, addr address.Address) (Account, error)
	Commit(ctx context.Context, accounts []Account) error
	CommitTx(ctx context.Context, txID string, accounts []Account) error
	Processed(ctx context.Context, txID string) (bool, error)
	All(ctx context.Context) ([]Account, error)
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu        sync.RWMutex
	accounts  map[address.Address]Account
	processed map[string]struct{}
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:  map[address.Address]Account{},
		processed: map[string]struct{}{},
	}
}

func (m *MemStore) Get(_ context.Context, addr address.Address) (Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[addr]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (m *MemStore) Commit(_ context.Context, accounts []Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range accounts {
		m.accounts[a.Address] = a.Clone()
	}
	return nil
}

func (m *MemStore) CommitTx(_ context.Context, txID string, accounts []Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.processed[txID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, txID)
	}
	m.processed[txID] = struct{}{}
	for _, a := range accounts {
		m.accounts[a.Address] = a.Clone()
	}
	return nil
}

func (m *MemStore) Processed(_ context.Context, txID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.processed[txID]
	return ok, nil
}

func (m *MemStore) All(_ context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a.Clone())
	}
	SortAccounts(out)
	return out, nil
}

// SortAccounts orders accounts by address bytes.
func SortAccounts(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].Address[:], accounts[j].Address[:]) < 0
	})
}
