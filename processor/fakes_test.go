package processor

import (
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"

	"xdao.co/intro/address"
	"xdao.co/intro/record"
)

var errOccupied = errors.New("fake: address already in use")

type fakeStorage struct {
	addr   address.Address
	owner  address.Address
	exists bool
	data   []byte
	writes int
}

func (s *fakeStorage) Address() address.Address { return s.addr }
func (s *fakeStorage) Owner() address.Address   { return s.owner }
func (s *fakeStorage) Exists() bool             { return s.exists }
func (s *fakeStorage) Capacity() int            { return len(s.data) }

func (s *fakeStorage) Data() []byte {
	return append([]byte(nil), s.data...)
}

func (s *fakeStorage) Overwrite(b []byte) error {
	if len(b) > len(s.data) {
		return fmt.Errorf("fake: %d bytes exceed capacity %d", len(b), len(s.data))
	}
	copy(s.data, b)
	s.writes++
	return nil
}

type allocation struct {
	storage  *fakeStorage
	lamports uint64
	proof    [][]byte
}

type fakeAllocator struct {
	rent      uint64
	occupied  map[address.Address]bool
	allocated []allocation
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{rent: 7_850_880, occupied: map[address.Address]bool{}}
}

func (a *fakeAllocator) MinimumBalance(size int) uint64 { return a.rent }

func (a *fakeAllocator) Allocate(at address.Address, size int, lamports uint64, owner address.Address, proof [][]byte) (Storage, error) {
	if a.occupied[at] {
		return nil, errOccupied
	}
	got, err := address.CreateProgramAddress(proof, owner)
	if err != nil {
		return nil, err
	}
	if got != at {
		return nil, errors.New("fake: proof does not derive target")
	}
	s := &fakeStorage{addr: at, owner: owner, exists: true, data: make([]byte, size)}
	a.occupied[at] = true
	a.allocated = append(a.allocated, allocation{storage: s, lamports: lamports, proof: proof})
	return s, nil
}

func testProgram() address.Address {
	var p address.Address
	for i := range p {
		p[i] = byte(200 - i)
	}
	return p
}

func testWallet(seedByte byte) address.Address {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	a, err := address.FromBytes(pub)
	if err != nil {
		panic(err)
	}
	return a
}

func mustRecordAddress(program, authority address.Address, name string) address.Address {
	a, _, err := RecordAddress(program, authority, name)
	if err != nil {
		panic(err)
	}
	return a
}

// storedRecord returns program-owned storage holding r at the address derived
// from (authority, r.Name).
func storedRecord(program, authority address.Address, r record.Record) *fakeStorage {
	data := make([]byte, record.Capacity)
	copy(data, r.Encode())
	return &fakeStorage{
		addr:   mustRecordAddress(program, authority, r.Name),
		owner:  program,
		exists: true,
		data:   data,
	}
}
