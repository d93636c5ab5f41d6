package ledger

import "xdao.co/intro/address"

// SystemProgramID owns wallets and allocates new accounts.
var SystemProgramID = address.Zero

// MaxAccountSize bounds a single allocation.
const MaxAccountSize = 10 << 20

// Account is a stored balance plus owner-controlled data.
type Account struct {
	Address  address.Address
	Owner    address.Address
	Lamports uint64
	Data     []byte
}

// Clone returns a copy whose Data does not alias a.
func (a Account) Clone() Account {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

// Rent computes the balance that keeps an account exempt from storage fees.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
	// Overhead is charged per account on top of its data length.
	Overhead uint64
}

// DefaultRent matches the rent schedule records were sized against.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2, Overhead: 128}
}

func (r Rent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (r.Overhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}
