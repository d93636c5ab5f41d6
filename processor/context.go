package processor

import (
	"log/slog"

	"xdao.co/intro/address"
	"xdao.co/intro/logs"
)

var discardLogger = logs.Discard()

// Storage is a fixed-capacity byte container at an address, tagged with its
// owning program. Implementations are supplied by the host.
type Storage interface {
	Address() address.Address
	Owner() address.Address
	// Exists is false when no storage object has been allocated at Address.
	Exists() bool
	// Data returns a copy of the full buffer, padding included.
	Data() []byte
	Capacity() int
	// Overwrite copies b over the start of the buffer; bytes past len(b) are
	// left untouched.
	Overwrite(b []byte) error
}

// Allocator creates new storage objects on behalf of a program.
type Allocator interface {
	// MinimumBalance is the funding that keeps size bytes exempt from storage fees.
	MinimumBalance(size int) uint64
	// Allocate creates a zeroed storage object of size bytes at `at`, funded
	// with lamports and owned by owner. proof holds the derivation seeds,
	// bump last, that show owner controls `at`.
	Allocate(at address.Address, size int, lamports uint64, owner address.Address, proof [][]byte) (Storage, error)
}

// Authority is the identity an instruction acts for.
type Authority struct {
	Address address.Address
	// Signed is true when the transaction carries a valid signature for Address.
	Signed bool
}

// Context carries the named handles an instruction operates on, resolved
// once at the boundary by Resolve.
type Context struct {
	ProgramID address.Address
	Authority Authority
	Target    Storage
	// Allocator is only needed by AddRecord.
	Allocator Allocator
	Logger    *slog.Logger
}

func (c *Context) log() *slog.Logger {
	if c.Logger == nil {
		return discardLogger
	}
	return c.Logger
}

// AccountInfo is one positional account handed over by the host.
type AccountInfo struct {
	Storage Storage
	Signer  bool
	// Allocator is set by the host on the system program account.
	Allocator Allocator
}

// Resolve builds a Context from the host's positional account list:
// authority, target record storage, then the system program for AddRecord.
func Resolve(programID address.Address, accounts []AccountInfo, logger *slog.Logger) (*Context, error) {
	if len(accounts) < 2 {
		return nil, newError(KindNotEnoughAccountKeys, "expected authority and target accounts")
	}
	for _, a := range accounts[:2] {
		if a.Storage == nil {
			return nil, newError(KindNotEnoughAccountKeys, "missing account handle")
		}
	}
	c := &Context{
		ProgramID: programID,
		Authority: Authority{Address: accounts[0].Storage.Address(), Signed: accounts[0].Signer},
		Target:    accounts[1].Storage,
		Logger:    logger,
	}
	if len(accounts) > 2 {
		c.Allocator = accounts[2].Allocator
	}
	return c, nil
}
