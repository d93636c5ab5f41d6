package processor

import (
	"fmt"

	"xdao.co/intro/record"
)

// AddRecord creates the record addressed by (authority, name) at c.Target.
//
// Duplicate creation is rejected by the allocator, which refuses occupied
// addresses; no existence check happens here.
func AddRecord(c *Context, name, message string) error {
	log := c.log()
	log.Info("adding record", "name", name, "message", message)

	if !c.Authority.Signed {
		log.Warn("missing required signature")
		return newError(KindMissingSignature, "authority must sign AddRecord")
	}

	seeds := RecordSeeds(c.Authority.Address, name)
	derived, bump, err := RecordAddress(c.ProgramID, c.Authority.Address, name)
	if err != nil {
		log.Warn("record address derivation failed", "err", err)
		return wrapError(KindInvalidPDA, "derive record address", err)
	}
	if derived != c.Target.Address() {
		log.Warn("invalid seeds for derived address", "derived", derived.String(), "target", c.Target.Address().String())
		return newError(KindInvalidPDA, "target does not match (authority, name)")
	}

	if size := record.EncodedSize(name, message); size > record.Capacity {
		log.Warn("data length is larger than capacity", "size", size, "capacity", record.Capacity)
		return newError(KindInvalidDataLength, fmt.Sprintf("record needs %d bytes, capacity is %d", size, record.Capacity))
	}

	lamports := c.Allocator.MinimumBalance(record.Capacity)
	proof := append(seeds, []byte{bump})
	storage, err := c.Allocator.Allocate(derived, record.Capacity, lamports, c.ProgramID, proof)
	if err != nil {
		log.Warn("allocation failed", "address", derived.String(), "err", err)
		return wrapError(KindAllocationFailure, "allocate record storage", err)
	}
	log.Info("record storage created", "address", derived.String(), "lamports", lamports)

	return writeRecord(storage, record.Record{Initialized: true, Name: name, Message: message})
}

func writeRecord(s Storage, r record.Record) error {
	enc := r.Encode()
	if capacity := s.Capacity(); len(enc) > capacity {
		return newError(KindAccountDataTooSmall, fmt.Sprintf("encoded record is %d bytes, storage holds %d", len(enc), capacity))
	}
	if err := s.Overwrite(enc); err != nil {
		return wrapError(KindInvalidArgument, "write record storage", err)
	}
	return nil
}
