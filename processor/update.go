package processor

import (
	"fmt"

	"xdao.co/intro/record"
)

// UpdateRecord overwrites the name and message of the record at c.Target.
//
// The target is verified against the name already stored, not the new one,
// so a record keeps its address across renames. The size check also uses the
// stored name's length; a longer new name is only caught when the write
// exceeds the storage capacity (KindAccountDataTooSmall).
func UpdateRecord(c *Context, name, message string) error {
	log := c.log()
	log.Info("updating record", "name", name)

	if c.Target.Exists() && c.Target.Owner() != c.ProgramID {
		log.Warn("target not owned by program", "owner", c.Target.Owner().String())
		return newError(KindIllegalOwner, "target storage is not owned by this program")
	}
	if !c.Authority.Signed {
		log.Warn("missing required signature")
		return newError(KindMissingSignature, "authority must sign UpdateRecord")
	}
	if !c.Target.Exists() {
		log.Warn("record is not initialized", "address", c.Target.Address().String())
		return newError(KindUninitializedAccount, "no record storage at target")
	}

	existing, err := record.Decode(c.Target.Data())
	if err != nil {
		return wrapError(KindInvalidAccountData, "decode stored record", err)
	}

	derived, _, err := RecordAddress(c.ProgramID, c.Authority.Address, existing.Name)
	if err != nil {
		log.Warn("record address derivation failed", "err", err)
		return wrapError(KindInvalidPDA, "derive record address", err)
	}
	if derived != c.Target.Address() {
		log.Warn("invalid seeds for derived address", "derived", derived.String(), "target", c.Target.Address().String())
		return newError(KindInvalidPDA, "target does not match (authority, stored name)")
	}

	if !existing.Initialized {
		log.Warn("record is not initialized", "address", derived.String())
		return newError(KindUninitializedAccount, "record is not initialized")
	}

	if size := record.EncodedSize(existing.Name, message); size > record.Capacity {
		log.Warn("data length is larger than capacity", "size", size, "capacity", record.Capacity)
		return newError(KindInvalidDataLength, fmt.Sprintf("record needs %d bytes, capacity is %d", size, record.Capacity))
	}

	existing.Name = name
	existing.Message = message
	return writeRecord(c.Target, existing)
}
