package processor

import (
	"fmt"
	"log/slog"

	"xdao.co/intro/address"
	"xdao.co/intro/instruction"
)

// Entrypoint is the host-facing entry: it resolves the positional accounts
// and processes data.
func Entrypoint(programID address.Address, accounts []AccountInfo, data []byte, logger *slog.Logger) error {
	c, err := Resolve(programID, accounts, logger)
	if err != nil {
		return err
	}
	c.log().Debug("process_instruction",
		"program", programID.String(),
		"accounts", len(accounts),
		"data_len", len(data),
	)
	return Process(c, data)
}

// Process decodes data and routes it to the matching handler.
func Process(c *Context, data []byte) error {
	if c == nil || c.Target == nil {
		return newError(KindNotEnoughAccountKeys, "missing target account")
	}
	ix, err := instruction.Decode(data)
	if err != nil {
		return wrapError(KindInvalidInstruction, "decode instruction", err)
	}
	switch ix := ix.(type) {
	case instruction.AddRecord:
		if c.Allocator == nil {
			return newError(KindNotEnoughAccountKeys, "AddRecord requires the system program account")
		}
		return AddRecord(c, ix.Name, ix.Message)
	case instruction.UpdateRecord:
		return UpdateRecord(c, ix.Name, ix.Message)
	default:
		return newError(KindInvalidInstruction, fmt.Sprintf("unhandled instruction %T", ix))
	}
}
