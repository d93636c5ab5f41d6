// Package instruction decodes the wire form of record instructions.
//
// Wire form: one opcode byte followed by a (name, message) pair, each string
// prefixed by its u32 little-endian byte length.
package instruction

import (
	"errors"
	"fmt"

	"xdao.co/intro/internal/lenprefix"
)

// Opcode is the first byte of an encoded instruction.
type Opcode uint8

const (
	OpAddRecord    Opcode = 0
	OpUpdateRecord Opcode = 1
)

var (
	// ErrUnknownOpcode is returned for an opcode other than OpAddRecord or OpUpdateRecord.
	ErrUnknownOpcode = errors.New("instruction: unknown opcode")
	// ErrMalformed is returned for empty, truncated or non-UTF-8 payloads.
	ErrMalformed = errors.New("instruction: malformed payload")
)

// Instruction is one of AddRecord or UpdateRecord.
type Instruction interface {
	Opcode() Opcode
	isInstruction()
}

// AddRecord creates the record addressed by (authority, Name).
type AddRecord struct {
	Name    string
	Message string
}

// UpdateRecord overwrites an existing record's name and message.
type UpdateRecord struct {
	Name    string
	Message string
}

func (AddRecord) Opcode() Opcode    { return OpAddRecord }
func (UpdateRecord) Opcode() Opcode { return OpUpdateRecord }
func (AddRecord) isInstruction()    {}
func (UpdateRecord) isInstruction() {}

// Decode parses data into an Instruction. Bytes after the message are ignored.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction", ErrMalformed)
	}
	op := Opcode(data[0])
	if op != OpAddRecord && op != OpUpdateRecord {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, data[0])
	}
	rest := data[1:]
	name, rest, err := readString(rest, "name")
	if err != nil {
		return nil, err
	}
	message, _, err := readString(rest, "message")
	if err != nil {
		return nil, err
	}
	if op == OpAddRecord {
		return AddRecord{Name: name, Message: message}, nil
	}
	return UpdateRecord{Name: name, Message: message}, nil
}

// Encode returns the wire form of ix.
func Encode(ix Instruction) ([]byte, error) {
	var name, message string
	switch v := ix.(type) {
	case AddRecord:
		name, message = v.Name, v.Message
	case UpdateRecord:
		name, message = v.Name, v.Message
	default:
		return nil, fmt.Errorf("%w: unsupported instruction %T", ErrUnknownOpcode, ix)
	}
	out := make([]byte, 0, 1+lenprefix.Size+len(name)+lenprefix.Size+len(message))
	out = append(out, byte(ix.Opcode()))
	out = lenprefix.AppendString(out, name)
	out = lenprefix.AppendString(out, message)
	return out, nil
}

func readString(b []byte, field string) (string, []byte, error) {
	s, rest, err := lenprefix.ReadString(b)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrMalformed, field, err)
	}
	return s, rest, nil
}
