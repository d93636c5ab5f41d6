// Package record implements the fixed binary layout of a stored intro record.
//
// Layout:
//
//	byte 0         initialized flag (0 or 1)
//	bytes 1..5     name length (u32 little-endian)
//	...            name (UTF-8)
//	next 4 bytes   message length (u32 little-endian)
//	...            message (UTF-8)
//	remaining      padding up to the storage capacity, never read
//
// The codec is pure: Encode returns an owned buffer and never checks Capacity.
// Callers enforce the capacity before writing to storage.
package record

import (
	"errors"
	"fmt"

	"xdao.co/intro/internal/lenprefix"
)

// Capacity is the fixed byte size of every record storage object.
const Capacity = 1000

const lenPrefix = lenprefix.Size

var (
	// ErrTruncated means the buffer ends inside a field.
	ErrTruncated = errors.New("record: truncated buffer")
	// ErrInvalidFlag means byte 0 is neither 0 nor 1.
	ErrInvalidFlag = errors.New("record: invalid initialized flag")
	// ErrInvalidUTF8 means the name or message bytes are not UTF-8.
	ErrInvalidUTF8 = errors.New("record: string is not valid UTF-8")
)

// Record is the decoded content of a record storage object.
type Record struct {
	Initialized bool
	Name        string
	Message     string
}

// EncodedSize returns the encoded length of a record with the given fields.
func EncodedSize(name, message string) int {
	return 1 + (lenPrefix + len(name)) + (lenPrefix + len(message))
}

// Size is the encoded length of r.
func (r Record) Size() int { return EncodedSize(r.Name, r.Message) }

// Fits reports whether the encoded record fits in Capacity.
func (r Record) Fits() bool { return r.Size() <= Capacity }

// Encode returns the exact encoded bytes of r, without padding.
func (r Record) Encode() []byte {
	out := make([]byte, 0, r.Size())
	if r.Initialized {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = lenprefix.AppendString(out, r.Name)
	out = lenprefix.AppendString(out, r.Message)
	return out
}

// Decode reads a record from the prefix of b. Trailing bytes are ignored, so
// a full storage buffer can be passed directly. An all-zero buffer decodes to
// the zero Record.
func Decode(b []byte) (Record, error) {
	var r Record
	if len(b) < 1 {
		return r, fmt.Errorf("%w: missing initialized flag", ErrTruncated)
	}
	switch b[0] {
	case 0:
	case 1:
		r.Initialized = true
	default:
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidFlag, b[0])
	}
	rest := b[1:]

	name, rest, err := readString(rest, "name")
	if err != nil {
		return Record{}, err
	}
	message, _, err := readString(rest, "message")
	if err != nil {
		return Record{}, err
	}
	r.Name = name
	r.Message = message
	return r, nil
}

func readString(b []byte, field string) (string, []byte, error) {
	s, rest, err := lenprefix.ReadString(b)
	switch {
	case errors.Is(err, lenprefix.ErrInvalidUTF8):
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidUTF8, field)
	case err != nil:
		return "", nil, fmt.Errorf("%w: %s: %w", ErrTruncated, field, err)
	}
	return s, rest, nil
}
