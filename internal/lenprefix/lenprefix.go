// Package lenprefix reads and writes strings prefixed by their u32
// little-endian byte length, the string form shared by records and
// instructions.
package lenprefix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Size is the byte length of the prefix.
const Size = 4

var (
	ErrTruncated   = errors.New("lenprefix: truncated string")
	ErrInvalidUTF8 = errors.New("lenprefix: string is not valid UTF-8")
)

// AppendString appends the prefixed form of s to dst.
func AppendString(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// ReadString decodes one prefixed string from the front of b and returns the
// bytes after it.
func ReadString(b []byte) (string, []byte, error) {
	if len(b) < Size {
		return "", nil, fmt.Errorf("%w: %d byte prefix, %d remain", ErrTruncated, Size, len(b))
	}
	n := binary.LittleEndian.Uint32(b)
	b = b[Size:]
	if uint64(n) > uint64(len(b)) {
		return "", nil, fmt.Errorf("%w: declares %d bytes, %d remain", ErrTruncated, n, len(b))
	}
	s := b[:n]
	if !utf8.Valid(s) {
		return "", nil, ErrInvalidUTF8
	}
	return string(s), b[n:], nil
}
