package processor

import (
	"errors"
	"strings"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind (or Code) rather than matching error strings.
type Kind string

const (
	KindInvalidInstruction   Kind = "InvalidInstruction"
	KindMissingSignature     Kind = "MissingSignature"
	KindIllegalOwner         Kind = "IllegalOwner"
	KindInvalidPDA           Kind = "InvalidPDA"
	KindUninitializedAccount Kind = "UninitializedAccount"
	KindInvalidDataLength    Kind = "InvalidDataLength"
	KindAllocationFailure    Kind = "AllocationFailure"
	KindNotEnoughAccountKeys Kind = "NotEnoughAccountKeys"
	KindInvalidAccountData   Kind = "InvalidAccountData"
	KindAccountDataTooSmall  Kind = "AccountDataTooSmall"
	KindInvalidArgument      Kind = "InvalidArgument"
)

var kindCodes = map[Kind]uint32{
	KindInvalidInstruction:   1,
	KindMissingSignature:     2,
	KindIllegalOwner:         3,
	KindInvalidPDA:           4,
	KindUninitializedAccount: 5,
	KindInvalidDataLength:    6,
	KindAllocationFailure:    7,
	KindNotEnoughAccountKeys: 8,
	KindInvalidAccountData:   9,
	KindAccountDataTooSmall:  10,
	KindInvalidArgument:      11,
}

// CodeUnknown is reported for errors that carry no Kind.
const CodeUnknown uint32 = 0xFFFF

// Error is the processor's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) error {
	if cause == nil {
		return newError(kind, msg)
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind of a structured error, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// Code returns the numeric result code forwarded to the host for err.
// A nil error is code 0.
func Code(err error) uint32 {
	if err == nil {
		return 0
	}
	if c, ok := kindCodes[KindOf(err)]; ok {
		return c
	}
	return CodeUnknown
}

// ParseKind recovers a Kind from the prefix of a rendered *Error message,
// as carried across process boundaries.
func ParseKind(s string) (Kind, string, bool) {
	prefix, rest, ok := strings.Cut(s, ": ")
	if !ok {
		return "", s, false
	}
	k := Kind(prefix)
	if _, known := kindCodes[k]; !known {
		return "", s, false
	}
	return k, rest, true
}
