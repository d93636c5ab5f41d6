package record

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func TestEncodeGolden(t *testing.T) {
	g := goldie.New(t)

	alice := Record{Initialized: true, Name: "Alice", Message: "Hello"}
	g.Assert(t, "alice_hello", []byte(hex.EncodeToString(alice.Encode())))

	g.Assert(t, "zero", []byte(hex.EncodeToString(Record{}.Encode())))
}

func TestRoundTrip(t *testing.T) {
	cases := []Record{
		{},
		{Initialized: true, Name: "Alice", Message: "Hello"},
		{Initialized: true, Name: "", Message: "no name"},
		{Initialized: true, Name: "Zoë", Message: "héllo, wörld ✓"},
		{Initialized: false, Name: "pending", Message: ""},
		{Initialized: true, Name: "max", Message: strings.Repeat("m", Capacity-EncodedSize("max", ""))},
	}
	for _, want := range cases {
		if !want.Fits() {
			t.Fatalf("fixture does not fit: %d bytes", want.Size())
		}
		enc := want.Encode()
		if len(enc) != want.Size() {
			t.Fatalf("Encode length %d, Size %d", len(enc), want.Size())
		}
		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%+v): %v", want, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestDecodeIgnoresPadding(t *testing.T) {
	want := Record{Initialized: true, Name: "Alice", Message: "Hello"}
	buf := make([]byte, Capacity)
	copy(buf, want.Encode())
	for i := want.Size(); i < len(buf); i++ {
		buf[i] = 0xEE
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecodeAllZeroBuffer(t *testing.T) {
	got, err := Decode(make([]byte, Capacity))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != (Record{}) {
		t.Fatalf("expected zero record, got %+v", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"bad flag", []byte{2, 0, 0, 0, 0, 0, 0, 0, 0}, ErrInvalidFlag},
		{"short name length", []byte{1, 0, 0}, ErrTruncated},
		{"name overruns", []byte{1, 9, 0, 0, 0, 'a'}, ErrTruncated},
		{"missing message", []byte{1, 1, 0, 0, 0, 'a'}, ErrTruncated},
		{"invalid utf8", []byte{1, 1, 0, 0, 0, 0xff, 0, 0, 0, 0}, ErrInvalidUTF8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v want %v", err, tc.want)
			}
		})
	}
}

func TestEncodedSizeBoundary(t *testing.T) {
	name := "Alice"
	msg := strings.Repeat("x", Capacity-EncodedSize(name, ""))
	if got := EncodedSize(name, msg); got != Capacity {
		t.Fatalf("EncodedSize = %d, want %d", got, Capacity)
	}
	if !(Record{Name: name, Message: msg}).Fits() {
		t.Fatalf("expected exact capacity to fit")
	}
	if (Record{Name: name, Message: msg + "x"}).Fits() {
		t.Fatalf("expected capacity+1 to be rejected")
	}
}
