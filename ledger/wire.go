package ledger

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/intro/address"
)

// Wire encodings use the protobuf binary format without generated code.
// Field numbers are part of the protocol and must not be reused.
//
//	AccountMeta { 1: address bytes, 2: signer bool, 3: writable bool }
//	Message     { 1: program_id bytes, 2: repeated AccountMeta, 3: data bytes, 4: nonce bytes }
//	Transaction { 1: Message, 2: repeated signature bytes }
//	Account     { 1: address bytes, 2: owner bytes, 3: lamports uint64, 4: data bytes }
//	Receipt     { 1: id string, 2: repeated log string, 3: code uint32, 4: error string }

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

// fieldFunc consumes the value of one field and returns its length, or -1 to
// have the field skipped.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func decodeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedWire, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformedWire, num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: field %d has wire type %d", ErrMalformedWire, num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedWire, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: field %d has wire type %d", ErrMalformedWire, num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedWire, num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeAddress(num protowire.Number, typ protowire.Type, b []byte) (address.Address, int, error) {
	v, n, err := consumeBytes(num, typ, b)
	if err != nil {
		return address.Zero, 0, err
	}
	a, err := address.FromBytes(v)
	if err != nil {
		return address.Zero, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedWire, num, err)
	}
	return a, n, nil
}

func (m AccountMeta) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.Address[:])
	b = appendBoolField(b, 2, m.Signer)
	b = appendBoolField(b, 3, m.Writable)
	return b
}

func unmarshalAccountMeta(b []byte) (AccountMeta, error) {
	var m AccountMeta
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			a, n, err := consumeAddress(num, typ, b)
			m.Address = a
			return n, err
		case 2:
			v, n, err := consumeVarint(num, typ, b)
			m.Signer = v != 0
			return n, err
		case 3:
			v, n, err := consumeVarint(num, typ, b)
			m.Writable = v != 0
			return n, err
		}
		return -1, nil
	})
	return m, err
}

// Marshal returns the canonical bytes signers sign.
func (m Message) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.ProgramID[:])
	for _, meta := range m.Accounts {
		b = appendBytesField(b, 2, meta.marshal())
	}
	if len(m.Data) > 0 {
		b = appendBytesField(b, 3, m.Data)
	}
	if len(m.Nonce) > 0 {
		b = appendBytesField(b, 4, m.Nonce)
	}
	return b
}

func UnmarshalMessage(b []byte) (Message, error) {
	var m Message
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			a, n, err := consumeAddress(num, typ, b)
			m.ProgramID = a
			return n, err
		case 2:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			meta, err := unmarshalAccountMeta(v)
			if err != nil {
				return 0, err
			}
			m.Accounts = append(m.Accounts, meta)
			return n, nil
		case 3:
			v, n, err := consumeBytes(num, typ, b)
			m.Data = append([]byte(nil), v...)
			return n, err
		case 4:
			v, n, err := consumeBytes(num, typ, b)
			m.Nonce = append([]byte(nil), v...)
			return n, err
		}
		return -1, nil
	})
	return m, err
}

func (tx *Transaction) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, tx.Message.Marshal())
	for _, sig := range tx.Signatures {
		b = appendBytesField(b, 2, sig)
	}
	return b
}

func UnmarshalTransaction(b []byte) (*Transaction, error) {
	tx := &Transaction{}
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return 0, err
			}
			msg, err := UnmarshalMessage(v)
			if err != nil {
				return 0, err
			}
			tx.Message = msg
			return n, nil
		case 2:
			v, n, err := consumeBytes(num, typ, b)
			tx.Signatures = append(tx.Signatures, append([]byte(nil), v...))
			return n, err
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (a Account) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, a.Address[:])
	b = appendBytesField(b, 2, a.Owner[:])
	if a.Lamports != 0 {
		b = appendVarintField(b, 3, a.Lamports)
	}
	if len(a.Data) > 0 {
		b = appendBytesField(b, 4, a.Data)
	}
	return b
}

func UnmarshalAccount(b []byte) (Account, error) {
	var a Account
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeAddress(num, typ, b)
			a.Address = v
			return n, err
		case 2:
			v, n, err := consumeAddress(num, typ, b)
			a.Owner = v
			return n, err
		case 3:
			v, n, err := consumeVarint(num, typ, b)
			a.Lamports = v
			return n, err
		case 4:
			v, n, err := consumeBytes(num, typ, b)
			a.Data = append([]byte(nil), v...)
			return n, err
		}
		return -1, nil
	})
	return a, err
}

func (r Receipt) Marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, r.ID)
	for _, line := range r.Logs {
		b = appendStringField(b, 2, line)
	}
	if r.Code != 0 {
		b = appendVarintField(b, 3, uint64(r.Code))
	}
	if r.Error != "" {
		b = appendStringField(b, 4, r.Error)
	}
	return b
}

func UnmarshalReceipt(b []byte) (Receipt, error) {
	var r Receipt
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(num, typ, b)
			r.ID = string(v)
			return n, err
		case 2:
			v, n, err := consumeBytes(num, typ, b)
			r.Logs = append(r.Logs, string(v))
			return n, err
		case 3:
			v, n, err := consumeVarint(num, typ, b)
			r.Code = uint32(v)
			return n, err
		case 4:
			v, n, err := consumeBytes(num, typ, b)
			r.Error = string(v)
			return n, err
		}
		return -1, nil
	})
	return r, err
}
