package rpc

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/intro/address"
)

var errMalformedAirdrop = errors.New("rpc: malformed airdrop request")

// AirdropRequest is carried as { 1: address bytes, 2: lamports uint64 }.
type AirdropRequest struct {
	Address  address.Address
	Lamports uint64
}

func (r AirdropRequest) Marshal() []byte {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Address[:])
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	return protowire.AppendVarint(b, r.Lamports)
}

func UnmarshalAirdropRequest(b []byte) (AirdropRequest, error) {
	var r AirdropRequest
	var sawAddr bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, errMalformedAirdrop
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return r, errMalformedAirdrop
			}
			a, err := address.FromBytes(v)
			if err != nil {
				return r, fmt.Errorf("%w: %v", errMalformedAirdrop, err)
			}
			r.Address, sawAddr = a, true
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errMalformedAirdrop
			}
			r.Lamports = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, errMalformedAirdrop
			}
			b = b[n:]
		}
	}
	if !sawAddr {
		return r, fmt.Errorf("%w: missing address", errMalformedAirdrop)
	}
	return r, nil
}
