package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
)

// ErrFaucetLimit is returned when an airdrop asks for more than the faucet allows.
var ErrFaucetLimit = errors.New("rpc: airdrop exceeds faucet limit")

// mapErr converts host errors into gRPC statuses. Program failures are
// Aborted and carry the encoded receipt as a detail.
func mapErr(err error, receipt *ledger.Receipt) error {
	if err == nil {
		return nil
	}
	if processor.KindOf(err) != "" {
		st := status.New(codes.Aborted, err.Error())
		if receipt != nil {
			if withReceipt, derr := st.WithDetails(wrapperspb.Bytes(receipt.Marshal())); derr == nil {
				st = withReceipt
			}
		}
		return st.Err()
	}
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrSignatureVerification):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, ledger.ErrMalformedWire), errors.Is(err, errMalformedAirdrop):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrUnknownProgram):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrFaucetLimit):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC reverses mapErr. Aborted statuses become *processor.Error and, when
// the server attached one, the failed receipt.
func mapRPC(err error) (*ledger.Receipt, error) {
	if err == nil {
		return nil, nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return nil, err
	}

	switch st.Code() {
	case codes.Aborted:
		var receipt *ledger.Receipt
		for _, d := range st.Details() {
			if b, ok := d.(*wrapperspb.BytesValue); ok {
				if r, rerr := ledger.UnmarshalReceipt(b.GetValue()); rerr == nil {
					receipt = &r
				}
			}
		}
		if kind, msg, ok := processor.ParseKind(st.Message()); ok {
			return receipt, &processor.Error{Kind: kind, Message: msg}
		}
		return receipt, err
	case codes.NotFound:
		return nil, fmt.Errorf("%w (server: %s)", ledger.ErrAccountNotFound, st.Message())
	case codes.Unauthenticated:
		return nil, fmt.Errorf("%w (server: %s)", ledger.ErrSignatureVerification, st.Message())
	case codes.FailedPrecondition:
		return nil, fmt.Errorf("%w (server: %s)", ledger.ErrUnknownProgram, st.Message())
	case codes.AlreadyExists:
		return nil, fmt.Errorf("%w (server: %s)", ledger.ErrAlreadyProcessed, st.Message())
	case codes.ResourceExhausted:
		return nil, fmt.Errorf("%w (server: %s)", ErrFaucetLimit, st.Message())
	case codes.InvalidArgument:
		return nil, fmt.Errorf("%w (server: %s)", ledger.ErrMalformedWire, st.Message())
	default:
		return nil, err
	}
}
