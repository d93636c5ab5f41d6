package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
	"xdao.co/intro/logs"
)

// RequestIDHeader carries the per-call request id in both directions.
const RequestIDHeader = "x-request-id"

// Server exposes a ledger.Bank over the Ledger gRPC service.
type Server struct {
	UnimplementedLedgerServer
	Bank *ledger.Bank
	// FaucetMax bounds a single airdrop. Zero disables airdrops.
	FaucetMax uint64
}

func (s *Server) SendTransaction(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Bank == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing bank")
	}
	tx, err := ledger.UnmarshalTransaction(in.GetValue())
	if err != nil {
		return nil, mapErr(err, nil)
	}
	receipt, err := s.Bank.Execute(ctx, tx)
	if err != nil {
		return nil, mapErr(err, &receipt)
	}
	return wrapperspb.Bytes(receipt.Marshal()), nil
}

func (s *Server) GetAccount(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Bank == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing bank")
	}
	addr, err := address.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a, err := s.Bank.Account(ctx, addr)
	if err != nil {
		return nil, mapErr(err, nil)
	}
	return wrapperspb.Bytes(a.Marshal()), nil
}

func (s *Server) RequestAirdrop(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Bank == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing bank")
	}
	req, err := UnmarshalAirdropRequest(in.GetValue())
	if err != nil {
		return nil, mapErr(err, nil)
	}
	if req.Lamports > s.FaucetMax {
		return nil, mapErr(fmt.Errorf("%w: %d > %d", ErrFaucetLimit, req.Lamports, s.FaucetMax), nil)
	}
	a, err := s.Bank.Airdrop(ctx, req.Address, req.Lamports)
	if err != nil {
		return nil, mapErr(err, nil)
	}
	return wrapperspb.UInt64(a.Lamports), nil
}

func (s *Server) MinimumBalance(_ context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Bank == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing bank")
	}
	if in.GetValue() > ledger.MaxAccountSize {
		return nil, status.Errorf(codes.InvalidArgument, "size %d exceeds %d", in.GetValue(), ledger.MaxAccountSize)
	}
	return wrapperspb.UInt64(s.Bank.Rent().MinimumBalance(int(in.GetValue()))), nil
}

// UnaryInterceptor tags each call with a request id, applies timeout when
// positive and logs the outcome.
func UnaryInterceptor(logger *slog.Logger, timeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 {
				id = v[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx = logs.WithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		if code != codes.OK && code != codes.Aborted && code != codes.NotFound {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "rpc", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start))
		return resp, err
	}
}

// NewGRPCServer builds a grpc.Server with the Ledger service and interceptor registered.
func NewGRPCServer(srv *Server, logger *slog.Logger, timeout time.Duration, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(UnaryInterceptor(logger, timeout)))
	g := grpc.NewServer(opts...)
	RegisterLedgerServer(g, srv)
	return g
}
