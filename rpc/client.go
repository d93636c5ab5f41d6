package rpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
)

// Client talks to an introd Ledger service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int

	// Extra is appended to the dial options, after the defaults.
	Extra []grpc.DialOption
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// TxError is returned by SendTransaction when the program rejected the
// transaction. It unwraps to the *processor.Error.
type TxError struct {
	Receipt ledger.Receipt
	Err     error
}

func (e *TxError) Error() string { return e.Err.Error() }
func (e *TxError) Unwrap() error { return e.Err }

// SendTransaction submits tx. Program failures are reported as *TxError.
func (c *Client) SendTransaction(ctx context.Context, tx *ledger.Transaction) (ledger.Receipt, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.SendTransaction(ctx, wrapperspb.Bytes(tx.Marshal()))
	if err != nil {
		receipt, mapped := mapRPC(err)
		if receipt != nil {
			return *receipt, &TxError{Receipt: *receipt, Err: mapped}
		}
		return ledger.Receipt{}, mapped
	}
	return ledger.UnmarshalReceipt(reply.GetValue())
}

func (c *Client) Account(ctx context.Context, addr address.Address) (ledger.Account, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetAccount(ctx, wrapperspb.String(addr.String()))
	if err != nil {
		_, mapped := mapRPC(err)
		return ledger.Account{}, mapped
	}
	return ledger.UnmarshalAccount(reply.GetValue())
}

// Airdrop requests lamports for addr and returns the new balance.
func (c *Client) Airdrop(ctx context.Context, addr address.Address, lamports uint64) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	req := AirdropRequest{Address: addr, Lamports: lamports}
	reply, err := c.client.RequestAirdrop(ctx, wrapperspb.Bytes(req.Marshal()))
	if err != nil {
		_, mapped := mapRPC(err)
		return 0, mapped
	}
	return reply.GetValue(), nil
}

func (c *Client) MinimumBalance(ctx context.Context, size int) (uint64, error) {
	if size < 0 {
		return 0, errors.New("rpc: negative size")
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.MinimumBalance(ctx, wrapperspb.UInt64(uint64(size)))
	if err != nil {
		_, mapped := mapRPC(err)
		return 0, mapped
	}
	return reply.GetValue(), nil
}

// Record derives the record address of (authority, name) and decodes its contents.
func (c *Client) Record(ctx context.Context, programID, authority address.Address, name string) (address.Address, record.Record, error) {
	at, _, err := processor.RecordAddress(programID, authority, name)
	if err != nil {
		return address.Address{}, record.Record{}, err
	}
	a, err := c.Account(ctx, at)
	if err != nil {
		return at, record.Record{}, err
	}
	r, err := record.Decode(a.Data)
	return at, r, err
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
