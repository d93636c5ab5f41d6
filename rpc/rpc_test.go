package rpc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/intro/address"
	"xdao.co/intro/keys"
	"xdao.co/intro/ledger"
	"xdao.co/intro/logs"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
	"xdao.co/intro/recordtx"
)

var testProgram = address.Address{0xaa, 0xbb}

func startServer(t *testing.T) (*Client, *ledger.Bank) {
	t.Helper()
	bank := ledger.NewBank(ledger.NewMemStore(), ledger.WithProgram(testProgram, processor.Entrypoint))

	lis := bufconn.Listen(1024 * 1024)
	srv := NewGRPCServer(&Server{Bank: bank, FaucetMax: 5_000_000_000}, logs.Discard(), 5*time.Second)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.DialContext(
		context.Background(),
		"bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: 2 * time.Second}, bank
}

func wallet(t *testing.T, b byte) keys.Keypair {
	t.Helper()
	kp, err := keys.FromSeed(bytes.Repeat([]byte{b}, keys.SeedSize))
	require.NoError(t, err)
	return kp
}

func TestRPC_AddThenRead(t *testing.T) {
	ctx := context.Background()
	client, bank := startServer(t)
	alice := wallet(t, 1)

	bal, err := client.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), bal)

	tx, err := recordtx.Add(testProgram, alice, "Alice", "Hello")
	require.NoError(t, err)
	receipt, err := client.SendTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.ID(), receipt.ID)
	assert.NotEmpty(t, receipt.Logs)

	at, rec, err := client.Record(ctx, testProgram, alice.Address(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, record.Record{Initialized: true, Name: "Alice", Message: "Hello"}, rec)

	acct, err := client.Account(ctx, at)
	require.NoError(t, err)
	want, err := bank.Account(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, want, acct)
}

func TestRPC_ProgramErrorCarriesKindAndReceipt(t *testing.T) {
	ctx := context.Background()
	client, _ := startServer(t)
	alice, mallory := wallet(t, 1), wallet(t, 2)
	_, err := client.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)

	add, err := recordtx.Add(testProgram, alice, "Alice", "Hello")
	require.NoError(t, err)
	_, err = client.SendTransaction(ctx, add)
	require.NoError(t, err)

	target := add.Message.Accounts[1].Address
	hijack, err := recordtx.UpdateAt(testProgram, mallory, target, "Alice", "Pwned")
	require.NoError(t, err)
	receipt, err := client.SendTransaction(ctx, hijack)
	require.Error(t, err)
	assert.True(t, processor.IsKind(err, processor.KindInvalidPDA), "got %v", err)

	var txErr *TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, hijack.ID(), receipt.ID)
	assert.Equal(t, processor.Code(err), receipt.Code)
	assert.NotEmpty(t, txErr.Receipt.Logs)

	_, rec, err := client.Record(ctx, testProgram, alice.Address(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Hello", rec.Message)
}

func TestRPC_HostErrors(t *testing.T) {
	ctx := context.Background()
	client, _ := startServer(t)
	alice := wallet(t, 1)

	_, err := client.Account(ctx, alice.Address())
	assert.True(t, ledger.IsNotFound(err), "got %v", err)

	_, err = client.Airdrop(ctx, alice.Address(), 6_000_000_000)
	assert.ErrorIs(t, err, ErrFaucetLimit)

	tx, err := recordtx.Add(testProgram, alice, "Alice", "Hello")
	require.NoError(t, err)
	tx.Signatures[0][3] ^= 1
	_, err = client.SendTransaction(ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrSignatureVerification)

	other, err := recordtx.Add(address.Address{1}, alice, "Alice", "Hello")
	require.NoError(t, err)
	_, err = client.SendTransaction(ctx, other)
	assert.ErrorIs(t, err, ledger.ErrUnknownProgram)

	_, err = client.client.SendTransaction(ctx, wrapperspb.Bytes([]byte{0x0a, 0xff}))
	_, mapped := mapRPC(err)
	assert.ErrorIs(t, mapped, ledger.ErrMalformedWire)
}

func TestRPC_ReplayRejected(t *testing.T) {
	ctx := context.Background()
	client, _ := startServer(t)
	alice := wallet(t, 1)
	_, err := client.Airdrop(ctx, alice.Address(), 1_000_000_000)
	require.NoError(t, err)

	add, err := recordtx.Add(testProgram, alice, "Alice", "v1")
	require.NoError(t, err)
	_, err = client.SendTransaction(ctx, add)
	require.NoError(t, err)
	v2, err := recordtx.Update(testProgram, alice, "Alice", "v2")
	require.NoError(t, err)
	_, err = client.SendTransaction(ctx, v2)
	require.NoError(t, err)
	v3, err := recordtx.Update(testProgram, alice, "Alice", "v3")
	require.NoError(t, err)
	_, err = client.SendTransaction(ctx, v3)
	require.NoError(t, err)

	_, err = client.SendTransaction(ctx, v2)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)

	_, rec, err := client.Record(ctx, testProgram, alice.Address(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "v3", rec.Message)
}

func TestRPC_MinimumBalance(t *testing.T) {
	client, bank := startServer(t)
	got, err := client.MinimumBalance(context.Background(), record.Capacity)
	require.NoError(t, err)
	assert.Equal(t, bank.Rent().MinimumBalance(record.Capacity), got)
	assert.Equal(t, uint64(7_850_880), got)
}

func TestRPC_RequestIDHeader(t *testing.T) {
	client, _ := startServer(t)

	var header metadata.MD
	_, err := client.client.MinimumBalance(context.Background(), wrapperspb.UInt64(0), grpc.Header(&header))
	require.NoError(t, err)
	assert.Len(t, header.Get(RequestIDHeader), 1)

	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "caller-chosen")
	_, err = client.client.MinimumBalance(ctx, wrapperspb.UInt64(0), grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"caller-chosen"}, header.Get(RequestIDHeader))
}

func TestAirdropRequestWire(t *testing.T) {
	in := AirdropRequest{Address: address.Address{9}, Lamports: 42}
	out, err := UnmarshalAirdropRequest(in.Marshal())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = UnmarshalAirdropRequest(nil)
	assert.ErrorIs(t, err, errMalformedAirdrop)
}
