package ledger_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/intro/address"
	"xdao.co/intro/instruction"
	"xdao.co/intro/keys"
	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
)

const startingBalance = 1_000_000_000

type env struct {
	ctx     context.Context
	store   *ledger.MemStore
	bank    *ledger.Bank
	program address.Address
	seq     atomic.Uint64
}

// nonce keeps helper transactions distinct when their instructions repeat.
func (e *env) nonce() []byte {
	return binary.LittleEndian.AppendUint64(nil, e.seq.Add(1))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	var program address.Address
	for i := range program {
		program[i] = byte(i + 1)
	}
	store := ledger.NewMemStore()
	return &env{
		ctx:     context.Background(),
		store:   store,
		bank:    ledger.NewBank(store, ledger.WithProgram(program, processor.Entrypoint)),
		program: program,
	}
}

func mustKeypair(t *testing.T, seedByte byte) keys.Keypair {
	t.Helper()
	kp, err := keys.FromSeed(bytes.Repeat([]byte{seedByte}, keys.SeedSize))
	require.NoError(t, err)
	return kp
}

func (e *env) fund(t *testing.T, kp keys.Keypair) {
	t.Helper()
	_, err := e.bank.Airdrop(e.ctx, kp.Address(), startingBalance)
	require.NoError(t, err)
}

func (e *env) recordAddress(t *testing.T, authority address.Address, name string) address.Address {
	t.Helper()
	a, _, err := processor.RecordAddress(e.program, authority, name)
	require.NoError(t, err)
	return a
}

func (e *env) addTx(t *testing.T, kp keys.Keypair, name, message string, signed bool) *ledger.Transaction {
	t.Helper()
	data, err := instruction.Encode(instruction.AddRecord{Name: name, Message: message})
	require.NoError(t, err)
	msg := ledger.Message{
		ProgramID: e.program,
		Accounts: []ledger.AccountMeta{
			{Address: kp.Address(), Signer: signed, Writable: true},
			{Address: e.recordAddress(t, kp.Address(), name), Writable: true},
			{Address: ledger.SystemProgramID},
		},
		Data:  data,
		Nonce: e.nonce(),
	}
	tx, err := ledger.NewTransaction(msg, kp)
	require.NoError(t, err)
	return tx
}

func (e *env) updateTx(t *testing.T, kp keys.Keypair, target address.Address, name, message string, signed bool) *ledger.Transaction {
	t.Helper()
	data, err := instruction.Encode(instruction.UpdateRecord{Name: name, Message: message})
	require.NoError(t, err)
	msg := ledger.Message{
		ProgramID: e.program,
		Accounts: []ledger.AccountMeta{
			{Address: kp.Address(), Signer: signed, Writable: true},
			{Address: target, Writable: true},
		},
		Data:  data,
		Nonce: e.nonce(),
	}
	tx, err := ledger.NewTransaction(msg, kp)
	require.NoError(t, err)
	return tx
}

func (e *env) readRecord(t *testing.T, at address.Address) (ledger.Account, record.Record) {
	t.Helper()
	acct, err := e.bank.Account(e.ctx, at)
	require.NoError(t, err)
	rec, err := record.Decode(acct.Data)
	require.NoError(t, err)
	return acct, rec
}

func TestBank_CreateThenRead(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	receipt, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Zero(t, receipt.Code)

	target := e.recordAddress(t, alice.Address(), "Alice")
	acct, rec := e.readRecord(t, target)
	assert.Equal(t, record.Record{Initialized: true, Name: "Alice", Message: "Hello"}, rec)
	assert.Equal(t, e.program, acct.Owner)
	assert.Len(t, acct.Data, record.Capacity)

	rentExempt := e.bank.Rent().MinimumBalance(record.Capacity)
	assert.Equal(t, rentExempt, acct.Lamports)
	payer, err := e.bank.Account(e.ctx, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(startingBalance)-rentExempt, payer.Lamports)
}

func TestBank_ReceiptCarriesProgramLog(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	receipt, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	joined := strings.Join(receipt.Logs, "\n")
	assert.Contains(t, joined, "Program log: adding record")
	assert.Contains(t, joined, "record storage created")
}

func TestBank_SizeRejectionLeavesNoStorage(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	big := strings.Repeat("x", record.Capacity)
	receipt, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", big, true))
	require.Error(t, err)
	assert.True(t, processor.IsKind(err, processor.KindInvalidDataLength), "got %v", err)
	assert.Equal(t, processor.Code(err), receipt.Code)

	_, err = e.bank.Account(e.ctx, e.recordAddress(t, alice.Address(), "Alice"))
	assert.True(t, ledger.IsNotFound(err))
	payer, err := e.bank.Account(e.ctx, alice.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(startingBalance), payer.Lamports)
}

func TestBank_UpdateBeforeCreate(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	target := e.recordAddress(t, alice.Address(), "Alice")
	_, err := e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "Alice", "Hello", true))
	assert.True(t, processor.IsKind(err, processor.KindUninitializedAccount), "got %v", err)
}

func TestBank_UpdateAndIdempotence(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)
	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	target := e.recordAddress(t, alice.Address(), "Alice")

	_, err = e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "Alice", "Updated", true))
	require.NoError(t, err)
	first, rec := e.readRecord(t, target)
	assert.Equal(t, "Updated", rec.Message)

	_, err = e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "Alice", "Updated", true))
	require.NoError(t, err)
	second, _ := e.readRecord(t, target)
	assert.Equal(t, first.Data, second.Data)
}

func TestBank_ReplayRejected(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)
	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "v1", true))
	require.NoError(t, err)
	target := e.recordAddress(t, alice.Address(), "Alice")

	v2 := e.updateTx(t, alice, target, "Alice", "v2", true)
	_, err = e.bank.Execute(e.ctx, v2)
	require.NoError(t, err)
	_, err = e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "Alice", "v3", true))
	require.NoError(t, err)
	before, _ := e.readRecord(t, target)

	replayed, err := ledger.UnmarshalTransaction(v2.Marshal())
	require.NoError(t, err)
	receipt, err := e.bank.Execute(e.ctx, replayed)
	assert.ErrorIs(t, err, ledger.ErrAlreadyProcessed)
	assert.Equal(t, v2.ID(), receipt.ID)

	after, rec := e.readRecord(t, target)
	assert.Equal(t, "v3", rec.Message)
	assert.Equal(t, before, after)
}

func TestBank_FailedTransactionNotMarkedProcessed(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)
	target := e.recordAddress(t, alice.Address(), "Alice")

	tx := e.updateTx(t, alice, target, "Alice", "early", true)
	_, err := e.bank.Execute(e.ctx, tx)
	assert.True(t, processor.IsKind(err, processor.KindUninitializedAccount), "got %v", err)
	seen, err := e.store.Processed(e.ctx, tx.ID())
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestBank_AuthorityMismatchLeavesBytes(t *testing.T) {
	e := newEnv(t)
	alice, mallory := mustKeypair(t, 1), mustKeypair(t, 2)
	e.fund(t, alice)
	e.fund(t, mallory)
	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	target := e.recordAddress(t, alice.Address(), "Alice")
	before, _ := e.readRecord(t, target)

	_, err = e.bank.Execute(e.ctx, e.updateTx(t, mallory, target, "Alice", "Pwned", true))
	assert.True(t, processor.IsKind(err, processor.KindInvalidPDA), "got %v", err)
	after, _ := e.readRecord(t, target)
	assert.Equal(t, before.Data, after.Data)
}

func TestBank_MissingSignature(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", false))
	assert.True(t, processor.IsKind(err, processor.KindMissingSignature), "got %v", err)
	_, err = e.bank.Account(e.ctx, e.recordAddress(t, alice.Address(), "Alice"))
	assert.True(t, ledger.IsNotFound(err))

	_, err = e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	target := e.recordAddress(t, alice.Address(), "Alice")
	before, _ := e.readRecord(t, target)

	_, err = e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "Alice", "Unsigned", false))
	assert.True(t, processor.IsKind(err, processor.KindMissingSignature), "got %v", err)
	after, _ := e.readRecord(t, target)
	assert.Equal(t, before.Data, after.Data)
}

func TestBank_DuplicateCreateFailsAllocation(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	require.NoError(t, err)
	_, err = e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Again", true))
	assert.True(t, processor.IsKind(err, processor.KindAllocationFailure), "got %v", err)
	assert.ErrorIs(t, err, ledger.ErrAccountInUse)

	_, rec := e.readRecord(t, e.recordAddress(t, alice.Address(), "Alice"))
	assert.Equal(t, "Hello", rec.Message)
}

func TestBank_InsufficientFunds(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	_, err := e.bank.Airdrop(e.ctx, alice.Address(), 10)
	require.NoError(t, err)

	_, err = e.bank.Execute(e.ctx, e.addTx(t, alice, "Alice", "Hello", true))
	assert.True(t, processor.IsKind(err, processor.KindAllocationFailure), "got %v", err)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestBank_StaleNameOverflowRollsBack(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)
	_, err := e.bank.Execute(e.ctx, e.addTx(t, alice, "a", "short", true))
	require.NoError(t, err)
	target := e.recordAddress(t, alice.Address(), "a")
	before, _ := e.readRecord(t, target)

	msg := strings.Repeat("m", record.Capacity-record.EncodedSize("a", ""))
	_, err = e.bank.Execute(e.ctx, e.updateTx(t, alice, target, "abcdefghij", msg, true))
	assert.True(t, processor.IsKind(err, processor.KindAccountDataTooSmall), "got %v", err)
	after, _ := e.readRecord(t, target)
	assert.Equal(t, before.Data, after.Data)
}

func TestBank_RejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	tx := e.addTx(t, alice, "Alice", "Hello", true)
	tx.Signatures[0][0] ^= 0xff
	_, err := e.bank.Execute(e.ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrSignatureVerification)

	tx = e.addTx(t, alice, "Alice", "Hello", true)
	tx.Signatures = nil
	_, err = e.bank.Execute(e.ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrSignatureVerification)
}

func TestBank_UnknownProgram(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	tx, err := ledger.NewTransaction(ledger.Message{
		ProgramID: alice.Address(),
		Accounts:  []ledger.AccountMeta{{Address: alice.Address(), Signer: true, Writable: true}},
	}, alice)
	require.NoError(t, err)
	_, err = e.bank.Execute(e.ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrUnknownProgram)
}

func TestBank_MissingSignerKeypair(t *testing.T) {
	alice, bob := mustKeypair(t, 1), mustKeypair(t, 2)
	_, err := ledger.NewTransaction(ledger.Message{
		Accounts: []ledger.AccountMeta{{Address: alice.Address(), Signer: true}},
	}, bob)
	assert.ErrorIs(t, err, ledger.ErrMissingSigner)
}

func TestBank_ConcurrentCreatesOfSameRecord(t *testing.T) {
	e := newEnv(t)
	alice := mustKeypair(t, 1)
	e.fund(t, alice)

	const n = 8
	txs := make([]*ledger.Transaction, n)
	for i := range txs {
		txs[i] = e.addTx(t, alice, "Alice", strings.Repeat("v", i+1), true)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range txs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.bank.Execute(e.ctx, txs[i])
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, processor.IsKind(err, processor.KindAllocationFailure), "got %v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestBank_ConcurrentCreatesOfDistinctRecords(t *testing.T) {
	e := newEnv(t)
	const n = 8
	kps := make([]keys.Keypair, n)
	for i := range kps {
		kps[i] = mustKeypair(t, byte(10+i))
		e.fund(t, kps[i])
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range kps {
		tx := e.addTx(t, kps[i], "intro", "hi", true)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.bank.Execute(e.ctx, tx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err)
		_, rec := e.readRecord(t, e.recordAddress(t, kps[i].Address(), "intro"))
		assert.Equal(t, "hi", rec.Message)
	}
}
