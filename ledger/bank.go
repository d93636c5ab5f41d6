package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	slogmulti "github.com/samber/slog-multi"

	"xdao.co/intro/address"
	"xdao.co/intro/processor"
)

// Program is an on-ledger program entrypoint. processor.Entrypoint satisfies it.
type Program func(programID address.Address, accounts []processor.AccountInfo, data []byte, logger *slog.Logger) error

// Receipt is the outcome of an executed transaction.
type Receipt struct {
	ID   string
	Logs []string
	// Code is the program result code, 0 on success.
	Code  uint32
	Error string
}

// Bank executes transactions against a Store, one at a time.
type Bank struct {
	mu       sync.Mutex
	store    Store
	rent     Rent
	programs map[address.Address]Program
	logger   *slog.Logger
	maxLogs  int
}

// Option configures a Bank.
type Option func(*Bank)

// WithRent replaces DefaultRent for allocation minimums.
func WithRent(r Rent) Option { return func(b *Bank) { b.rent = r } }

// WithLogger sets the host logger. Program logs are mirrored to it.
func WithLogger(l *slog.Logger) Option { return func(b *Bank) { b.logger = l } }

// WithMaxLogLines caps the program log kept per receipt. Zero keeps everything.
func WithMaxLogLines(n int) Option { return func(b *Bank) { b.maxLogs = n } }

// WithProgram registers p under id.
func WithProgram(id address.Address, p Program) Option {
	return func(b *Bank) { b.programs[id] = p }
}

func NewBank(store Store, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		rent:     DefaultRent(),
		programs: map[address.Address]Program{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxLogs:  100,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bank) Rent() Rent { return b.rent }

// Account returns the committed state of addr.
func (b *Bank) Account(ctx context.Context, addr address.Address) (Account, error) {
	return b.store.Get(ctx, addr)
}

// Airdrop credits lamports to addr, creating a system-owned wallet if needed.
func (b *Bank) Airdrop(ctx context.Context, addr address.Address, lamports uint64) (Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.store.Get(ctx, addr)
	switch {
	case err == nil:
	case IsNotFound(err):
		a = Account{Address: addr, Owner: SystemProgramID}
	default:
		return Account{}, err
	}
	if a.Lamports+lamports < a.Lamports {
		return Account{}, fmt.Errorf("ledger: airdrop overflows balance of %s", addr)
	}
	a.Lamports += lamports
	if err := b.store.Commit(ctx, []Account{a}); err != nil {
		return Account{}, err
	}
	b.logger.InfoContext(ctx, "airdrop", "address", addr.String(), "lamports", lamports, "balance", a.Lamports)
	return a, nil
}

// Execute verifies and runs tx. On program failure the returned error is the
// program's error, the receipt carries its logs and code, and no account
// changes are committed.
func (b *Bank) Execute(ctx context.Context, tx *Transaction) (Receipt, error) {
	if err := tx.Verify(); err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{ID: tx.ID()}

	b.mu.Lock()
	defer b.mu.Unlock()

	seen, err := b.store.Processed(ctx, receipt.ID)
	if err != nil {
		return receipt, err
	}
	if seen {
		b.logger.WarnContext(ctx, "transaction replayed", "tx", receipt.ID)
		return receipt, fmt.Errorf("%w: %s", ErrAlreadyProcessed, receipt.ID)
	}

	msg := tx.Message
	program, ok := b.programs[msg.ProgramID]
	if !ok {
		return receipt, fmt.Errorf("%w: %s", ErrUnknownProgram, msg.ProgramID)
	}

	ws, err := loadWorkingSet(ctx, b.store, msg.Accounts)
	if err != nil {
		return receipt, err
	}

	payer, hasPayer := msg.FeePayer()
	infos := make([]processor.AccountInfo, len(msg.Accounts))
	for i, meta := range msg.Accounts {
		infos[i] = processor.AccountInfo{
			Storage: &handle{ws: ws, addr: meta.Address, program: msg.ProgramID},
			Signer:  meta.Signer,
		}
		if meta.Address == SystemProgramID {
			infos[i].Allocator = &systemAllocator{
				ws:          ws,
				rent:        b.rent,
				program:     msg.ProgramID,
				payer:       payer,
				payerSigned: hasPayer,
			}
		}
	}

	collector := newLogCollector(b.maxLogs)
	logger := slog.New(slogmulti.Fanout(collector, b.logger.Handler())).With("tx", receipt.ID)

	runErr := program(msg.ProgramID, infos, msg.Data, logger)
	receipt.Logs = collector.Lines()
	if runErr != nil {
		receipt.Code = processor.Code(runErr)
		receipt.Error = runErr.Error()
		b.logger.WarnContext(ctx, "transaction failed", "tx", receipt.ID, "code", receipt.Code, "err", runErr)
		return receipt, runErr
	}

	if err := b.store.CommitTx(ctx, receipt.ID, ws.changes()); err != nil {
		return receipt, fmt.Errorf("commit: %w", err)
	}
	b.logger.InfoContext(ctx, "transaction committed", "tx", receipt.ID, "accounts", len(ws.dirty))
	return receipt, nil
}
