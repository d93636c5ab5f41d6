// Package sqlite is a durable ledger.Store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps accounts and committed transaction IDs in SQLite.
// The database runs in WAL mode with one writer connection.
type Store struct {
	db *sql.DB
}

var _ ledger.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, addr address.Address) (ledger.Account, error) {
	var owner, data []byte
	var lamports int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, lamports, data FROM accounts WHERE address = ?`, addr.Bytes(),
	).Scan(&owner, &lamports, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, addr)
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("get account %s: %w", addr, err)
	}
	return scanAccount(addr.Bytes(), owner, lamports, data)
}

// Commit upserts all accounts in one SQL transaction.
func (s *Store) Commit(ctx context.Context, accounts []ledger.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAccounts(ctx, tx, accounts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CommitTx records txID and upserts accounts in one SQL transaction.
func (s *Store) CommitTx(ctx context.Context, txID string, accounts []ledger.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO processed (id) VALUES (?)`, txID)
	if err != nil {
		return fmt.Errorf("commit: record %s: %w", txID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit: record %s: %w", txID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ledger.ErrAlreadyProcessed, txID)
	}
	if err := upsertAccounts(ctx, tx, accounts); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Processed(ctx context.Context, txID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM processed WHERE id = ?`, txID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("processed %s: %w", txID, err)
	}
	return true, nil
}

func upsertAccounts(ctx context.Context, tx *sql.Tx, accounts []ledger.Account) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accounts (address, owner, lamports, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("commit: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		data := a.Data
		if data == nil {
			data = []byte{}
		}
		// Lamports are stored as the int64 bit pattern; SQLite integers are signed.
		if _, err := stmt.ExecContext(ctx, a.Address.Bytes(), a.Owner.Bytes(), int64(a.Lamports), data); err != nil {
			return fmt.Errorf("commit %s: %w", a.Address, err)
		}
	}
	return nil
}

// All returns every account in address order.
func (s *Store) All(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, owner, lamports, data FROM accounts ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var addr, owner, data []byte
		var lamports int64
		if err := rows.Scan(&addr, &owner, &lamports, &data); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		a, err := scanAccount(addr, owner, lamports, data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func scanAccount(addr, owner []byte, lamports int64, data []byte) (ledger.Account, error) {
	a, err := address.FromBytes(addr)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("stored address: %w", err)
	}
	o, err := address.FromBytes(owner)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("stored owner of %s: %w", a, err)
	}
	return ledger.Account{
		Address:  a,
		Owner:    o,
		Lamports: uint64(lamports),
		Data:     append([]byte{}, data...),
	}, nil
}
