// Package config loads the introd daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/intro/address"
	"xdao.co/intro/ledger"
	"xdao.co/intro/storage/casconfig"
)

// DefaultProgramID is the address the record program is registered under
// unless configured otherwise.
const DefaultProgramID = "2R75r5qa1GtYemwPsBhL282DbwTcLkmC1rqt3nQzgZH8"

type LedgerSection struct {
	// ProgramID is the base58 address of the record program.
	ProgramID string `yaml:"program_id"`
	// SQLitePath is the account database. Empty keeps accounts in memory.
	SQLitePath string `yaml:"sqlite_path"`
	// MaxLogLines caps the program log kept per receipt.
	MaxLogLines int `yaml:"max_log_lines"`
}

type RentSection struct {
	LamportsPerByteYear uint64 `yaml:"lamports_per_byte_year"`
	ExemptionYears      uint64 `yaml:"exemption_years"`
	Overhead            uint64 `yaml:"overhead"`
}

type FaucetSection struct {
	// MaxLamports bounds a single RequestAirdrop. Zero disables the faucet.
	MaxLamports uint64 `yaml:"max_lamports"`
}

// Values for server.snapshots.
const (
	SnapshotsOff       = "off"
	SnapshotsReadOnly  = "read"
	SnapshotsReadWrite = "readwrite"
)

type ServerSection struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
	// RequestTimeout bounds each RPC. Go duration format.
	RequestTimeout string `yaml:"request_timeout"`
	// Snapshots controls whether peers may read (or also write) this
	// daemon's snapshot store over gRPC.
	Snapshots string `yaml:"snapshots"`
}

type LogSection struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the introd configuration file.
type Config struct {
	Version  int              `yaml:"version,omitempty"`
	Ledger   LedgerSection    `yaml:"ledger"`
	Rent     RentSection      `yaml:"rent"`
	Faucet   FaucetSection    `yaml:"faucet"`
	Server   ServerSection    `yaml:"server"`
	Log      LogSection       `yaml:"log"`
	Snapshot casconfig.Config `yaml:"snapshot"`
}

func Default() Config {
	r := ledger.DefaultRent()
	return Config{
		Version: 1,
		Ledger: LedgerSection{
			ProgramID:   DefaultProgramID,
			MaxLogLines: 100,
		},
		Rent: RentSection{
			LamportsPerByteYear: r.LamportsPerByteYear,
			ExemptionYears:      r.ExemptionYears,
			Overhead:            r.Overhead,
		},
		Faucet: FaucetSection{MaxLamports: 10_000_000_000},
		Server: ServerSection{
			GRPCAddr:       "127.0.0.1:7400",
			HTTPAddr:       "127.0.0.1:7401",
			RequestTimeout: "10s",
			Snapshots:      SnapshotsReadOnly,
		},
		Log: LogSection{Level: "info", Format: "text"},
		Snapshot: casconfig.Config{
			Backends: []casconfig.BackendConfig{{Name: "memory"}},
		},
	}
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Version != 0 && c.Version != 1 {
		return fmt.Errorf("unsupported config version %d", c.Version)
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if c.Rent.LamportsPerByteYear == 0 || c.Rent.ExemptionYears == 0 {
		return errors.New("rent.lamports_per_byte_year and rent.exemption_years must be positive")
	}
	if c.Ledger.MaxLogLines < 0 {
		return errors.New("ledger.max_log_lines must not be negative")
	}
	if c.Server.GRPCAddr == "" {
		return errors.New("server.grpc_addr must be set")
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	switch c.Server.Snapshots {
	case "", SnapshotsOff, SnapshotsReadOnly, SnapshotsReadWrite:
	default:
		return fmt.Errorf("server.snapshots must be off, read or readwrite, got %q", c.Server.Snapshots)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := c.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

func (c Config) ProgramID() (address.Address, error) {
	id, err := address.Parse(c.Ledger.ProgramID)
	if err != nil {
		return address.Address{}, fmt.Errorf("invalid ledger.program_id %q: %w", c.Ledger.ProgramID, err)
	}
	return id, nil
}

func (c Config) LedgerRent() ledger.Rent {
	return ledger.Rent{
		LamportsPerByteYear: c.Rent.LamportsPerByteYear,
		ExemptionYears:      c.Rent.ExemptionYears,
		Overhead:            c.Rent.Overhead,
	}
}

// RequestTimeout parses server.request_timeout. Empty means no timeout.
func (c Config) RequestTimeout() (time.Duration, error) {
	if c.Server.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.request_timeout %q: %w", c.Server.RequestTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("server.request_timeout must not be negative")
	}
	return d, nil
}
