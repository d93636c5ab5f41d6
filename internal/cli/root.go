// Package cli implements the intro command line client.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"xdao.co/intro/address"
	"xdao.co/intro/config"
	"xdao.co/intro/keys"
	"xdao.co/intro/rpc"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server    string
	ProgramID string
	KeysDir   string
	Key       string
	Timeout   time.Duration
	Format    string // "json" | "text"
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "intro",
		Short: "Client for the per-identity record ledger",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := config.Default()
	cmd.PersistentFlags().StringVar(&opts.Server, "server", defaults.Server.GRPCAddr, "introd gRPC address")
	cmd.PersistentFlags().StringVar(&opts.ProgramID, "program", config.DefaultProgramID, "record program address")
	cmd.PersistentFlags().StringVar(&opts.KeysDir, "keys-dir", "", "key store directory (default ~/.xdao/intro/keys)")
	cmd.PersistentFlags().StringVarP(&opts.Key, "key", "k", "default", "name of the signing key")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-RPC timeout")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewAirdropCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAddressCommand(opts))
	cmd.AddCommand(NewRentCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) keyStore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(o.KeysDir)
}

func (o *RootOptions) signer() (keys.Keypair, error) {
	ks, err := o.keyStore()
	if err != nil {
		return keys.Keypair{}, err
	}
	kp, err := ks.Load(o.Key)
	if err != nil {
		return keys.Keypair{}, fmt.Errorf("load key %q: %w", o.Key, err)
	}
	return kp, nil
}

func (o *RootOptions) program() (address.Address, error) {
	id, err := address.Parse(o.ProgramID)
	if err != nil {
		return address.Address{}, fmt.Errorf("invalid --program: %w", err)
	}
	return id, nil
}

// authority resolves an explicit base58 address, falling back to the signing key.
func (o *RootOptions) authority(explicit string) (address.Address, error) {
	if explicit != "" {
		return address.Parse(explicit)
	}
	kp, err := o.signer()
	if err != nil {
		return address.Address{}, err
	}
	return kp.Address(), nil
}

func (o *RootOptions) dial() (*rpc.Client, error) {
	c, err := rpc.Dial(o.Server, rpc.DialOptions{Timeout: o.Timeout})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.Server, err)
	}
	c.Timeout = o.Timeout
	return c, nil
}

// emit writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) emit(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		printReceiptLogs(errOut, err)
		return 1
	}
	return 0
}
