package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/intro/cidutil"
	"xdao.co/intro/config"
	"xdao.co/intro/ledger/sqlite"
	"xdao.co/intro/snapshot"
	"xdao.co/intro/storage"
	"xdao.co/intro/storage/bundle"
	"xdao.co/intro/storage/localfs"
)

// SnapshotOptions select the ledger database and snapshot store. They act on
// files directly, so introd should not be running against the same database.
type SnapshotOptions struct {
	*RootOptions
	DB         string
	Dir        string
	ConfigPath string
	Bundle     string
}

func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the ledger account set",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "ledger sqlite database")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "snapshot directory (localfs CAS)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "introd config; supplies --db and the snapshot backends")
	cmd.PersistentFlags().StringVar(&opts.Bundle, "bundle", "", "tar archive to write on export or read on import")

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write all accounts to the snapshot store and print the CID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cas, done, err := opts.open()
			if err != nil {
				return err
			}
			defer done()

			id, n, err := snapshot.Export(cmd.Context(), store, cas)
			if err != nil {
				return err
			}
			if opts.Bundle != "" {
				if err := writeBundle(cmd, opts.Bundle, cas, id); err != nil {
					return err
				}
			}
			v := map[string]any{"cid": id.String(), "accounts": n}
			return opts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintln(w, id.String())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "import [cid]",
		Short: "Load a snapshot into the ledger database",
		Long:  "Load a snapshot into the ledger database. With --bundle the CID defaults to the archive's snapshot label.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cas, done, err := opts.open()
			if err != nil {
				return err
			}
			defer done()

			var id cid.Cid
			if opts.Bundle != "" {
				if id, err = readBundle(cmd, opts.Bundle, cas); err != nil {
					return err
				}
			}
			if len(args) == 1 {
				if id, err = cidutil.Parse(args[0]); err != nil {
					return err
				}
			}
			if !id.Defined() {
				return fmt.Errorf("a snapshot CID (or --bundle) is required")
			}

			n, err := snapshot.Import(cmd.Context(), cas, id, store)
			if err != nil {
				return err
			}
			v := map[string]any{"cid": id.String(), "accounts": n}
			return opts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d accounts\n", n)
			})
		},
	})
	return cmd
}

// open returns the ledger database and snapshot store; done releases both.
func (o *SnapshotOptions) open() (store *sqlite.Store, cas storage.CAS, done func(), err error) {
	db := o.DB
	closeCAS := func() error { return nil }
	if o.ConfigPath != "" {
		cfg, err := config.LoadFile(o.ConfigPath)
		if err != nil {
			return nil, nil, nil, err
		}
		if db == "" {
			db = cfg.Ledger.SQLitePath
		}
		if o.Dir == "" {
			if cas, closeCAS, err = cfg.Snapshot.Open(); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	defer func() {
		if err != nil {
			_ = closeCAS()
		}
	}()
	if o.Dir != "" {
		fs, err := localfs.New(o.Dir)
		if err != nil {
			return nil, nil, nil, err
		}
		cas = fs
	}
	if db == "" {
		return nil, nil, nil, fmt.Errorf("--db (or a config with ledger.sqlite_path) is required")
	}
	if cas == nil {
		if o.Bundle == "" {
			return nil, nil, nil, fmt.Errorf("--dir, --bundle or a config with snapshot backends is required")
		}
		cas = storage.NewMemCAS()
	}
	if store, err = sqlite.Open(db); err != nil {
		return nil, nil, nil, err
	}
	done = func() {
		_ = store.Close()
		_ = closeCAS()
	}
	return store, cas, done, nil
}

func writeBundle(cmd *cobra.Command, path string, cas storage.CAS, root cid.Cid) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	labels := map[string]cid.Cid{bundle.SnapshotLabel: root}
	if err := bundle.Export(cmd.Context(), f, cas, []cid.Cid{root}, labels); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readBundle(cmd *cobra.Command, path string, cas storage.CAS) (cid.Cid, error) {
	f, err := os.Open(path)
	if err != nil {
		return cid.Undef, err
	}
	defer f.Close()

	idx, err := bundle.Import(cmd.Context(), f, cas)
	if err != nil {
		return cid.Undef, err
	}
	id, err := idx.Label(bundle.SnapshotLabel)
	if err != nil {
		// A hand-built archive may carry a single unlabeled block.
		if len(idx.Blocks) != 1 {
			return cid.Undef, err
		}
		return cidutil.Parse(idx.Blocks[0].CID)
	}
	return id, nil
}
