package cli

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"xdao.co/intro/keys"
)

func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage local signing keys",
	}
	cmd.AddCommand(newKeyInitCommand(rootOpts))
	cmd.AddCommand(newKeyDeriveCommand(rootOpts))
	cmd.AddCommand(newKeyShowCommand(rootOpts))
	cmd.AddCommand(newKeyListCommand(rootOpts))
	return cmd
}

type keyView struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Path    string `json:"path,omitempty"`
}

func newKeyInitCommand(rootOpts *RootOptions) *cobra.Command {
	var seedHex string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the key named by --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			var seed []byte
			if seedHex != "" {
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return fmt.Errorf("invalid --seed-hex: %w", err)
				}
			} else {
				seed = make([]byte, keys.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return fmt.Errorf("rand: %w", err)
				}
			}
			addr, path, err := ks.Initialize(rootOpts.Key, seed, force)
			if err != nil {
				return fmt.Errorf("write key: %w", err)
			}
			v := keyView{Name: rootOpts.Key, Address: addr.String(), Path: path}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "Created key: %s\n", v.Address)
				fmt.Fprintf(w, "Stored at: %s\n", v.Path)
			})
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars (for reproducible demos)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func newKeyDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	var to, label string
	var force bool

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a new key from --key using a label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" || label == "" {
				return fmt.Errorf("--to and --label are required")
			}
			if err := keys.CheckName(label); err != nil {
				return fmt.Errorf("invalid --label: %w", err)
			}
			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			addr, path, err := ks.Derive(rootOpts.Key, to, label, force)
			if err != nil {
				return fmt.Errorf("derive key: %w", err)
			}
			v := keyView{Name: to, Address: addr.String(), Path: path}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "Created key: %s\n", v.Address)
				fmt.Fprintf(w, "Stored at: %s\n", v.Path)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "name of the derived key")
	cmd.Flags().StringVar(&label, "label", "", "derivation label")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func newKeyShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the address of --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := rootOpts.signer()
			if err != nil {
				return err
			}
			v := keyView{Name: rootOpts.Key, Address: kp.Address().String()}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintln(w, v.Address)
			})
		},
	}
}

func newKeyListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			entries, err := ks.List()
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}
			views := make([]keyView, 0, len(entries))
			for _, e := range entries {
				views = append(views, keyView{Name: e.Name, Address: e.Address.String()})
			}
			return rootOpts.emit(cmd.OutOrStdout(), views, func(w io.Writer) {
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%s\n", v.Name, v.Address)
				}
			})
		},
	}
}
