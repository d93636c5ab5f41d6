package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"xdao.co/intro/address"
	"xdao.co/intro/keys"
	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
	"xdao.co/intro/record"
	"xdao.co/intro/recordtx"
	"xdao.co/intro/rpc"
)

type receiptView struct {
	ID      string   `json:"id"`
	Address string   `json:"address,omitempty"`
	Logs    []string `json:"logs"`
}

type recordView struct {
	Address     string `json:"address"`
	Initialized bool   `json:"initialized"`
	Name        string `json:"name"`
	Message     string `json:"message"`
}

func printReceiptLogs(w io.Writer, err error) {
	var txErr *rpc.TxError
	if !errors.As(err, &txErr) {
		return
	}
	for _, line := range txErr.Receipt.Logs {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "airdrop <lamports>",
		Short: "Request lamports from the faucet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lamports, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid lamports %q: %w", args[0], err)
			}
			addr, err := rootOpts.authority(to)
			if err != nil {
				return err
			}
			c, err := rootOpts.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			balance, err := c.Airdrop(cmd.Context(), addr, lamports)
			if err != nil {
				return err
			}
			v := map[string]any{"address": addr.String(), "balance": balance}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "%s balance: %d\n", addr, balance)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address (default: --key)")
	return cmd
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <message>",
		Short: "Create a record under the signing key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendRecordTx(cmd, rootOpts, args[0], args[1], recordtx.Add)
		},
	}
}

func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <name> <message>",
		Short: "Replace the message of a record owned by the signing key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendRecordTx(cmd, rootOpts, args[0], args[1], recordtx.Update)
		},
	}
}

func sendRecordTx(cmd *cobra.Command, rootOpts *RootOptions, name, message string, build func(programID address.Address, kp keys.Keypair, name, message string) (*ledger.Transaction, error)) error {
	if size := record.EncodedSize(name, message); size > record.Capacity {
		return fmt.Errorf("record is %d bytes, capacity is %d", size, record.Capacity)
	}
	programID, err := rootOpts.program()
	if err != nil {
		return err
	}
	kp, err := rootOpts.signer()
	if err != nil {
		return err
	}
	tx, err := build(programID, kp, name, message)
	if err != nil {
		return err
	}
	c, err := rootOpts.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	receipt, err := c.SendTransaction(cmd.Context(), tx)
	if err != nil {
		return err
	}
	v := receiptView{ID: receipt.ID, Address: tx.Message.Accounts[1].Address.String(), Logs: receipt.Logs}
	return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
		fmt.Fprintf(w, "Transaction: %s\n", v.ID)
		fmt.Fprintf(w, "Record: %s\n", v.Address)
		for _, line := range v.Logs {
			fmt.Fprintf(w, "  %s\n", line)
		}
	})
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			programID, err := rootOpts.program()
			if err != nil {
				return err
			}
			auth, err := rootOpts.authority(authority)
			if err != nil {
				return err
			}
			c, err := rootOpts.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			at, rec, err := c.Record(cmd.Context(), programID, auth, args[0])
			if ledger.IsNotFound(err) {
				return fmt.Errorf("no record %q for %s", args[0], auth)
			}
			if err != nil {
				return err
			}
			v := recordView{Address: at.String(), Initialized: rec.Initialized, Name: rec.Name, Message: rec.Message}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s\n", v.Name, v.Message)
				fmt.Fprintf(w, "address: %s\n", v.Address)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "record authority address (default: --key)")
	return cmd
}

func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	var authority string
	cmd := &cobra.Command{
		Use:   "address <name>",
		Short: "Derive the record address without contacting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			programID, err := rootOpts.program()
			if err != nil {
				return err
			}
			auth, err := rootOpts.authority(authority)
			if err != nil {
				return err
			}
			at, bump, err := processor.RecordAddress(programID, auth, args[0])
			if err != nil {
				return err
			}
			v := map[string]any{"address": at.String(), "bump": bump}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "%s (bump %d)\n", at, bump)
			})
		},
	}
	cmd.Flags().StringVar(&authority, "authority", "", "record authority address (default: --key)")
	return cmd
}

func NewRentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rent [size]",
		Short: "Print the rent-exempt balance for an account size (default: one record)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size := record.Capacity
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid size %q: %w", args[0], err)
				}
				size = n
			}
			c, err := rootOpts.dial()
			if err != nil {
				return err
			}
			defer c.Close()

			lamports, err := c.MinimumBalance(cmd.Context(), size)
			if err != nil {
				return err
			}
			v := map[string]any{"size": size, "lamports": lamports}
			return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
				fmt.Fprintf(w, "%d\n", lamports)
			})
		},
	}
}
