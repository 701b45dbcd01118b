package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/rpc"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// txFlags describes the transaction given on the command line: a JSON
// document (--data or --file) or a single call (--to, --entrypoint).
type txFlags struct {
	Data       string
	File       string
	To         string
	Entrypoint string
	Calldata   []string
	Account    string
	MaxFee     string
	Tab        string
}

var txOpts txFlags

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Estimate, execute and dismiss transactions",
}

var txExecuteCmd = &cobra.Command{
	Use:   "execute",
	Short: "Queue a transaction for execution",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := txOpts.transaction()
		if err != nil {
			return err
		}
		out, err := postMessage(messaging.TypeExecuteTransaction, t)
		if err != nil {
			return err
		}
		var res messaging.ExecuteTransactionRes
		if err := out.Decode(&res); err != nil {
			return err
		}
		pterm.Success.Printfln("Transaction queued: %s", res.ActionHash)
		return nil
	},
}

var txEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the fee of a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := txOpts.transaction()
		if err != nil {
			return err
		}
		out, err := postMessage(messaging.TypeEstimateTransactionFee, t)
		if err != nil {
			return err
		}
		if out.Type == messaging.TypeEstimateTransactionFeeRej {
			var rej messaging.EstimateTransactionFeeRej
			if err := out.Decode(&rej); err != nil {
				return err
			}
			return errors.New(rej.Error)
		}
		var res messaging.EstimateTransactionFeeRes
		if err := out.Decode(&res); err != nil {
			return err
		}
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Amount", res.Amount},
			{"Suggested max fee", res.SuggestedMaxFee},
		}).Render()
	},
}

var txFailCmd = &cobra.Command{
	Use:   "fail <action-hash>",
	Short: "Dismiss a failed action so it leaves the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := types.HexToHash(args[0]); err != nil {
			return fmt.Errorf("invalid action hash: %w", err)
		}
		if _, err := postMessage(messaging.TypeTransactionFailed, messaging.TransactionFailed{ActionHash: args[0]}); err != nil {
			return err
		}
		pterm.Success.Printfln("Action removed: %s", args[0])
		return nil
	},
}

// transaction builds the transaction described by the flags.
func (f *txFlags) transaction() (*tx.Transaction, error) {
	var raw []byte
	switch {
	case f.Data != "" && f.File != "":
		return nil, errors.New("use either --data or --file")
	case f.Data != "":
		raw = []byte(f.Data)
	case f.File != "":
		b, err := os.ReadFile(f.File)
		if err != nil {
			return nil, fmt.Errorf("read transaction file: %w", err)
		}
		raw = b
	}

	var t *tx.Transaction
	if raw != nil {
		if f.To != "" || f.Entrypoint != "" {
			return nil, errors.New("--to/--entrypoint cannot be combined with --data or --file")
		}
		t = &tx.Transaction{}
		if err := json.Unmarshal(raw, t); err != nil {
			return nil, fmt.Errorf("parse transaction: %w", err)
		}
	} else {
		if f.To == "" || f.Entrypoint == "" {
			return nil, errors.New("--to and --entrypoint are required without --data or --file")
		}
		contract, err := types.ParseAddress(f.To)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		t = tx.NewBuilder().AddCall(contract, f.Entrypoint, f.Calldata...).Build()
	}

	if f.Account != "" {
		addr, err := types.ParseAddress(f.Account)
		if err != nil {
			return nil, fmt.Errorf("invalid --account: %w", err)
		}
		t.Account = &addr
	}
	if f.MaxFee != "" {
		if t.Details == nil {
			t.Details = &tx.Details{}
		}
		t.Details.MaxFee = f.MaxFee
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// postMessage sends one message through the daemon's router and returns the
// single reply, if any.
func postMessage(typ messaging.Type, data interface{}) (messaging.Message, error) {
	msg, err := messaging.NewMessage(typ, data)
	if err != nil {
		return messaging.Message{}, err
	}
	var res rpc.PostMessageResult
	if err := call("wallet_postMessage", rpc.PostMessageParam{TabID: txOpts.Tab, Message: msg}, &res); err != nil {
		return messaging.Message{}, err
	}
	if len(res.Messages) == 0 {
		return messaging.Message{}, nil
	}
	return res.Messages[0], nil
}

func init() {
	for _, c := range []*cobra.Command{txExecuteCmd, txEstimateCmd} {
		c.Flags().StringVar(&txOpts.Data, "data", "", "Transaction JSON")
		c.Flags().StringVar(&txOpts.File, "file", "", "File holding the transaction JSON")
		c.Flags().StringVar(&txOpts.To, "to", "", "Contract address of a single call")
		c.Flags().StringVar(&txOpts.Entrypoint, "entrypoint", "", "Entrypoint of a single call")
		c.Flags().StringSliceVar(&txOpts.Calldata, "calldata", nil, "Calldata of a single call (comma separated)")
		c.Flags().StringVar(&txOpts.Account, "account", "", "Sign with this account instead of the selected one")
	}
	txExecuteCmd.Flags().StringVar(&txOpts.MaxFee, "max-fee", "", "Pin the max fee (0x-hex)")
	txCmd.PersistentFlags().StringVar(&txOpts.Tab, "tab", "cli", "Tab id replies are delivered to")

	txCmd.AddCommand(txExecuteCmd, txEstimateCmd, txFailCmd)
}

// shortHash abbreviates a hex hash for tables.
func shortHash(h string) string {
	h = strings.TrimPrefix(h, "0x")
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "..."
}
