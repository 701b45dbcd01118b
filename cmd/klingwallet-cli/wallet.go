package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-walletd/internal/rpc"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
)

var (
	walletName     string
	walletMnemonic string
	accountLabel   string
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage keystore wallets and accounts",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a wallet from a fresh mnemonic",
	RunE: func(cmd *cobra.Command, args []string) error {
		mnemonic, err := wallet.GenerateMnemonic()
		if err != nil {
			return fmt.Errorf("generate mnemonic: %w", err)
		}
		pterm.DefaultBox.WithTitle("Mnemonic (write this down!)").Println(mnemonic)

		return createWallet(walletName, mnemonic)
	},
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a wallet from a mnemonic",
	RunE: func(cmd *cobra.Command, args []string) error {
		mnemonic := walletMnemonic
		if mnemonic == "" {
			fmt.Fprint(os.Stderr, "Mnemonic: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("read mnemonic: %w", err)
			}
			mnemonic = line
		}
		mnemonic = strings.Join(strings.Fields(mnemonic), " ")
		if !wallet.ValidateMnemonic(mnemonic) {
			return wallet.ErrInvalidMnemonic
		}
		return createWallet(walletName, mnemonic)
	},
}

func createWallet(name, mnemonic string) error {
	ks, err := wallet.NewKeystore(keystoreDir())
	if err != nil {
		return err
	}
	if ks.Exists(name) {
		return fmt.Errorf("%w: %s", wallet.ErrWalletExists, name)
	}
	password, err := readNewPassword()
	if err != nil {
		return err
	}
	entry, err := wallet.Create(ks, name, mnemonic, password, wallet.DefaultParams())
	if err != nil {
		return err
	}

	pterm.Success.Printfln("Wallet created: %s", name)
	pterm.Info.Printfln("Account %d (%s): %s", entry.Index, entry.Name, entry.Address)
	pterm.Info.Printfln("Start the daemon with --wallet=%s to use it", name)
	return nil
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore wallets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ks, err := wallet.NewKeystore(keystoreDir())
		if err != nil {
			return err
		}
		names, err := ks.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			pterm.Info.Println("No wallets found in " + keystoreDir())
			return nil
		}

		data := pterm.TableData{{"Wallet", "Accounts", "Selected"}}
		for _, name := range names {
			accounts, err := ks.ListAccounts(name)
			if err != nil {
				return err
			}
			selected, _ := ks.Selected(name)
			data = append(data, []string{name, strconv.Itoa(len(accounts)), selected})
		}
		return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
	},
}

var walletAccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts (from the daemon, or the keystore with --name)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if walletName != "" {
			return listKeystoreAccounts(walletName)
		}

		var res rpc.AccountsResult
		if err := call("wallet_listAccounts", nil, &res); err != nil {
			return err
		}
		var selected wallet.AccountInfo
		_ = call("wallet_getSelectedAccount", nil, &selected)

		data := pterm.TableData{{"", "Index", "Name", "Address", "Deployed"}}
		for _, a := range res.Accounts {
			mark := ""
			if a.Address == selected.Address {
				mark = "*"
			}
			data = append(data, []string{
				mark,
				strconv.FormatUint(uint64(a.Index), 10),
				a.Name,
				a.Address.String(),
				strconv.FormatBool(!a.NeedsDeploy),
			})
		}
		return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
	},
}

func listKeystoreAccounts(name string) error {
	ks, err := wallet.NewKeystore(keystoreDir())
	if err != nil {
		return err
	}
	accounts, err := ks.ListAccounts(name)
	if err != nil {
		return err
	}
	selected, _ := ks.Selected(name)

	data := pterm.TableData{{"", "Index", "Name", "Address"}}
	for _, a := range accounts {
		mark := ""
		if a.Address == selected {
			mark = "*"
		}
		data = append(data, []string{mark, strconv.FormatUint(uint64(a.Index), 10), a.Name, a.Address})
	}
	return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
}

var walletNewAccountCmd = &cobra.Command{
	Use:   "new-account",
	Short: "Derive the next account in the daemon's wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		var info wallet.AccountInfo
		if err := call("wallet_newAccount", rpc.NewAccountParam{Name: accountLabel}, &info); err != nil {
			return err
		}
		pterm.Success.Printfln("Account %d (%s): %s", info.Index, info.Name, info.Address)
		return nil
	},
}

var walletSelectCmd = &cobra.Command{
	Use:   "select <address>",
	Short: "Select the account used for estimates and execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var info wallet.AccountInfo
		if err := call("wallet_selectAccount", rpc.AddressParam{Address: args[0]}, &info); err != nil {
			return err
		}
		pterm.Success.Printfln("Selected %s (%s)", info.Address, info.Name)
		return nil
	},
}

var walletDeployCmd = &cobra.Command{
	Use:   "deploy [address]",
	Short: "Queue deployment of an account contract (default: selected account)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params rpc.AddressParam
		if len(args) == 1 {
			params.Address = args[0]
		}
		var res rpc.DeployResult
		if err := call("wallet_deployAccount", params, &res); err != nil {
			return err
		}
		pterm.Success.Printfln("Deployment queued: %s (%s)", res.ActionHash, res.State)
		return nil
	},
}

func init() {
	walletCreateCmd.Flags().StringVar(&walletName, "name", "", "Wallet name")
	walletCreateCmd.MarkFlagRequired("name")
	walletImportCmd.Flags().StringVar(&walletName, "name", "", "Wallet name")
	walletImportCmd.Flags().StringVar(&walletMnemonic, "mnemonic", "", "Mnemonic phrase (prompted when empty)")
	walletImportCmd.MarkFlagRequired("name")
	walletAccountsCmd.Flags().StringVar(&walletName, "name", "", "Read accounts of this keystore wallet instead of the daemon")
	walletNewAccountCmd.Flags().StringVar(&accountLabel, "label", "", "Account name")

	walletCmd.AddCommand(walletCreateCmd, walletImportCmd, walletListCmd, walletAccountsCmd,
		walletNewAccountCmd, walletSelectCmd, walletDeployCmd)
}
