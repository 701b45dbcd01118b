// klingwallet-cli is a command-line client for a klingwalletd daemon and its
// local keystore.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-walletd/config"
	"github.com/Klingon-tech/klingnet-walletd/internal/rpcclient"
)

// globalFlags holds flags shared by every command.
type globalFlags struct {
	RPC     string
	DataDir string
	Network string
	Timeout time.Duration
}

var global globalFlags

var rootCmd = &cobra.Command{
	Use:           "klingwallet-cli",
	Short:         "Command-line client for the Klingnet wallet daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch config.NetworkType(global.Network) {
		case config.Mainnet, config.Testnet:
		default:
			return fmt.Errorf("unknown network %q", global.Network)
		}
		if global.DataDir == "" {
			global.DataDir = config.DefaultDataDir()
		}
		if global.RPC == "" {
			cfg := config.Default(config.NetworkType(global.Network))
			global.RPC = "http://" + cfg.RPC.Addr + ":" + strconv.Itoa(cfg.RPC.Port)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&global.RPC, "rpc", "", "Daemon RPC endpoint (default: per network)")
	rootCmd.PersistentFlags().StringVar(&global.DataDir, "datadir", "", "Data directory (default: ~/.klingwallet)")
	rootCmd.PersistentFlags().StringVar(&global.Network, "network", string(config.Mainnet), "mainnet or testnet")
	rootCmd.PersistentFlags().DurationVar(&global.Timeout, "timeout", rpcclient.DefaultTimeout, "RPC timeout")
	rootCmd.Version = config.Version

	rootCmd.AddCommand(walletCmd, txCmd, queueCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// keystoreDir returns the keystore path matching klingwalletd's layout:
// <datadir>/<network>/keystore
func keystoreDir() string {
	return filepath.Join(global.DataDir, global.Network, "keystore")
}

func client() *rpcclient.Client {
	return rpcclient.NewWithTimeout(global.RPC, global.Timeout)
}

// call runs one daemon RPC with the global timeout.
func call(method string, params, result interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), global.Timeout)
	defer cancel()
	return client().Call(ctx, method, params, result)
}

// readPassword prompts on stderr and reads a line without echo.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readNewPassword prompts twice and checks both entries match.
func readNewPassword() ([]byte, error) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	if string(password) != string(confirm) {
		return nil, fmt.Errorf("passwords do not match")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	return password, nil
}
