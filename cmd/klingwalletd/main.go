// Klingnet wallet daemon.
//
// Usage:
//
//	klingwalletd [--wallet=<name> --password-file=...] Run the wallet core
//	klingwalletd --help                                Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-walletd/config"
	"github.com/Klingon-tech/klingnet-walletd/internal/node"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var opts node.Options
	if cfg.Wallet.Name != "" && cfg.Wallet.PasswordFile == "" {
		opts.Password, err = readPassword(fmt.Sprintf("Password for wallet %q: ", cfg.Wallet.Name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read password: %v\n", err)
			os.Exit(1)
		}
	}

	n, err := node.New(cfg, opts)
	wipe(opts.Password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}

// readPassword prompts on stderr and reads a line without echo.
func readPassword(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return nil, fmt.Errorf("stdin is not a terminal; set wallet.password_file")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
