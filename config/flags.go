package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Version is the daemon version string.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string
	NoWS       bool
	NoMetrics  bool

	// Chain node
	ChainRPC string

	// Wallet
	Wallet       string
	PasswordFile string
	Account      string

	// Queue
	NoPersist  bool
	ResetQueue bool

	// Fees
	SafetyMargin int
	WalletMargin int

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags (for true/false and zero overrides).
	SetRPC          bool
	SetLogJSON      bool
	SetSafetyMargin bool
	SetWalletMargin bool
}

// ParseFlags parses the process command line, exiting on --help or a
// parse error.
func ParseFlags() *Flags {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

func parseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("klingwalletd", flag.ContinueOnError)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable local API server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "Local API listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "Local API listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for the local API")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins (comma-separated)")
	fs.BoolVar(&f.NoWS, "no-ws", false, "Disable WebSocket subscriptions")
	fs.BoolVar(&f.NoMetrics, "no-metrics", false, "Disable the /metrics endpoint")

	// Chain node
	fs.StringVar(&f.ChainRPC, "chain-rpc", "", "Chain node RPC endpoint")

	// Wallet
	fs.StringVar(&f.Wallet, "wallet", "", "Wallet to unlock at startup")
	fs.StringVar(&f.PasswordFile, "password-file", "", "File holding the wallet password")
	fs.StringVar(&f.Account, "account", "", "Account address selected at startup")

	// Queue
	fs.BoolVar(&f.NoPersist, "no-persist", false, "Keep the action queue in memory only")
	fs.BoolVar(&f.ResetQueue, "reset-queue", false, "Drop persisted actions at startup")

	// Fees
	fs.IntVar(&f.SafetyMargin, "fee-safety-margin", 0, "Overhead percent applied to the network estimate")
	fs.IntVar(&f.WalletMargin, "fee-wallet-margin", 0, "Overhead percent applied on top of the safety margin")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = printUsage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.SetSafetyMargin = isFlagSet(fs, "fee-safety-margin")
	f.SetWalletMargin = isFlagSet(fs, "fee-wallet-margin")

	f.Args = fs.Args()

	// A positional argument stops the flag parser; anything after it that
	// looks like a flag was silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(f.Network)
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}
	if f.NoWS {
		cfg.RPC.WS = false
	}
	if f.NoMetrics {
		cfg.RPC.Metrics = false
	}

	// Chain node
	if f.ChainRPC != "" {
		cfg.Chain.Endpoint = f.ChainRPC
	}

	// Wallet
	if f.Wallet != "" {
		cfg.Wallet.Name = f.Wallet
	}
	if f.PasswordFile != "" {
		cfg.Wallet.PasswordFile = f.PasswordFile
	}
	if f.Account != "" {
		cfg.Wallet.Account = f.Account
	}

	// Queue
	if f.NoPersist {
		cfg.Queue.Persist = false
	}
	if f.ResetQueue {
		cfg.Queue.Reset = true
	}

	// Fees
	if f.SetSafetyMargin {
		cfg.Fee.SafetyMarginPct = marginFromFlag(f.SafetyMargin)
	}
	if f.SetWalletMargin {
		cfg.Fee.WalletMarginPct = marginFromFlag(f.WalletMargin)
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// marginFromFlag maps negative values above MaxMarginPct so Validate rejects them.
func marginFromFlag(v int) uint64 {
	if v < 0 {
		return MaxMarginPct + 1
	}
	return uint64(v)
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `KlingWallet Daemon - background transaction core for the Klingnet wallet

Usage:
  klingwalletd [options]
  klingwalletd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.klingwallet)
  --config, -c    Config file path (default: <datadir>/klingwallet.conf)

Local API Options:
  --rpc           Enable the local API server (default: true)
  --rpc-addr      Listen address (default: 127.0.0.1)
  --rpc-port      Listen port (mainnet: 9545, testnet: 9645)
  --rpc-allowed   Allowed IPs (comma-separated)
  --rpc-cors      Allowed CORS origins (comma-separated)
  --no-ws         Disable WebSocket subscriptions at /ws
  --no-metrics    Disable Prometheus metrics at /metrics

Chain Options:
  --chain-rpc     Chain node RPC endpoint (mainnet: http://127.0.0.1:8545)

Wallet Options:
  --wallet         Wallet to unlock at startup
  --password-file  File holding the wallet password (default: prompt)
  --account        Account address selected at startup

Queue Options:
  --no-persist    Keep the action queue in memory only
  --reset-queue   Drop persisted actions at startup

Fee Options:
  --fee-safety-margin  Percent added to the network estimate (default: 50)
  --fee-wallet-margin  Percent added on top of the safety margin (default: 100)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path, rotated (default: stdout)
  --log-json      Output logs as JSON

Examples:
  # Start on mainnet with the default wallet
  klingwalletd --wallet=default

  # Start on testnet against a remote node
  klingwalletd --testnet --chain-rpc=http://10.0.0.5:8645

Note:
  Data directories and a default config file are created automatically on
  first start.
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	// Handle help/version
	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Printf("klingwalletd version %s\n", Version)
		os.Exit(0)
	}

	cfg, err := LoadWithFlags(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// LoadWithFlags resolves the configuration for already parsed flags.
func LoadWithFlags(flags *Flags) (*Config, error) {
	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.KeystoreDir(),
		cfg.StateDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
