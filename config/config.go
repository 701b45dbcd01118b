// Package config handles wallet daemon configuration.
//
// Settings are resolved from defaults, then the key = value config file in
// the data directory, then command-line flags.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// MaxMarginPct caps the fee margins an operator may configure.
const MaxMarginPct = 1000

// Config holds the daemon's runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Local JSON-RPC / WebSocket API for pages and the wallet UI
	RPC RPCConfig

	// Chain node the wallet estimates against and submits to
	Chain ChainConfig

	// Keystore wallet
	Wallet WalletConfig

	// Action queue
	Queue QueueConfig

	// Fee policy
	Fee FeeConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds the local API server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"`    // Allowed CORS origins ("*" = all).
	WS          bool     `conf:"rpc.ws"`      // Serve /ws subscriptions.
	Metrics     bool     `conf:"rpc.metrics"` // Serve /metrics.
}

// ChainConfig holds the chain node client settings.
type ChainConfig struct {
	Endpoint string        `conf:"chain.rpc"`
	Timeout  time.Duration `conf:"chain.timeout"`
}

// WalletConfig holds keystore wallet settings.
type WalletConfig struct {
	Name         string `conf:"wallet.name"`          // Wallet to unlock at startup.
	PasswordFile string `conf:"wallet.password_file"` // Empty = prompt on the terminal.
	Account      string `conf:"wallet.account"`       // Account address selected at startup.
}

// QueueConfig holds action queue settings.
type QueueConfig struct {
	Persist bool `conf:"queue.persist"` // Keep queued actions across restarts.
	Reset   bool `conf:"queue.reset"`   // Drop persisted actions at startup.
}

// FeeConfig holds the two fee margins in percent.
type FeeConfig struct {
	SafetyMarginPct uint64 `conf:"fee.safety_margin"`
	WalletMarginPct uint64 `conf:"fee.wallet_margin"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `conf:"log.level"`
	File       string `conf:"log.file"`
	JSON       bool   `conf:"log.json"`
	MaxSizeMB  int    `conf:"log.max_size_mb"`
	MaxBackups int    `conf:"log.max_backups"`
	MaxAgeDays int    `conf:"log.max_age_days"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.klingwallet
//	macOS:   ~/Library/Application Support/KlingWallet
//	Windows: %APPDATA%\KlingWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".klingwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "KlingWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "KlingWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "KlingWallet")
	default:
		return filepath.Join(home, ".klingwallet")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// StateDir returns the database directory (queue, account cache).
func (c *Config) StateDir() string {
	return filepath.Join(c.NetworkDataDir(), "state")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "klingwallet.conf")
}

// RPCListenAddr returns host:port for the local API server.
func (c *Config) RPCListenAddr() string {
	return joinHostPort(c.RPC.Addr, c.RPC.Port)
}
