package config

import (
	"net"
	"strconv"
	"time"

	pfee "github.com/Klingon-tech/klingnet-walletd/pkg/fee"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       9545,
			AllowedIPs: []string{"127.0.0.1"},
			WS:         true,
			Metrics:    true,
		},
		Chain: ChainConfig{
			// Local klingnetd node RPC.
			Endpoint: "http://127.0.0.1:8545",
			Timeout:  30 * time.Second,
		},
		Queue: QueueConfig{
			Persist: true,
		},
		Fee: FeeConfig{
			SafetyMarginPct: pfee.DefaultSafetyMarginPct,
			WalletMarginPct: pfee.DefaultWalletMarginPct,
		},
		Log: LogConfig{
			Level:      "info",
			JSON:       false,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 9645
	cfg.Chain.Endpoint = "http://127.0.0.1:8645"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
