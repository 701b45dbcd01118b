package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if err := validateEndpoint(cfg.Chain.Endpoint); err != nil {
		return err
	}
	if cfg.Chain.Timeout < 0 {
		return fmt.Errorf("chain.timeout must not be negative")
	}

	if cfg.Fee.SafetyMarginPct > MaxMarginPct {
		return fmt.Errorf("fee.safety_margin must be in range [0, %d]", MaxMarginPct)
	}
	if cfg.Fee.WalletMarginPct > MaxMarginPct {
		return fmt.Errorf("fee.wallet_margin must be in range [0, %d]", MaxMarginPct)
	}

	if cfg.Log.Level != "" && cfg.Log.Level != "disabled" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level)); err != nil {
			return fmt.Errorf("log.level %q is not a valid level", cfg.Log.Level)
		}
	}

	return nil
}

func validateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("chain.rpc must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("chain.rpc: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("chain.rpc must be an http or https URL")
	}
	if u.Host == "" {
		return fmt.Errorf("chain.rpc has no host")
	}
	return nil
}
