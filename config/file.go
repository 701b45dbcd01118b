package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)
	case "rpc.ws":
		cfg.RPC.WS = parseBool(value)
	case "rpc.metrics":
		cfg.RPC.Metrics = parseBool(value)

	// Chain node
	case "chain.rpc":
		cfg.Chain.Endpoint = value
	case "chain.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Chain.Timeout = d

	// Wallet
	case "wallet.name", "wallet":
		cfg.Wallet.Name = value
	case "wallet.password_file":
		cfg.Wallet.PasswordFile = value
	case "wallet.account":
		cfg.Wallet.Account = value

	// Queue
	case "queue.persist":
		cfg.Queue.Persist = parseBool(value)
	case "queue.reset":
		cfg.Queue.Reset = parseBool(value)

	// Fees
	case "fee.safety_margin":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Fee.SafetyMarginPct = n
	case "fee.wallet_margin":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Fee.WalletMarginPct = n

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	case "log.max_size_mb":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxSizeMB = n
	case "log.max_backups":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxBackups = n
	case "log.max_age_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Log.MaxAgeDays = n

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	def := Default(network)
	content := `# KlingWallet Daemon Configuration
#
# Format: key = value. Command-line flags override these settings.

# Network: mainnet or testnet
network = ` + string(network) + `

# Data directory (default: ~/.klingwallet)
# datadir = ~/.klingwallet

# ============================================================================
# Local API (pages and wallet UI)
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(def.RPC.Port) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = chrome-extension://<id>
rpc.ws = true
rpc.metrics = true

# ============================================================================
# Chain Node
# ============================================================================

chain.rpc = ` + def.Chain.Endpoint + `
chain.timeout = 30s

# ============================================================================
# Wallet
# ============================================================================

# Wallet to unlock at startup
# wallet.name = default
# File holding the wallet password (default: prompt on the terminal)
# wallet.password_file =
# Account selected at startup (default: first account)
# wallet.account =

# ============================================================================
# Action Queue
# ============================================================================

queue.persist = true
# Drop persisted actions at startup
# queue.reset = false

# ============================================================================
# Fees (percent overhead)
# ============================================================================

# Applied to the raw network estimate
fee.safety_margin = 50
# Applied on top of the safety margin
fee.wallet_margin = 100

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
log.max_size_mb = 50
log.max_backups = 5
log.max_age_days = 30
`
	return os.WriteFile(path, []byte(content), 0644)
}
