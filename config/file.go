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

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

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
	case "datadir":
		cfg.DataDir = value
	case "storage.backend":
		cfg.Backend = StorageBackend(strings.ToLower(value))

	// Request server
	case "server.enabled", "server":
		cfg.Server.Enabled = parseBool(value)
	case "server.addr":
		cfg.Server.Addr = value
	case "server.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	case "server.allowed":
		cfg.Server.AllowedIPs = parseStringList(value)
	case "server.cors":
		cfg.Server.CORSOrigins = parseStringList(value)
	case "server.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Server.Timeout = d

	// AccountBased
	case "account.chainid":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Account.ChainID = n

	// KeypairBased
	case "keypair.endpoint":
		cfg.Keypair.Endpoint = value
	case "keypair.commitment":
		cfg.Keypair.Commitment = strings.ToLower(value)
	case "keypair.confirm_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Keypair.ConfirmTimeout = d
	case "keypair.poll_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Keypair.PollInterval = d

	// Keystore
	case "keystore.encrypt":
		cfg.Keystore.Encrypt = parseBool(value)
	case "keystore.passphrase_env":
		cfg.Keystore.PassphraseEnv = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

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
func WriteDefaultConfig(path string) error {
	content := `# Keycore Configuration
#
# Flags passed on the command line override the values below.

# Data directory (default: ~/.keycore)
# datadir = ~/.keycore

# Storage backend: badger or memory (memory forgets identities on exit)
storage.backend = badger

# ============================================================================
# Request Server
# ============================================================================

server.enabled = true
server.addr = 127.0.0.1
server.port = ` + strconv.Itoa(DefaultServerPort) + `
server.allowed = 127.0.0.1
# CORS allowed origins, e.g. the browser extension origin
# server.cors = chrome-extension://<extension-id>
# Deadline for a single request, including transaction confirmation
server.timeout = 60s

# ============================================================================
# AccountBased (Ethereum)
# ============================================================================

# Chain ID used when a request does not carry one
account.chainid = 1

# ============================================================================
# KeypairBased (Solana)
# ============================================================================

keypair.endpoint = https://api.mainnet-beta.solana.com
# processed, confirmed, or finalized
keypair.commitment = confirmed
keypair.confirm_timeout = 45s
keypair.poll_interval = 500ms

# ============================================================================
# Keystore
# ============================================================================

# Seal stored secrets with a passphrase (argon2id + XChaCha20-Poly1305)
keystore.encrypt = false
# Environment variable holding the passphrase; prompted when unset
keystore.passphrase_env = ` + DefaultPassphraseEnv + `

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}
