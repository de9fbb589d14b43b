// Package config handles daemon configuration.
//
// Settings are resolved in three layers: built-in defaults, the
// keycore.conf file in the data directory, then command-line flags.
package config

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// StorageBackend selects where keystore records live.
type StorageBackend string

const (
	BackendBadger StorageBackend = "badger"
	BackendMemory StorageBackend = "memory"
)

// Config holds daemon runtime configuration.
type Config struct {
	DataDir string         `conf:"datadir"`
	Backend StorageBackend `conf:"storage.backend"`

	// HTTP request server
	Server ServerConfig

	// AccountBased (Ethereum) provider
	Account AccountConfig

	// KeypairBased (Solana) provider
	Keypair KeypairConfig

	// Keystore encryption
	Keystore KeystoreConfig

	// Logging
	Log LogConfig
}

// ServerConfig holds the request server settings.
type ServerConfig struct {
	Enabled     bool          `conf:"server.enabled"`
	Addr        string        `conf:"server.addr"`
	Port        int           `conf:"server.port"`
	AllowedIPs  []string      `conf:"server.allowed"`
	CORSOrigins []string      `conf:"server.cors"`
	Timeout     time.Duration `conf:"server.timeout"` // Per-request router deadline
}

// AccountConfig holds AccountBased provider settings.
type AccountConfig struct {
	ChainID uint64 `conf:"account.chainid"` // Used when a request omits chainId
}

// KeypairConfig holds KeypairBased provider and submission settings.
type KeypairConfig struct {
	Endpoint       string        `conf:"keypair.endpoint"`
	Commitment     string        `conf:"keypair.commitment"`
	ConfirmTimeout time.Duration `conf:"keypair.confirm_timeout"`
	PollInterval   time.Duration `conf:"keypair.poll_interval"`
}

// KeystoreConfig controls encryption of persisted secrets.
type KeystoreConfig struct {
	Encrypt       bool   `conf:"keystore.encrypt"`
	PassphraseEnv string `conf:"keystore.passphrase_env"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.keycore
//	macOS:   ~/Library/Application Support/Keycore
//	Windows: %APPDATA%\Keycore
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keycore"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Keycore")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Keycore")
		}
		return filepath.Join(home, "AppData", "Roaming", "Keycore")
	default:
		return filepath.Join(home, ".keycore")
	}
}

// DBDir returns the badger database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.DataDir, "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "keycore.conf")
}

// ListenAddr returns the host:port the request server binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Addr, strconv.Itoa(c.Server.Port))
}
