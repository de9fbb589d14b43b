package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Version is the daemon version string.
const Version = "0.1.0"

// ErrHelp is returned by ParseArgs when --help was requested.
var ErrHelp = errors.New("help requested")

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string
	Backend string

	// Request server
	Server        bool
	ServerAddr    string
	ServerPort    int
	ServerAllowed string
	ServerCORS    string
	Timeout       time.Duration

	// AccountBased
	ChainID uint64

	// KeypairBased
	Endpoint       string
	Commitment     string
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// Keystore
	Encrypt       bool
	PassphraseEnv string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetServer  bool
	SetEncrypt bool
	SetLogJSON bool
}

// ParseFlags parses os.Args, printing usage and exiting on --help or a
// parse error.
func ParseFlags() *Flags {
	f, err := ParseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, ErrHelp) {
		printUsage()
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return f
}

// ParseArgs parses args into Flags. Parser diagnostics go to errOut.
func ParseArgs(args []string, errOut io.Writer) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("keycored", flag.ContinueOnError)
	fs.SetOutput(errOut)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.StringVar(&f.Backend, "storage", "", "Storage backend (badger or memory)")

	// Request server
	fs.BoolVar(&f.Server, "server", true, "Enable the request server")
	fs.StringVar(&f.ServerAddr, "server-addr", "", "Request server listen address")
	fs.IntVar(&f.ServerPort, "server-port", 0, "Request server listen port")
	fs.StringVar(&f.ServerAllowed, "server-allowed", "", "Allowed IPs or CIDRs (comma-separated)")
	fs.StringVar(&f.ServerCORS, "server-cors", "", "Allowed CORS origins (comma-separated)")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-request deadline")

	// AccountBased
	fs.Uint64Var(&f.ChainID, "chain-id", 0, "Default AccountBased chain ID")

	// KeypairBased
	fs.StringVar(&f.Endpoint, "keypair-endpoint", "", "KeypairBased JSON-RPC endpoint")
	fs.StringVar(&f.Commitment, "commitment", "", "Commitment to wait for (processed, confirmed, finalized)")
	fs.DurationVar(&f.ConfirmTimeout, "confirm-timeout", 0, "Confirmation wait limit")
	fs.DurationVar(&f.PollInterval, "poll-interval", 0, "Confirmation poll interval")

	// Keystore
	fs.BoolVar(&f.Encrypt, "encrypt", false, "Encrypt stored secrets with a passphrase")
	fs.StringVar(&f.PassphraseEnv, "passphrase-env", "", "Environment variable holding the keystore passphrase")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, err
	}
	if f.Help {
		return nil, ErrHelp
	}

	f.SetServer = isFlagSet(fs, "server")
	f.SetEncrypt = isFlagSet(fs, "encrypt")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
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
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.Backend != "" {
		cfg.Backend = StorageBackend(strings.ToLower(f.Backend))
	}

	// Request server
	if f.SetServer {
		cfg.Server.Enabled = f.Server
	}
	if f.ServerAddr != "" {
		cfg.Server.Addr = f.ServerAddr
	}
	if f.ServerPort != 0 {
		cfg.Server.Port = f.ServerPort
	}
	if f.ServerAllowed != "" {
		cfg.Server.AllowedIPs = parseStringList(f.ServerAllowed)
	}
	if f.ServerCORS != "" {
		cfg.Server.CORSOrigins = parseStringList(f.ServerCORS)
	}
	if f.Timeout != 0 {
		cfg.Server.Timeout = f.Timeout
	}

	// AccountBased
	if f.ChainID != 0 {
		cfg.Account.ChainID = f.ChainID
	}

	// KeypairBased
	if f.Endpoint != "" {
		cfg.Keypair.Endpoint = f.Endpoint
	}
	if f.Commitment != "" {
		cfg.Keypair.Commitment = strings.ToLower(f.Commitment)
	}
	if f.ConfirmTimeout != 0 {
		cfg.Keypair.ConfirmTimeout = f.ConfirmTimeout
	}
	if f.PollInterval != 0 {
		cfg.Keypair.PollInterval = f.PollInterval
	}

	// Keystore
	if f.SetEncrypt {
		cfg.Keystore.Encrypt = f.Encrypt
	}
	if f.PassphraseEnv != "" {
		cfg.Keystore.PassphraseEnv = f.PassphraseEnv
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
	usage := `Keycore - multi-chain key management and signing daemon

Usage:
  keycored [options]
  keycored --help

Commands:
  --help, -h          Show this help message
  --version, -v       Show version information

Core Options:
  --datadir           Data directory (default: ~/.keycore)
  --config, -c        Config file path (default: <datadir>/keycore.conf)
  --storage           Storage backend: badger (default) or memory

Request Server Options:
  --server            Enable the request server (default: true)
  --server-addr       Listen address (default: 127.0.0.1)
  --server-port       Listen port (default: 8645)
  --server-allowed    Allowed IPs or CIDRs (comma-separated)
  --server-cors       Allowed CORS origins (comma-separated)
  --timeout           Per-request deadline (default: 60s)

AccountBased Options:
  --chain-id          Chain ID used when a request omits one (default: 1)

KeypairBased Options:
  --keypair-endpoint  JSON-RPC endpoint (default: mainnet-beta)
  --commitment        processed, confirmed (default), or finalized
  --confirm-timeout   Confirmation wait limit (default: 45s)
  --poll-interval     Confirmation poll interval (default: 500ms)

Keystore Options:
  --encrypt           Encrypt stored secrets with a passphrase
  --passphrase-env    Variable holding the passphrase (default: KEYCORE_PASSPHRASE)

Logging Options:
  --log-level         Log level: debug, info, warn, error (default: info)
  --log-file          Log file path (logs to stdout if not set)
  --log-json          Output logs in JSON format

Examples:
  # Start with defaults
  keycored

  # Listen for a browser extension
  keycored --server-cors chrome-extension://abcdefghijklmnop

  # Use devnet with an encrypted keystore
  KEYCORE_PASSPHRASE=... keycored --keypair-endpoint https://api.devnet.solana.com --encrypt
`
	fmt.Print(usage)
}

// Load loads configuration from os.Args with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Version {
		fmt.Println("keycored version " + Version)
		os.Exit(0)
	}

	cfg, err := Resolve(flags)
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// Resolve builds a Config from defaults, the config file, and flags.
func Resolve(flags *Flags) (*Config, error) {
	cfg := Default()

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

	// Apply flags (highest precedence)
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
		cfg.DBDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
