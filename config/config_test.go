package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	cfg.DataDir = t.TempDir()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) error: %v", err)
	}
	if cfg.ListenAddr() != "127.0.0.1:8645" {
		t.Errorf("ListenAddr() = %q", cfg.ListenAddr())
	}
	if cfg.Keystore.PassphraseEnv != "KEYCORE_PASSPHRASE" {
		t.Errorf("passphrase env = %q", cfg.Keystore.PassphraseEnv)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keycore.conf")
	content := `# comment
server.port = 9000
keypair.endpoint = "https://api.devnet.solana.com"

log.level = 'debug'
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if values["keypair.endpoint"] != "https://api.devnet.solana.com" {
		t.Errorf("quotes not stripped: %q", values["keypair.endpoint"])
	}
	if values["log.level"] != "debug" {
		t.Errorf("log.level = %q", values["log.level"])
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("got %d values from missing file", len(values))
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keycore.conf")
	if err := os.WriteFile(path, []byte("server.port 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("LoadFile() error = %v, want line 1 error", err)
	}
}

func TestApplyFileConfig(t *testing.T) {
	cfg := Default()
	err := ApplyFileConfig(cfg, map[string]string{
		"storage.backend":         "Memory",
		"server.enabled":          "no",
		"server.allowed":          "127.0.0.1, 10.0.0.0/8",
		"server.cors":             "chrome-extension://abc",
		"server.timeout":          "90s",
		"account.chainid":         "11155111",
		"keypair.commitment":      "FINALIZED",
		"keypair.confirm_timeout": "2m",
		"keypair.poll_interval":   "250ms",
		"keystore.encrypt":        "yes",
		"keystore.passphrase_env": "MY_PASS",
		"log.json":                "1",
		"unknown.key":             "ignored",
	})
	if err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}

	if cfg.Backend != BackendMemory {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.Server.Enabled {
		t.Error("server should be disabled")
	}
	if len(cfg.Server.AllowedIPs) != 2 || cfg.Server.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("allowed = %v", cfg.Server.AllowedIPs)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.Timeout != 90*time.Second {
		t.Errorf("timeout = %v", cfg.Server.Timeout)
	}
	if cfg.Account.ChainID != 11155111 {
		t.Errorf("chainid = %d", cfg.Account.ChainID)
	}
	if cfg.Keypair.Commitment != "finalized" {
		t.Errorf("commitment = %q", cfg.Keypair.Commitment)
	}
	if cfg.Keypair.ConfirmTimeout != 2*time.Minute || cfg.Keypair.PollInterval != 250*time.Millisecond {
		t.Errorf("keypair durations = %v / %v", cfg.Keypair.ConfirmTimeout, cfg.Keypair.PollInterval)
	}
	if !cfg.Keystore.Encrypt || cfg.Keystore.PassphraseEnv != "MY_PASS" {
		t.Errorf("keystore = %+v", cfg.Keystore)
	}
	if !cfg.Log.JSON {
		t.Error("log.json should be true")
	}
}

func TestApplyFileConfig_BadValue(t *testing.T) {
	tests := map[string]string{
		"server.port":           "eighty",
		"server.timeout":        "soon",
		"account.chainid":       "-1",
		"keypair.poll_interval": "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			err := ApplyFileConfig(Default(), map[string]string{key: value})
			if err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("ApplyFileConfig(%s=%s) error = %v", key, value, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Backend = "leveldb" }, "storage.backend"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"timeout", func(c *Config) { c.Server.Timeout = 0 }, "server.timeout"},
		{"allowed", func(c *Config) { c.Server.AllowedIPs = []string{"localhost"} }, "server.allowed"},
		{"chainid", func(c *Config) { c.Account.ChainID = 0 }, "account.chainid"},
		{"endpoint empty", func(c *Config) { c.Keypair.Endpoint = "" }, "keypair.endpoint"},
		{"endpoint scheme", func(c *Config) { c.Keypair.Endpoint = "ws://node" }, "keypair.endpoint"},
		{"commitment", func(c *Config) { c.Keypair.Commitment = "max" }, "keypair.commitment"},
		{"confirm timeout", func(c *Config) { c.Keypair.ConfirmTimeout = -time.Second }, "keypair.confirm_timeout"},
		{"poll", func(c *Config) { c.Keypair.PollInterval = 0 }, "keypair.poll_interval"},
		{"passphrase env", func(c *Config) {
			c.Keystore.Encrypt = true
			c.Keystore.PassphraseEnv = " "
		}, "keystore.passphrase_env"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	f, err := ParseArgs([]string{
		"--datadir", "/tmp/kc",
		"--server=false",
		"--server-port", "9100",
		"--timeout", "30s",
		"--chain-id", "5",
		"--commitment", "processed",
		"--encrypt",
		"--log-json=false",
	}, os.Stderr)
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}
	if !f.SetServer || f.Server {
		t.Error("--server=false not recorded")
	}
	if !f.SetEncrypt || !f.Encrypt {
		t.Error("--encrypt not recorded")
	}
	if !f.SetLogJSON || f.LogJSON {
		t.Error("--log-json=false not recorded")
	}

	cfg := Default()
	cfg.Log.JSON = true
	ApplyFlags(cfg, f)
	if cfg.DataDir != "/tmp/kc" || cfg.Server.Enabled || cfg.Server.Port != 9100 {
		t.Errorf("server/datadir not applied: %+v", cfg.Server)
	}
	if cfg.Server.Timeout != 30*time.Second || cfg.Account.ChainID != 5 {
		t.Errorf("timeout/chainid not applied")
	}
	if cfg.Keypair.Commitment != "processed" || !cfg.Keystore.Encrypt || cfg.Log.JSON {
		t.Errorf("keypair/keystore/log not applied")
	}
}

func TestParseArgs_Help(t *testing.T) {
	if _, err := ParseArgs([]string{"-h"}, os.Stderr); err != ErrHelp {
		t.Fatalf("ParseArgs(-h) error = %v, want ErrHelp", err)
	}
}

func TestParseArgs_StrayFlag(t *testing.T) {
	if _, err := ParseArgs([]string{"--encrypt", "yes", "--server-port", "1"}, os.Stderr); err == nil {
		t.Fatal("expected error for flag after positional argument")
	}
}

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()

	// First resolve writes the default config file.
	if _, err := Resolve(&Flags{DataDir: dir}); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	for _, p := range []string{filepath.Join(dir, "keycore.conf"), filepath.Join(dir, "db"), filepath.Join(dir, "logs")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s: %v", p, err)
		}
	}

	conf := "server.port = 9200\naccount.chainid = 10\n"
	if err := os.WriteFile(filepath.Join(dir, "keycore.conf"), []byte(conf), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Resolve(&Flags{DataDir: dir, ChainID: 137})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("file value not applied: port = %d", cfg.Server.Port)
	}
	if cfg.Account.ChainID != 137 {
		t.Errorf("flag did not override file: chainid = %d", cfg.Account.ChainID)
	}
}

func TestResolve_DefaultFileParses(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Resolve(&Flags{DataDir: dir})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	def := Default()
	if cfg.Server.Port != def.Server.Port || cfg.Keypair.Commitment != def.Keypair.Commitment ||
		cfg.Keypair.Endpoint != def.Keypair.Endpoint || cfg.Server.Timeout != def.Server.Timeout {
		t.Errorf("default file disagrees with Default(): %+v", cfg)
	}
}

func TestResolve_Invalid(t *testing.T) {
	_, err := Resolve(&Flags{DataDir: t.TempDir(), Commitment: "eventually"})
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("Resolve() error = %v", err)
	}
}
