package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("datadir must not be empty")
	}
	switch cfg.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendBadger, BackendMemory)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range [0, 65535]")
	}
	if cfg.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	for i, a := range cfg.Server.AllowedIPs {
		if net.ParseIP(a) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(a); err != nil {
			return fmt.Errorf("server.allowed[%d] %q is not an IP or CIDR", i, a)
		}
	}

	if cfg.Account.ChainID == 0 {
		return fmt.Errorf("account.chainid must be positive")
	}

	if strings.TrimSpace(cfg.Keypair.Endpoint) == "" {
		return fmt.Errorf("keypair.endpoint must not be empty")
	}
	u, err := url.Parse(cfg.Keypair.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("keypair.endpoint must be an http(s) URL")
	}
	if !solrpc.Commitment(cfg.Keypair.Commitment).Valid() {
		return fmt.Errorf("keypair.commitment must be processed, confirmed, or finalized")
	}
	if cfg.Keypair.ConfirmTimeout <= 0 {
		return fmt.Errorf("keypair.confirm_timeout must be positive")
	}
	if cfg.Keypair.PollInterval <= 0 {
		return fmt.Errorf("keypair.poll_interval must be positive")
	}

	if cfg.Keystore.Encrypt && strings.TrimSpace(cfg.Keystore.PassphraseEnv) == "" {
		return fmt.Errorf("keystore.passphrase_env must name a variable when keystore.encrypt is set")
	}

	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, error, or off")
	}
	return nil
}
