package config

import (
	"time"

	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
)

// Default ports and names.
const (
	DefaultServerPort    = 8645
	DefaultPassphraseEnv = "KEYCORE_PASSPHRASE"
)

// Default returns the default daemon configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Backend: BackendBadger,
		Server: ServerConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       DefaultServerPort,
			AllowedIPs: []string{"127.0.0.1"},
			Timeout:    60 * time.Second,
		},
		Account: AccountConfig{
			ChainID: 1,
		},
		Keypair: KeypairConfig{
			Endpoint:       solrpc.DefaultEndpoint,
			Commitment:     string(solrpc.Confirmed),
			ConfirmTimeout: 45 * time.Second,
			PollInterval:   500 * time.Millisecond,
		},
		Keystore: KeystoreConfig{
			Encrypt:       false,
			PassphraseEnv: DefaultPassphraseEnv,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
