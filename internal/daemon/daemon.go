// Package daemon wires storage, providers, the registry, the router and
// the request server into one process that can be embedded in any binary.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/Klingon-tech/klingnet-keycore/config"
	"github.com/Klingon-tech/klingnet-keycore/internal/keystore"
	klog "github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/registry"
	"github.com/Klingon-tech/klingnet-keycore/internal/router"
	"github.com/Klingon-tech/klingnet-keycore/internal/server"
	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
	"github.com/Klingon-tech/klingnet-keycore/internal/storage"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/account"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/keypair"
)

// Daemon is a fully initialized key core.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	db       storage.DB
	keystore *keystore.Keystore
	registry *registry.Registry
	router   *router.Router
	metrics  *prometheus.Registry
	server   *server.Server
}

// Option adjusts how New builds the daemon.
type Option func(*options)

type options struct {
	passphrase PassphraseFunc
	keypairRPC *solrpc.Client
	skipLogger bool
}

// WithPassphraseFunc overrides how the keystore passphrase is obtained.
func WithPassphraseFunc(fn PassphraseFunc) Option {
	return func(o *options) { o.passphrase = fn }
}

// WithKeypairClient replaces the JSON-RPC client built from
// keypair.endpoint.
func WithKeypairClient(c *solrpc.Client) Option {
	return func(o *options) { o.keypairRPC = c }
}

// WithoutLoggerInit keeps the current global logger instead of
// initializing it from cfg.Log.
func WithoutLoggerInit() Option {
	return func(o *options) { o.skipLogger = true }
}

// New creates and initializes a daemon. It opens storage, unlocks and
// hydrates the keystore, and builds the router and server, but does not
// start listening. Call Start for that.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	o := options{passphrase: EnvOrPrompt}
	for _, opt := range opts {
		opt(&o)
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	if !o.skipLogger {
		logFile := cfg.Log.File
		if logFile == "" {
			logFile = filepath.Join(cfg.LogsDir(), "keycore.log")
		}
		if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	logger := klog.WithComponent("daemon")

	logger.Info().
		Str("datadir", cfg.DataDir).
		Str("backend", string(cfg.Backend)).
		Uint64("chain_id", cfg.Account.ChainID).
		Str("keypair_endpoint", cfg.Keypair.Endpoint).
		Msg("Starting key core")

	// ── 2. Open storage ─────────────────────────────────────────────
	db, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	d := &Daemon{cfg: cfg, logger: logger, db: db}

	// ── 3. Keystore ─────────────────────────────────────────────────
	var ksOpts []keystore.Option
	if cfg.Keystore.Encrypt {
		pass, err := o.passphrase(cfg.Keystore.PassphraseEnv)
		if err != nil {
			d.closeStorage()
			return nil, fmt.Errorf("keystore passphrase: %w", err)
		}
		if len(pass) == 0 {
			d.closeStorage()
			return nil, fmt.Errorf("keystore passphrase: empty passphrase")
		}
		ksOpts = append(ksOpts, keystore.WithPassphrase(pass))
		wallet.Zero(pass)
	}
	d.keystore = keystore.New(db, ksOpts...)
	if err := checkUnlock(d.keystore); err != nil {
		d.closeStorage()
		return nil, err
	}

	// ── 4. Providers and registry ───────────────────────────────────
	rpcClient := o.keypairRPC
	if rpcClient == nil {
		rpcClient = solrpc.New(cfg.Keypair.Endpoint)
	}
	submitter, err := keypair.NewSubmitter(rpcClient, keypair.SubmitterConfig{
		Commitment:     solrpc.Commitment(cfg.Keypair.Commitment),
		ConfirmTimeout: cfg.Keypair.ConfirmTimeout,
		PollInterval:   cfg.Keypair.PollInterval,
	})
	if err != nil {
		d.closeStorage()
		return nil, fmt.Errorf("keypair submitter: %w", err)
	}

	d.registry = registry.New(d.keystore)
	if err := d.registry.Register(account.New(cfg.Account.ChainID), nil); err != nil {
		d.closeStorage()
		return nil, err
	}
	if err := d.registry.Register(keypair.New(rpcClient, solrpc.Finalized), submitter); err != nil {
		d.closeStorage()
		return nil, err
	}

	// Unreadable records leave their slot empty; the daemon still serves
	// the other networks and a new CREATE or IMPORT overwrites the record.
	if err := d.registry.Load(context.Background()); err != nil {
		for _, e := range multierr.Errors(err) {
			logger.Warn().Err(e).Msg("Identity not restored")
		}
	}

	// ── 5. Router and metrics ───────────────────────────────────────
	d.metrics = prometheus.NewRegistry()
	d.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.router = router.New(d.registry,
		router.WithTimeout(cfg.Server.Timeout),
		router.WithMetrics(router.NewMetrics(d.metrics)),
	)

	// ── 6. Request server ───────────────────────────────────────────
	if cfg.Server.Enabled {
		d.server = server.New(server.Config{
			Addr:         cfg.ListenAddr(),
			AllowedIPs:   cfg.Server.AllowedIPs,
			CORSOrigins:  cfg.Server.CORSOrigins,
			WriteTimeout: cfg.Server.Timeout + serverGrace,
		}, d.router, d.metrics)
	} else {
		logger.Warn().Msg("Request server disabled by config")
	}

	return d, nil
}

// Start begins serving requests.
func (d *Daemon) Start() error {
	if d.server != nil {
		if err := d.server.Start(); err != nil {
			return err
		}
	}
	d.logger.Info().
		Str("addr", d.Addr()).
		Bool("encrypted", d.keystore.Encrypted()).
		Msg("Key core started")
	return nil
}

// Stop shuts the server down and closes storage. Every step runs even
// if an earlier one fails.
func (d *Daemon) Stop() error {
	var err error
	if d.server != nil {
		err = multierr.Append(err, d.server.Stop())
	}
	err = multierr.Append(err, d.closeStorage())
	if err != nil {
		d.logger.Error().Err(err).Msg("Shutdown finished with errors")
	} else {
		d.logger.Info().Msg("Goodbye!")
	}
	return err
}

// Addr returns the address the request server is listening on.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}

// Router returns the request router, for embedding without HTTP.
func (d *Daemon) Router() *router.Router { return d.router }

// Registry returns the identity registry.
func (d *Daemon) Registry() *registry.Registry { return d.registry }

// Gatherer returns the daemon's metrics registry.
func (d *Daemon) Gatherer() prometheus.Gatherer { return d.metrics }

func (d *Daemon) closeStorage() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func openStorage(cfg *config.Config) (storage.DB, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		klog.Storage.Warn().Msg("Using in-memory storage, identities are lost on exit")
		return storage.NewMemory(), nil
	default:
		db, err := storage.NewBadger(cfg.DBDir())
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
		}
		klog.Storage.Info().Str("path", cfg.DBDir()).Msg("Database opened")
		return db, nil
	}
}

// ErrKeystoreLocked is returned by New when stored records cannot be
// opened with the configured passphrase.
var ErrKeystoreLocked = errors.New("keystore cannot be unlocked")

// checkUnlock refuses to start over sealed records the daemon cannot
// open, so they are not silently replaced by new identities.
func checkUnlock(ks *keystore.Keystore) error {
	summaries, err := ks.List()
	if err != nil {
		// Corrupt records are handled per slot during hydration.
		klog.Keystore.Warn().Err(err).Msg("Listing stored identities failed")
		return nil
	}
	for _, s := range summaries {
		if !s.Encrypted {
			continue
		}
		entry, err := ks.Load(s.Network)
		if errors.Is(err, keystore.ErrLocked) {
			return fmt.Errorf("%w: %s record is encrypted, set keystore.encrypt", ErrKeystoreLocked, s.Network)
		}
		if err != nil {
			if errors.Is(err, keystore.ErrCorrupt) {
				continue
			}
			return fmt.Errorf("%w: %s: %v", ErrKeystoreLocked, s.Network, err)
		}
		wallet.Zero(entry.Secret)
	}
	return nil
}
