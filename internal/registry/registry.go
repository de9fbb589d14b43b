// Package registry holds at most one active identity per network and
// mediates every operation on it.
//
// Each network slot has its own single-holder lock. Generate, import,
// account listing and signing for a network run one at a time, so a sign
// observes either the identity before a replacement or the one after it,
// never a mix. Waiting for a slot honours context cancellation.
//
// Replacements are persisted before they become visible: if the store
// write fails the slot keeps its previous identity and the caller gets
// wallet.ErrPersistence.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Klingon-tech/klingnet-keycore/internal/keystore"
	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
)

// Store persists identities. *keystore.Keystore implements it.
type Store interface {
	Save(id *wallet.Identity) error
	Load(network wallet.Network) (*keystore.Entry, error)
}

// Wallet is the public view of an identity returned by create and import.
// PrivateKey is in the network's export form.
type Wallet struct {
	Network    wallet.Network
	Address    string
	Mnemonic   string
	PrivateKey any
}

type slot struct {
	provider  wallet.Provider
	submitter wallet.Submitter

	sem *semaphore.Weighted
	// id is guarded by sem.
	id *wallet.Identity
}

// Registry is an isolated set of network slots.
type Registry struct {
	store Store

	mu    sync.RWMutex
	slots map[wallet.Network]*slot
}

// New creates an empty registry backed by store.
func New(store Store) *Registry {
	return &Registry{
		store: store,
		slots: make(map[wallet.Network]*slot),
	}
}

// Register binds a provider, and optionally a submitter, to its network.
// It must be called before Load.
func (r *Registry) Register(p wallet.Provider, sub wallet.Submitter) error {
	n := p.Network()
	if !n.Valid() {
		return fmt.Errorf("register: %w", wallet.ErrUnknownNetwork)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[n]; ok {
		return fmt.Errorf("register: %s already has a provider", n)
	}
	r.slots[n] = &slot{
		provider:  p,
		submitter: sub,
		sem:       semaphore.NewWeighted(1),
	}
	return nil
}

// Networks returns the registered networks in stable order.
func (r *Registry) Networks() []wallet.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []wallet.Network
	for _, n := range wallet.Networks() {
		if _, ok := r.slots[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (r *Registry) slot(n wallet.Network) (*slot, error) {
	r.mu.RLock()
	s, ok := r.slots[n]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no provider for %s", wallet.ErrUnsupported, n)
	}
	return s, nil
}

// withSlot runs fn holding the network's slot lock.
func (r *Registry) withSlot(ctx context.Context, n wallet.Network, fn func(s *slot) error) error {
	s, err := r.slot(n)
	if err != nil {
		return err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn(s)
}

// Load hydrates every registered slot from the store concurrently. A
// missing record leaves the slot Empty. Records that cannot be read are
// logged, leave their slot Empty, and are reported in the combined error;
// the other slots still load.
func (r *Registry) Load(ctx context.Context) error {
	networks := r.Networks()
	errs := make([]error, len(networks))

	var g errgroup.Group
	for i, n := range networks {
		g.Go(func() error {
			errs[i] = r.withSlot(ctx, n, func(s *slot) error {
				return r.hydrate(n, s)
			})
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func (r *Registry) hydrate(n wallet.Network, s *slot) error {
	logger := log.WithNetwork("registry", n.String())

	entry, err := r.store.Load(n)
	if errors.Is(err, keystore.ErrNotFound) {
		logger.Debug().Msg("No stored identity")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("Stored identity could not be read, slot stays empty")
		return fmt.Errorf("%w: load %s: %v", wallet.ErrPersistence, n, err)
	}
	defer wallet.Zero(entry.Secret)

	id, err := s.provider.Restore(entry.Secret, entry.Mnemonic)
	if err != nil {
		logger.Error().Err(err).Msg("Stored identity is invalid, slot stays empty")
		return fmt.Errorf("%w: restore %s: %v", wallet.ErrPersistence, n, err)
	}
	if entry.Address != id.Address() {
		logger.Warn().
			Str("stored", entry.Address).
			Str("derived", id.Address()).
			Msg("Stored address disagrees with key, using derived address")
	}

	s.id = id
	logger.Info().
		Str("address", id.Address()).
		Str("fingerprint", id.Fingerprint()).
		Msg("Identity loaded")
	return nil
}

// replace persists id and makes it the slot's active identity. On failure
// the slot is left untouched and id is wiped. ctx is checked once more
// before the write; past that point the replacement runs to completion.
func (r *Registry) replace(ctx context.Context, n wallet.Network, s *slot, id *wallet.Identity) (*Wallet, error) {
	secret, err := s.provider.ExportSecret(id)
	if err != nil {
		id.Wipe()
		return nil, fmt.Errorf("export secret: %w", err)
	}
	if err := ctx.Err(); err != nil {
		id.Wipe()
		return nil, err
	}

	if err := r.store.Save(id); err != nil {
		id.Wipe()
		log.Registry.Error().Err(err).Str("network", n.String()).Msg("Persist failed, active identity unchanged")
		return nil, fmt.Errorf("%w: %v", wallet.ErrPersistence, err)
	}

	old := s.id
	s.id = id
	if old != nil {
		old.Wipe()
	}

	log.Registry.Info().
		Str("network", n.String()).
		Str("address", id.Address()).
		Str("fingerprint", id.Fingerprint()).
		Bool("replaced", old != nil).
		Msg("Identity activated")

	return &Wallet{
		Network:    n,
		Address:    id.Address(),
		Mnemonic:   id.Mnemonic(),
		PrivateKey: secret,
	}, nil
}

// Create generates a fresh identity for n and makes it active.
func (r *Registry) Create(ctx context.Context, n wallet.Network) (*Wallet, error) {
	var out *Wallet
	err := r.withSlot(ctx, n, func(s *slot) error {
		id, err := s.provider.Generate()
		if err != nil {
			return err
		}
		out, err = r.replace(ctx, n, s, id)
		return err
	})
	return out, err
}

// Import parses repr with n's provider and makes the result active. An
// invalid repr leaves the slot and the store untouched.
func (r *Registry) Import(ctx context.Context, n wallet.Network, repr string) (*Wallet, error) {
	var out *Wallet
	err := r.withSlot(ctx, n, func(s *slot) error {
		id, err := s.provider.Import(repr)
		if err != nil {
			return err
		}
		out, err = r.replace(ctx, n, s, id)
		return err
	})
	return out, err
}

// Accounts returns the active address as a one-element list, or an empty
// list when the slot is Empty.
func (r *Registry) Accounts(ctx context.Context, n wallet.Network) ([]string, error) {
	out := []string{}
	err := r.withSlot(ctx, n, func(s *slot) error {
		if s.id != nil {
			out = append(out, s.id.Address())
		}
		return nil
	})
	return out, err
}

// Sign signs txData with n's active identity. It never broadcasts and
// never writes to the store.
func (r *Registry) Sign(ctx context.Context, n wallet.Network, txData json.RawMessage) (*wallet.SignedTx, error) {
	var out *wallet.SignedTx
	err := r.withSlot(ctx, n, func(s *slot) error {
		if s.id == nil {
			return fmt.Errorf("%w: %s", wallet.ErrNoActiveIdentity, n)
		}
		signed, err := s.provider.Sign(ctx, s.id, txData)
		if err != nil {
			return err
		}
		out = signed
		return nil
	})
	return out, err
}

// Submit broadcasts a signed transaction on its network. It does not
// take the slot lock: the transaction is already bound to its key.
func (r *Registry) Submit(ctx context.Context, tx *wallet.SignedTx) (*wallet.Receipt, error) {
	s, err := r.slot(tx.Network)
	if err != nil {
		return nil, err
	}
	if s.submitter == nil {
		return nil, fmt.Errorf("%w: %s transactions are not submitted by this core", wallet.ErrUnsupported, tx.Network)
	}
	return s.submitter.Submit(ctx, tx)
}

// CanSubmit reports whether n has a submitter.
func (r *Registry) CanSubmit(n wallet.Network) bool {
	s, err := r.slot(n)
	return err == nil && s.submitter != nil
}
