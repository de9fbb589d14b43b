// Package keystore persists one identity record per network. Records are
// stored under "<chain>Wallet" keys in a namespaced storage.DB; the secret
// payload is optionally sealed with a passphrase.
package keystore

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/storage"
	"github.com/Klingon-tech/klingnet-keycore/internal/vault"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
)

// Prefix namespaces keystore records in a shared database.
const Prefix = "keycore/"

// RecordVersion is the current record format.
const RecordVersion = 1

var (
	// ErrNotFound is returned when a network has no stored record.
	ErrNotFound = errors.New("keystore: no record")
	// ErrCorrupt is returned when a record fails to decode or its checksum
	// does not match.
	ErrCorrupt = errors.New("keystore: corrupt record")
	// ErrLocked is returned when a sealed record is read without a passphrase.
	ErrLocked = errors.New("keystore: record is encrypted and no passphrase is set")
)

// record is the stored JSON form.
type record struct {
	Version   int            `json:"version"`
	Network   wallet.Network `json:"network"`
	Address   string         `json:"address"`
	Encrypted bool           `json:"encrypted"`
	Payload   []byte         `json:"payload"`
	Checksum  string         `json:"checksum"`
	CreatedAt time.Time      `json:"created_at"`
}

// payload is the secret part of a record.
type payload struct {
	Secret   []byte `json:"secret"`
	Mnemonic string `json:"mnemonic,omitempty"`
}

// Entry is a decoded record. Callers own Secret and should zero it.
type Entry struct {
	Network   wallet.Network
	Address   string
	Secret    []byte
	Mnemonic  string
	Encrypted bool
	CreatedAt time.Time
}

// Summary describes a stored record without opening it.
type Summary struct {
	Network   wallet.Network
	Address   string
	Encrypted bool
	CreatedAt time.Time
}

// Keystore reads and writes identity records.
type Keystore struct {
	db         storage.DB
	passphrase []byte
	params     vault.Params
}

// Option configures a Keystore.
type Option func(*Keystore)

// WithPassphrase seals new records and opens sealed ones with passphrase.
func WithPassphrase(passphrase []byte) Option {
	return func(ks *Keystore) {
		ks.passphrase = append([]byte(nil), passphrase...)
	}
}

// WithParams overrides the Argon2id cost for new records.
func WithParams(p vault.Params) Option {
	return func(ks *Keystore) { ks.params = p }
}

// New creates a keystore over db, namespaced under Prefix.
func New(db storage.DB, opts ...Option) *Keystore {
	ks := &Keystore{
		db:     storage.NewPrefixDB(db, []byte(Prefix)),
		params: vault.DefaultParams(),
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

// Encrypted reports whether new records are sealed.
func (ks *Keystore) Encrypted() bool { return len(ks.passphrase) > 0 }

func checksum(b []byte) string {
	h := blake3.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Save overwrites the record of id's network.
func (ks *Keystore) Save(id *wallet.Identity) error {
	network := id.Network()
	if !network.Valid() {
		return fmt.Errorf("save: %w", wallet.ErrUnknownNetwork)
	}

	var body []byte
	err := id.WithSecret(func(secret []byte) error {
		b, err := json.Marshal(payload{Secret: secret, Mnemonic: id.Mnemonic()})
		body = b
		return err
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	defer wallet.Zero(body)

	rec := record{
		Version:   RecordVersion,
		Network:   network,
		Address:   id.Address(),
		CreatedAt: time.Now().UTC(),
	}
	if ks.Encrypted() {
		sealed, err := vault.Seal(body, ks.passphrase, ks.params)
		if err != nil {
			return fmt.Errorf("seal payload: %w", err)
		}
		rec.Payload = sealed
		rec.Encrypted = true
	} else {
		rec.Payload = append([]byte(nil), body...)
	}
	rec.Checksum = checksum(rec.Payload)

	data, err := json.Marshal(&rec)
	if !rec.Encrypted {
		wallet.Zero(rec.Payload)
	}
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	defer wallet.Zero(data)

	if err := ks.db.Put([]byte(network.StorageKey()), data); err != nil {
		return fmt.Errorf("write %s: %w", network.StorageKey(), err)
	}

	log.Keystore.Debug().
		Str("key", network.StorageKey()).
		Str("fingerprint", id.Fingerprint()).
		Bool("encrypted", rec.Encrypted).
		Msg("Record saved")
	return nil
}

func (ks *Keystore) read(network wallet.Network) (*record, error) {
	if !network.Valid() {
		return nil, fmt.Errorf("load: %w", wallet.ErrUnknownNetwork)
	}
	data, err := ks.db.Get([]byte(network.StorageKey()))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", network.StorageKey(), err)
	}
	defer wallet.Zero(data)
	return decodeRecord(network, data)
}

func decodeRecord(network wallet.Network, data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, network.StorageKey(), err)
	}
	if rec.Version != RecordVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, network.StorageKey(), rec.Version)
	}
	if rec.Network != network {
		return nil, fmt.Errorf("%w: %s holds a %s record", ErrCorrupt, network.StorageKey(), rec.Network)
	}
	if checksum(rec.Payload) != rec.Checksum {
		return nil, fmt.Errorf("%w: %s: checksum mismatch", ErrCorrupt, network.StorageKey())
	}
	return &rec, nil
}

// Load opens the record of network. It returns ErrNotFound when the
// network has never been saved.
func (ks *Keystore) Load(network wallet.Network) (*Entry, error) {
	rec, err := ks.read(network)
	if err != nil {
		return nil, err
	}

	body := rec.Payload
	if rec.Encrypted {
		if !ks.Encrypted() {
			return nil, ErrLocked
		}
		body, err = vault.Open(rec.Payload, ks.passphrase)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", network.StorageKey(), err)
		}
	}
	defer wallet.Zero(body)

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrCorrupt, network.StorageKey(), err)
	}
	return &Entry{
		Network:   network,
		Address:   rec.Address,
		Secret:    p.Secret,
		Mnemonic:  p.Mnemonic,
		Encrypted: rec.Encrypted,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// List summarizes every stored record without opening payloads, in
// network order. Keys in the namespace that belong to no network are
// skipped.
func (ks *Keystore) List() ([]Summary, error) {
	var out []Summary
	err := ks.db.ForEach(nil, func(key, value []byte) error {
		defer wallet.Zero(value)
		n, ok := networkForKey(string(key))
		if !ok {
			log.Keystore.Debug().Str("key", string(key)).Msg("Skipping unknown key")
			return nil
		}
		rec, err := decodeRecord(n, value)
		if err != nil {
			return err
		}
		out = append(out, Summary{
			Network:   rec.Network,
			Address:   rec.Address,
			Encrypted: rec.Encrypted,
			CreatedAt: rec.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b Summary) int { return cmp.Compare(a.Network, b.Network) })
	return out, nil
}

func networkForKey(key string) (wallet.Network, bool) {
	for _, n := range wallet.Networks() {
		if n.StorageKey() == key {
			return n, true
		}
	}
	return 0, false
}
