package wallet

import (
	"encoding/hex"
	"runtime"
	"sync"

	"github.com/zeebo/blake3"
)

// MnemonicUnavailable is reported for identities that were not derived
// from a recovery phrase.
const MnemonicUnavailable = "Not available"

// Identity is one network's key material plus its derived public address.
//
// The secret is owned by the Identity. It is only reachable through
// WithSecret, which lends it for the duration of a callback, and it is
// zeroed by Wipe when the identity is replaced.
type Identity struct {
	network  Network
	address  string
	mnemonic string

	mu     sync.RWMutex
	secret []byte
}

// NewIdentity builds an identity from secret material. The secret is
// copied; callers should wipe their own buffer afterwards.
func NewIdentity(network Network, secret []byte, address, mnemonic string) *Identity {
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Identity{
		network:  network,
		secret:   s,
		address:  address,
		mnemonic: mnemonic,
	}
}

// Network returns the network the identity is bound to.
func (id *Identity) Network() Network { return id.network }

// Address returns the cached public address.
func (id *Identity) Address() string { return id.address }

// Mnemonic returns the recovery phrase, "" or MnemonicUnavailable.
func (id *Identity) Mnemonic() string { return id.mnemonic }

// WithSecret lends the secret to fn. fn must not retain the slice.
func (id *Identity) WithSecret(fn func(secret []byte) error) error {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.secret == nil {
		return ErrNoActiveIdentity
	}
	return fn(id.secret)
}

// Fingerprint is a short, non-reversible tag for log lines.
func (id *Identity) Fingerprint() string {
	return Fingerprint(id.network, id.address)
}

// Wipe zeroes the secret. The identity is unusable afterwards.
func (id *Identity) Wipe() {
	id.mu.Lock()
	Zero(id.secret)
	id.secret = nil
	id.mu.Unlock()
}

// Fingerprint hashes a network-qualified address into a 16-hex-char tag.
func Fingerprint(network Network, address string) string {
	h := blake3.Sum256([]byte(network.String() + ":" + address))
	return hex.EncodeToString(h[:8])
}

// Zero overwrites b with zeros.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}
