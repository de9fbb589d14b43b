package wallet

import (
	"fmt"
	"strings"
)

// Network identifies a ledger model and the signing algorithm bound to it.
type Network uint8

const (
	// AccountBased is the secp256k1 account chain (Ethereum).
	AccountBased Network = iota + 1
	// KeypairBased is the Ed25519 keypair chain (Solana).
	KeypairBased
)

// Networks lists every supported network in a stable order.
func Networks() []Network {
	return []Network{AccountBased, KeypairBased}
}

// String returns the wire tag of the network.
func (n Network) String() string {
	switch n {
	case AccountBased:
		return "AccountBased"
	case KeypairBased:
		return "KeypairBased"
	default:
		return fmt.Sprintf("Network(%d)", uint8(n))
	}
}

// Chain returns the concrete chain name the network is served by.
func (n Network) Chain() string {
	switch n {
	case AccountBased:
		return "Ethereum"
	case KeypairBased:
		return "Solana"
	default:
		return ""
	}
}

// StorageKey is the persistence key of the network's identity record.
func (n Network) StorageKey() string {
	switch n {
	case AccountBased:
		return "ethereumWallet"
	case KeypairBased:
		return "solanaWallet"
	default:
		return ""
	}
}

// Valid reports whether n is a supported network.
func (n Network) Valid() bool {
	return n == AccountBased || n == KeypairBased
}

// ParseNetwork accepts either the abstract tag or the chain name,
// case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accountbased", "ethereum", "eth":
		return AccountBased, nil
	case "keypairbased", "solana", "sol":
		return KeypairBased, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (n Network) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNetwork, uint8(n))
	}
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Network) UnmarshalText(b []byte) error {
	v, err := ParseNetwork(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}
