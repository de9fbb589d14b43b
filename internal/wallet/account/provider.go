// Package account implements the wallet capability for the account-based
// chain (Ethereum): secp256k1 keys, Keccak addresses and EIP-155 / EIP-1559
// transaction signing.
package account

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
)

// KeySize is the length of a private scalar in bytes.
const KeySize = 32

// DefaultChainID is Ethereum mainnet.
const DefaultChainID = 1

// Provider is the account-based wallet.Provider.
type Provider struct {
	chainID *big.Int
}

// New creates a provider that signs for chainID when a request carries
// no chain id of its own. A zero chainID selects DefaultChainID.
func New(chainID uint64) *Provider {
	if chainID == 0 {
		chainID = DefaultChainID
	}
	return &Provider{chainID: new(big.Int).SetUint64(chainID)}
}

// Network implements wallet.Provider.
func (p *Provider) Network() wallet.Network { return wallet.AccountBased }

// ChainID returns the default chain id.
func (p *Provider) ChainID() *big.Int { return new(big.Int).Set(p.chainID) }

// Generate creates a 12-word mnemonic and derives the key at
// m/44'/60'/0'/0/0 from it.
func (p *Provider) Generate() (*wallet.Identity, error) {
	mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		return nil, err
	}
	return p.FromMnemonic(mnemonic, "")
}

// FromMnemonic derives the first account of a BIP-39 mnemonic.
func (p *Provider) FromMnemonic(mnemonic, passphrase string) (*wallet.Identity, error) {
	seed, err := wallet.SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrInvalidKeyFormat, err)
	}
	defer wallet.Zero(seed)

	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrGeneration, err)
	}
	key, err := master.DeriveAccountKey(0, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrGeneration, err)
	}
	secret := key.PrivateKeyBytes()
	defer wallet.Zero(secret)

	return p.Restore(secret, mnemonic)
}

// Import parses a hex private key, with or without a 0x prefix.
// The identity carries no mnemonic.
func (p *Provider) Import(repr string) (*wallet.Identity, error) {
	s := strings.TrimSpace(repr)
	if s == "" {
		return nil, fmt.Errorf("%w: empty private key", wallet.ErrInvalidKeyFormat)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != KeySize*2 {
		return nil, fmt.Errorf("%w: private key must be %d hex characters, got %d",
			wallet.ErrInvalidKeyFormat, KeySize*2, len(s))
	}
	secret, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex", wallet.ErrInvalidKeyFormat)
	}
	defer wallet.Zero(secret)

	return p.Restore(secret, "")
}

// Restore rebuilds an identity from a 32-byte scalar.
func (p *Provider) Restore(secret []byte, mnemonic string) (*wallet.Identity, error) {
	addr, err := addressOf(secret)
	if err != nil {
		return nil, err
	}
	return wallet.NewIdentity(wallet.AccountBased, secret, addr, mnemonic), nil
}

// PublicIdentity implements wallet.Provider.
func (p *Provider) PublicIdentity(id *wallet.Identity) (string, error) {
	var addr string
	err := id.WithSecret(func(secret []byte) error {
		a, err := addressOf(secret)
		addr = a
		return err
	})
	return addr, err
}

// ExportSecret returns the private key as a 0x-prefixed hex string.
func (p *Provider) ExportSecret(id *wallet.Identity) (any, error) {
	var out string
	err := id.WithSecret(func(secret []byte) error {
		out = hexutil.Encode(secret)
		return nil
	})
	return out, err
}

// Sign builds and signs the transaction described by txData. Signatures
// use RFC 6979 nonces, so identical requests yield identical output.
func (p *Provider) Sign(ctx context.Context, id *wallet.Identity, txData json.RawMessage) (*wallet.SignedTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := ParseTxRequest(txData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}
	if req.From != "" && !strings.EqualFold(req.From, id.Address()) {
		return nil, fmt.Errorf("%w: from %s does not match active account %s",
			wallet.ErrSigning, req.From, id.Address())
	}
	tx, chainID, err := req.Build(p.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}

	var signed *types.Transaction
	err = id.WithSecret(func(secret []byte) error {
		key, err := crypto.ToECDSA(secret)
		if err != nil {
			return err
		}
		defer zeroKey(key)
		signed, err = types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
		return err
	})
	if errors.Is(err, wallet.ErrNoActiveIdentity) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", wallet.ErrSigning, err)
	}

	log.Provider.Debug().
		Str("network", wallet.AccountBased.String()).
		Str("fingerprint", id.Fingerprint()).
		Str("hash", signed.Hash().Hex()).
		Uint8("tx_type", signed.Type()).
		Msg("Transaction signed")

	return &wallet.SignedTx{
		Network:   wallet.AccountBased,
		Raw:       raw,
		Signature: hexutil.Encode(raw),
		Hash:      signed.Hash().Hex(),
	}, nil
}

// addressOf validates a private scalar and returns its checksummed address.
func addressOf(secret []byte) (string, error) {
	if len(secret) != KeySize {
		return "", fmt.Errorf("%w: private key must be %d bytes, got %d",
			wallet.ErrInvalidKeyFormat, KeySize, len(secret))
	}
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(secret)
	defer scalar.Zero()
	if overflow || scalar.IsZero() {
		return "", fmt.Errorf("%w: private key out of curve range", wallet.ErrInvalidKeyFormat)
	}

	key, err := crypto.ToECDSA(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", wallet.ErrInvalidKeyFormat, err)
	}
	defer zeroKey(key)
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func zeroKey(k *ecdsa.PrivateKey) {
	if k != nil && k.D != nil {
		k.D.SetInt64(0)
	}
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
