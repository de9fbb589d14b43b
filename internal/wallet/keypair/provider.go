// Package keypair implements the wallet capability for the keypair chain
// (Solana): Ed25519 keys, base58 addresses and native SOL transfers.
//
// Signing and broadcasting are separate steps. Provider.Sign only builds
// and signs a transfer; Submitter sends it and waits for confirmation.
package keypair

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
	"github.com/Klingon-tech/klingnet-keycore/pkg/units"
)

// SecretKeySize is the length of a secret key: 32-byte seed || 32-byte public key.
const SecretKeySize = ed25519.PrivateKeySize

// BlockhashSource supplies the recent blockhash a transaction is bound to.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context, commitment solrpc.Commitment) (*solrpc.Blockhash, error)
}

// Provider is the keypair-chain wallet.Provider.
type Provider struct {
	blockhashes BlockhashSource
	commitment  solrpc.Commitment
	rand        io.Reader
}

// New creates a provider that fetches blockhashes from src at the given
// commitment level.
func New(src BlockhashSource, commitment solrpc.Commitment) *Provider {
	if !commitment.Valid() {
		commitment = solrpc.Finalized
	}
	return &Provider{blockhashes: src, commitment: commitment, rand: rand.Reader}
}

// Network implements wallet.Provider.
func (p *Provider) Network() wallet.Network { return wallet.KeypairBased }

// Generate creates a keypair from the CSPRNG. There is no mnemonic path.
func (p *Provider) Generate() (*wallet.Identity, error) {
	_, priv, err := ed25519.GenerateKey(p.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrGeneration, err)
	}
	defer wallet.Zero(priv)
	return p.Restore(priv, wallet.MnemonicUnavailable)
}

// Import parses a secret key given as comma-separated decimal bytes,
// optionally wrapped in brackets: "12,34,..." or "[12, 34, ...]".
func (p *Provider) Import(repr string) (*wallet.Identity, error) {
	secret, err := ParseSecretKey(repr)
	if err != nil {
		return nil, err
	}
	defer wallet.Zero(secret)
	return p.Restore(secret, wallet.MnemonicUnavailable)
}

// ParseSecretKey decodes the comma-separated byte list form of a secret key.
func ParseSecretKey(repr string) ([]byte, error) {
	s := strings.TrimSpace(repr)
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"))
	if s == "" {
		return nil, fmt.Errorf("%w: empty secret key", wallet.ErrInvalidKeyFormat)
	}
	tokens := strings.Split(s, ",")
	if len(tokens) != SecretKeySize {
		return nil, fmt.Errorf("%w: secret key must have %d bytes, got %d",
			wallet.ErrInvalidKeyFormat, SecretKeySize, len(tokens))
	}
	out := make([]byte, SecretKeySize)
	for i, tok := range tokens {
		v, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
		if err != nil {
			wallet.Zero(out)
			return nil, fmt.Errorf("%w: byte %d is not a value in 0-255", wallet.ErrInvalidKeyFormat, i)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// Restore rebuilds an identity from a 64-byte secret key. The trailing
// public half must match the one derived from the seed.
func (p *Provider) Restore(secret []byte, mnemonic string) (*wallet.Identity, error) {
	addr, err := addressOf(secret)
	if err != nil {
		return nil, err
	}
	if mnemonic == "" {
		mnemonic = wallet.MnemonicUnavailable
	}
	return wallet.NewIdentity(wallet.KeypairBased, secret, addr, mnemonic), nil
}

func addressOf(secret []byte) (string, error) {
	if len(secret) != SecretKeySize {
		return "", fmt.Errorf("%w: secret key must be %d bytes, got %d",
			wallet.ErrInvalidKeyFormat, SecretKeySize, len(secret))
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	defer wallet.Zero(derived)
	pub := derived[ed25519.SeedSize:]
	if !ed25519.PublicKey(pub).Equal(ed25519.PublicKey(secret[ed25519.SeedSize:])) {
		return "", fmt.Errorf("%w: public key does not match seed", wallet.ErrInvalidKeyFormat)
	}
	return solana.PublicKeyFromBytes(pub).String(), nil
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

// ExportSecret returns the secret key as a list of byte values, the form
// Import accepts and wallets display.
func (p *Provider) ExportSecret(id *wallet.Identity) (any, error) {
	var out []int
	err := id.WithSecret(func(secret []byte) error {
		out = make([]int, len(secret))
		for i, b := range secret {
			out[i] = int(b)
		}
		return nil
	})
	return out, err
}

// TxRequest is the sign payload for the keypair chain.
type TxRequest struct {
	From     string       `json:"from,omitempty"`
	To       string       `json:"to"`
	Amount   units.Amount `json:"amount"`
	SignOnly bool         `json:"signOnly,omitempty"`
}

// ParseTxRequest decodes a sign payload.
func ParseTxRequest(raw json.RawMessage) (*TxRequest, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("missing transaction data")
	}
	var req TxRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode transaction data: %w", err)
	}
	return &req, nil
}

// DecodeAddress decodes a base58 public key.
func DecodeAddress(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return pk, nil
}

// Sign builds a system-program transfer of txData.amount SOL to txData.to,
// bound to a fresh blockhash, and signs it. Nothing is broadcast.
func (p *Provider) Sign(ctx context.Context, id *wallet.Identity, txData json.RawMessage) (*wallet.SignedTx, error) {
	req, err := ParseTxRequest(txData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}
	if req.From != "" && req.From != id.Address() {
		return nil, fmt.Errorf("%w: from %s does not match active account %s",
			wallet.ErrSigning, req.From, id.Address())
	}
	to, err := DecodeAddress(req.To)
	if err != nil {
		return nil, fmt.Errorf("%w: recipient: %v", wallet.ErrSigning, err)
	}
	lamports, err := req.Amount.ToMinorUint64(units.SolDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", wallet.ErrSigning, err)
	}
	from, err := DecodeAddress(id.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}

	if p.blockhashes == nil {
		return nil, fmt.Errorf("%w: no blockhash source configured", wallet.ErrSigning)
	}
	bh, err := p.blockhashes.LatestBlockhash(ctx, p.commitment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}

	tx, err := transferTx(from, to, lamports, bh.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("%w: build transfer: %v", wallet.ErrSigning, err)
	}
	err = id.WithSecret(func(secret []byte) error {
		key := solana.PrivateKey(secret)
		_, err := tx.Sign(func(signer solana.PublicKey) *solana.PrivateKey {
			if signer.Equals(from) {
				return &key
			}
			return nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSigning, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode transaction: %v", wallet.ErrSigning, err)
	}

	signature := tx.Signatures[0].String()
	log.Provider.Debug().
		Str("network", wallet.KeypairBased.String()).
		Str("fingerprint", id.Fingerprint()).
		Str("signature", signature).
		Uint64("lamports", lamports).
		Msg("Transfer signed")

	return &wallet.SignedTx{
		Network:   wallet.KeypairBased,
		Raw:       raw,
		Signature: signature,
		Hash:      signature,
	}, nil
}

// ParseSigned validates a wire transaction produced elsewhere (for example
// by an earlier sign-only call) and wraps it for submission. Every
// signature must verify against its signer.
func ParseSigned(raw []byte) (*wallet.SignedTx, error) {
	tx, err := decodeTransaction(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wallet.ErrSubmission, err)
	}
	sig := tx.Signatures[0].String()
	return &wallet.SignedTx{
		Network:   wallet.KeypairBased,
		Raw:       append([]byte(nil), raw...),
		Signature: sig,
		Hash:      sig,
	}, nil
}
