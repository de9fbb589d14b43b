package wallet

import (
	"context"
	"encoding/json"
)

// Provider implements the wallet capability for one network.
type Provider interface {
	// Network returns the network this provider serves.
	Network() Network

	// Generate creates an identity from fresh CSPRNG entropy.
	Generate() (*Identity, error)

	// Import parses the network's external secret representation.
	Import(repr string) (*Identity, error)

	// Restore rebuilds an identity from persisted secret bytes,
	// re-deriving the address.
	Restore(secret []byte, mnemonic string) (*Identity, error)

	// PublicIdentity derives the address from the identity's secret.
	PublicIdentity(id *Identity) (string, error)

	// ExportSecret returns the secret in its wire form (JSON-encodable).
	ExportSecret(id *Identity) (any, error)

	// Sign builds and signs the transaction described by txData.
	// It never broadcasts.
	Sign(ctx context.Context, id *Identity, txData json.RawMessage) (*SignedTx, error)
}

// Submitter broadcasts a signed transaction and waits for confirmation.
type Submitter interface {
	Submit(ctx context.Context, tx *SignedTx) (*Receipt, error)
}

// SignedTx is a signed, not yet submitted, transaction.
type SignedTx struct {
	Network Network
	// Raw is the serialized signed transaction.
	Raw []byte
	// Signature is the wire value returned to callers: the 0x-hex
	// serialized transaction (AccountBased) or the base58 transaction
	// signature (KeypairBased).
	Signature string
	// Hash identifies the transaction on its network.
	Hash string
}

// Status values of a submission.
const (
	StatusSigned    = "signed"
	StatusConfirmed = "confirmed"
	StatusFinalized = "finalized"
)

// Receipt describes a confirmed submission.
type Receipt struct {
	Signature string
	Status    string
	Slot      uint64
	// Replayed is set when this call sent nothing itself: the result came
	// from the idempotency cache or from a concurrent submission of the
	// same transaction.
	Replayed bool
}
