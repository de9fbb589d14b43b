package solrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Commitment is a confirmation level of the keypair chain.
type Commitment string

// Commitment levels, weakest first.
const (
	Processed Commitment = Commitment(rpc.CommitmentProcessed)
	Confirmed Commitment = Commitment(rpc.CommitmentConfirmed)
	Finalized Commitment = Commitment(rpc.CommitmentFinalized)
)

// Valid reports whether c is a known commitment level.
func (c Commitment) Valid() bool {
	return c.rank() > 0
}

func (c Commitment) rank() int {
	switch c {
	case Processed:
		return 1
	case Confirmed:
		return 2
	case Finalized:
		return 3
	}
	return 0
}

// Reaches reports whether status c satisfies the target level.
func (c Commitment) Reaches(target Commitment) bool {
	return c.rank() > 0 && c.rank() >= target.rank()
}

// ErrTransactionFailed is returned when a transaction landed with an error.
var ErrTransactionFailed = errors.New("transaction failed on chain")

// Blockhash is a recent blockhash and the last block height it is valid for.
type Blockhash struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// LatestBlockhash calls getLatestBlockhash.
func (c *Client) LatestBlockhash(ctx context.Context, commitment Commitment) (*Blockhash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentType(commitment))
	if err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	if out == nil || out.Value == nil || out.Value.Blockhash == (solana.Hash{}) {
		return nil, errors.New("getLatestBlockhash: empty blockhash")
	}
	return &Blockhash{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// SendTransaction submits a wire transaction and returns the signature the
// node reports.
func (c *Client) SendTransaction(ctx context.Context, raw []byte, preflight Commitment) (string, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentType(preflight),
	})
	if err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	return sig.String(), nil
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	Err                any
	ConfirmationStatus Commitment
}

// Failed reports whether the transaction executed with an error.
func (s *SignatureStatus) Failed() bool {
	return s.Err != nil
}

// SignatureStatuses calls getSignatureStatuses with history search enabled.
// Unknown signatures yield nil entries.
func (c *Client) SignatureStatuses(ctx context.Context, sigs ...string) ([]*SignatureStatus, error) {
	parsed := make([]solana.Signature, len(sigs))
	for i, s := range sigs {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", s, err)
		}
		parsed[i] = sig
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, parsed...)
	if err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if out == nil || len(out.Value) != len(sigs) {
		got := 0
		if out != nil {
			got = len(out.Value)
		}
		return nil, fmt.Errorf("getSignatureStatuses: got %d statuses for %d signatures", got, len(sigs))
	}

	statuses := make([]*SignatureStatus, len(out.Value))
	for i, v := range out.Value {
		if v == nil {
			continue
		}
		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			Confirmations:      v.Confirmations,
			Err:                v.Err,
			ConfirmationStatus: Commitment(v.ConfirmationStatus),
		}
	}
	return statuses, nil
}

// WaitForConfirmation polls the signature status every interval until it
// reaches target, fails on chain, or ctx is done.
func (c *Client) WaitForConfirmation(ctx context.Context, sig string, target Commitment, interval time.Duration) (*SignatureStatus, error) {
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return nil, fmt.Errorf("signature %q: %w", sig, err)
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		statuses, err := c.SignatureStatuses(ctx, sig)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil && statuses[0] != nil {
			st := statuses[0]
			if st.Failed() {
				return st, fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			}
			if st.ConfirmationStatus.Reaches(target) {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
