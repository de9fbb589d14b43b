package keypair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
)

// Node is the part of the chain RPC the submitter needs.
type Node interface {
	SendTransaction(ctx context.Context, raw []byte, preflight solrpc.Commitment) (string, error)
	WaitForConfirmation(ctx context.Context, sig string, target solrpc.Commitment, interval time.Duration) (*solrpc.SignatureStatus, error)
}

// SubmitterConfig tunes confirmation waiting.
type SubmitterConfig struct {
	Commitment     solrpc.Commitment
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// CacheSize is the number of confirmed signatures remembered.
	CacheSize int
}

// DefaultSubmitterConfig returns the defaults used by the daemon.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		Commitment:     solrpc.Confirmed,
		ConfirmTimeout: 45 * time.Second,
		PollInterval:   500 * time.Millisecond,
		CacheSize:      1024,
	}
}

// Submitter broadcasts signed transfers and waits for confirmation.
//
// Submissions are keyed by transaction signature: concurrent submits of
// the same transaction share one network round-trip, and a signature that
// already confirmed is answered from cache without being resent.
type Submitter struct {
	node  Node
	cfg   SubmitterConfig
	group singleflight.Group
	done  *lru.Cache[string, wallet.Receipt]
}

// NewSubmitter creates a submitter backed by node.
func NewSubmitter(node Node, cfg SubmitterConfig) (*Submitter, error) {
	def := DefaultSubmitterConfig()
	if !cfg.Commitment.Valid() {
		cfg.Commitment = def.Commitment
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	cache, err := lru.New[string, wallet.Receipt](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create receipt cache: %w", err)
	}
	return &Submitter{node: node, cfg: cfg, done: cache}, nil
}

// Submit implements wallet.Submitter.
func (s *Submitter) Submit(ctx context.Context, tx *wallet.SignedTx) (*wallet.Receipt, error) {
	if tx == nil || tx.Network != wallet.KeypairBased {
		return nil, fmt.Errorf("%w: submitter only accepts %s transactions",
			wallet.ErrUnsupported, wallet.KeypairBased)
	}
	if r, ok := s.done.Get(tx.Signature); ok {
		r.Replayed = true
		return &r, nil
	}

	// The shared work is detached from any single caller; each caller
	// stops waiting on its own context. Only the caller whose function
	// runs has sent anything.
	var sent bool
	ch := s.group.DoChan(tx.Signature, func() (any, error) {
		sent = true
		return s.submit(context.WithoutCancel(ctx), tx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		r := res.Val.(wallet.Receipt)
		r.Replayed = !sent
		return &r, nil
	}
}

func (s *Submitter) submit(ctx context.Context, tx *wallet.SignedTx) (wallet.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	logger := log.WithNetwork("submitter", wallet.KeypairBased.String())

	sig, err := s.node.SendTransaction(ctx, tx.Raw, s.cfg.Commitment)
	switch {
	case err != nil && alreadyProcessed(err):
		logger.Info().Str("signature", tx.Signature).Msg("Transaction already processed, waiting for status")
		sig = tx.Signature
	case err != nil:
		return wallet.Receipt{}, fmt.Errorf("%w: %v", wallet.ErrSubmission, err)
	case sig != tx.Signature:
		logger.Warn().
			Str("expected", tx.Signature).
			Str("reported", sig).
			Msg("Node reported a different signature")
		sig = tx.Signature
	}

	st, err := s.node.WaitForConfirmation(ctx, sig, s.cfg.Commitment, s.cfg.PollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return wallet.Receipt{}, fmt.Errorf("%w: not confirmed within %s", wallet.ErrSubmission, s.cfg.ConfirmTimeout)
		}
		return wallet.Receipt{}, fmt.Errorf("%w: %v", wallet.ErrSubmission, err)
	}

	status := wallet.StatusConfirmed
	if st.ConfirmationStatus == solrpc.Finalized {
		status = wallet.StatusFinalized
	}
	r := wallet.Receipt{Signature: sig, Status: status, Slot: st.Slot}
	s.done.Add(sig, r)

	logger.Info().
		Str("signature", sig).
		Str("status", status).
		Uint64("slot", st.Slot).
		Msg("Transaction confirmed")
	return r, nil
}

// alreadyProcessed matches the preflight rejection of a duplicate.
func alreadyProcessed(err error) bool {
	var rpcErr *solrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	if rpcErr.Data != nil {
		msg += strings.ToLower(fmt.Sprint(rpcErr.Data))
	}
	return strings.Contains(msg, "already been processed") || strings.Contains(msg, "alreadyprocessed")
}
