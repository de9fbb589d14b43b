// Package router maps request envelopes onto registry operations and
// registry results onto response envelopes. Every request gets exactly one
// response, including unknown operations, panics and timeouts.
package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/registry"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/keypair"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// Registry is the set of operations the router dispatches to.
// *registry.Registry implements it.
type Registry interface {
	Create(ctx context.Context, n wallet.Network) (*registry.Wallet, error)
	Import(ctx context.Context, n wallet.Network, repr string) (*registry.Wallet, error)
	Accounts(ctx context.Context, n wallet.Network) ([]string, error)
	Sign(ctx context.Context, n wallet.Network, txData json.RawMessage) (*wallet.SignedTx, error)
	Submit(ctx context.Context, tx *wallet.SignedTx) (*wallet.Receipt, error)
	CanSubmit(n wallet.Network) bool
}

// Router dispatches requests.
type Router struct {
	reg     Registry
	timeout time.Duration
	metrics *Metrics
	logger  zerolog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(rt *Router) {
		if d > 0 {
			rt.timeout = d
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// New creates a router over reg.
func New(reg Registry, opts ...Option) *Router {
	rt := &Router{
		reg:     reg,
		timeout: DefaultTimeout,
		logger:  log.Router,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handle runs req to completion, or until the request deadline, and
// returns its response. It never returns nil. Identity replacements are
// not abandoned once the registry has started persisting them.
func (rt *Router) Handle(ctx context.Context, req *Request) *Response {
	reqID := uuid.NewString()
	done := rt.metrics.begin()

	ctx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	ch := make(chan *Response, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				rt.logger.Error().
					Str("request_id", reqID).
					Interface("panic", p).
					Bytes("stack", debug.Stack()).
					Msg("Handler panicked")
				ch <- failure(req, CodeInternal, "internal error")
			}
		}()
		ch <- rt.dispatch(ctx, req)
	}()

	var resp *Response
	if replacesIdentity(req.Type) {
		// The registry gives up at the deadline until it starts persisting,
		// then finishes. Waiting here keeps the response in step with the
		// stored identity, so a late success still returns the new key.
		resp = <-ch
	} else {
		select {
		case resp = <-ch:
		case <-ctx.Done():
			resp = failure(req, CodeTimeout, fmt.Sprintf("%s: %v", req.Type, ctx.Err()))
		}
	}
	resp.RequestID = reqID
	resp.Type = req.Type

	network, op := metricLabels(req)
	done(network, op, resp.Code)
	ev := rt.logger.Debug()
	if !resp.Success {
		ev = rt.logger.Info()
	}
	ev.Str("request_id", reqID).
		Str("network", req.Network).
		Str("type", string(req.Type)).
		Bool("success", resp.Success).
		Str("code", resp.Code).
		Msg("Request handled")
	return resp
}

func (rt *Router) dispatch(ctx context.Context, req *Request) *Response {
	n, err := wallet.ParseNetwork(req.Network)
	if err != nil {
		return failure(req, CodeUnsupported, fmt.Sprintf("%s: unsupported network %q", req.Type, req.Network))
	}
	resp := &Response{Network: n.String()}

	switch req.Type {
	case CreateWallet:
		w, err := rt.reg.Create(ctx, n)
		if err != nil {
			return rt.fail(req, resp, err)
		}
		resp.Wallet = view(w)
		if n == wallet.KeypairBased {
			resp.Mnemonic = wallet.MnemonicUnavailable
		}

	case SignInWallet:
		if strings.TrimSpace(string(req.PrivateKey)) == "" {
			return rt.fail(req, resp, fmt.Errorf("%w: no private key provided", wallet.ErrInvalidKeyFormat))
		}
		w, err := rt.reg.Import(ctx, n, string(req.PrivateKey))
		if err != nil {
			return rt.fail(req, resp, err)
		}
		resp.Wallet = view(w)

	case GetAccounts:
		accounts, err := rt.reg.Accounts(ctx, n)
		if err != nil {
			return rt.fail(req, resp, err)
		}
		resp.Accounts = accounts

	case SignTransaction:
		return rt.signTransaction(ctx, req, resp, n)

	case SubmitTransaction:
		return rt.submitTransaction(ctx, req, resp, n)

	default:
		return rt.fail(req, resp, fmt.Errorf("%w: %q on %s", wallet.ErrUnsupported, req.Type, n))
	}

	resp.Success = true
	return resp
}

// signTransaction signs, and on networks with a submitter also submits
// unless txData.signOnly is set. Status tells the two outcomes apart.
func (rt *Router) signTransaction(ctx context.Context, req *Request, resp *Response, n wallet.Network) *Response {
	signed, err := rt.reg.Sign(ctx, n, req.TxData)
	if err != nil {
		return rt.fail(req, resp, err)
	}
	resp.Signature = signed.Signature
	resp.Hash = signed.Hash
	resp.Status = wallet.StatusSigned

	if !rt.reg.CanSubmit(n) {
		resp.Success = true
		return resp
	}
	resp.RawTransaction = base64.StdEncoding.EncodeToString(signed.Raw)
	if signOnly(req.TxData) {
		resp.Success = true
		return resp
	}

	// On failure the signed transaction stays in the response so the
	// caller can retry with SUBMIT_TRANSACTION instead of re-signing.
	receipt, err := rt.reg.Submit(ctx, signed)
	if err != nil {
		return rt.fail(req, resp, err)
	}
	applyReceipt(resp, receipt)
	resp.Success = true
	return resp
}

func (rt *Router) submitTransaction(ctx context.Context, req *Request, resp *Response, n wallet.Network) *Response {
	if !rt.reg.CanSubmit(n) {
		return rt.fail(req, resp, fmt.Errorf("%w: %s transactions are broadcast by the caller", wallet.ErrUnsupported, n))
	}
	var body struct {
		RawTransaction string `json:"rawTransaction"`
	}
	if len(req.TxData) > 0 {
		if err := json.Unmarshal(req.TxData, &body); err != nil {
			return rt.fail(req, resp, fmt.Errorf("%w: decode txData: %v", wallet.ErrSubmission, err))
		}
	}
	raw, err := base64.StdEncoding.DecodeString(body.RawTransaction)
	if err != nil || len(raw) == 0 {
		return rt.fail(req, resp, fmt.Errorf("%w: txData.rawTransaction must be base64", wallet.ErrSubmission))
	}
	signed, err := keypair.ParseSigned(raw)
	if err != nil {
		return rt.fail(req, resp, err)
	}
	resp.Signature = signed.Signature
	resp.Hash = signed.Hash

	receipt, err := rt.reg.Submit(ctx, signed)
	if err != nil {
		return rt.fail(req, resp, err)
	}
	applyReceipt(resp, receipt)
	resp.Success = true
	return resp
}

func replacesIdentity(op OpType) bool {
	return op == CreateWallet || op == SignInWallet
}

// metricLabels bounds label values to the known networks and operations.
func metricLabels(req *Request) (string, OpType) {
	network := "unknown"
	if n, err := wallet.ParseNetwork(req.Network); err == nil {
		network = n.String()
	}
	switch req.Type {
	case CreateWallet, SignInWallet, GetAccounts, SignTransaction, SubmitTransaction:
		return network, req.Type
	}
	return network, "unsupported"
}

func applyReceipt(resp *Response, r *wallet.Receipt) {
	resp.Signature = r.Signature
	resp.Status = r.Status
	resp.Slot = r.Slot
	resp.Replayed = r.Replayed
}

func signOnly(txData json.RawMessage) bool {
	var flags struct {
		SignOnly bool `json:"signOnly"`
	}
	_ = json.Unmarshal(txData, &flags)
	return flags.SignOnly
}

func view(w *registry.Wallet) *WalletView {
	return &WalletView{
		PrivateKey: w.PrivateKey,
		Address:    w.Address,
		Mnemonic:   w.Mnemonic,
	}
}

func (rt *Router) fail(req *Request, resp *Response, err error) *Response {
	code := CodeFor(err)
	resp.Success = false
	resp.Code = code
	resp.Error = fmt.Sprintf("%s: %v", req.Type, err)
	if code == CodeInternal {
		rt.logger.Error().Err(err).Str("type", string(req.Type)).Msg("Unclassified error")
	}
	return resp
}

func failure(req *Request, code, msg string) *Response {
	return &Response{Network: req.Network, Code: code, Error: msg}
}

// CodeFor classifies an error into a response code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeTimeout
	case errors.Is(err, wallet.ErrNoActiveIdentity):
		return CodeNoActiveIdentity
	case errors.Is(err, wallet.ErrInvalidKeyFormat):
		return CodeInvalidKeyFormat
	case errors.Is(err, wallet.ErrGeneration):
		return CodeGeneration
	case errors.Is(err, wallet.ErrPersistence):
		return CodePersistence
	case errors.Is(err, wallet.ErrSubmission):
		return CodeSubmission
	case errors.Is(err, wallet.ErrSigning):
		return CodeSigning
	case errors.Is(err, wallet.ErrUnsupported), errors.Is(err, wallet.ErrUnknownNetwork):
		return CodeUnsupported
	default:
		return CodeInternal
	}
}
