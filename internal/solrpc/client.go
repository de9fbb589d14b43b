// Package solrpc wraps the solana-go JSON-RPC client with the calls the
// keypair wallet needs: blockhash lookup, submission and confirmation polling.
package solrpc

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// DefaultEndpoint is the public mainnet endpoint.
const DefaultEndpoint = rpc.MainNetBeta_RPC

const defaultTimeout = 15 * time.Second

// RPCError is the error a node returns in a JSON-RPC error object.
type RPCError = jsonrpc.RPCError

// Client talks to one keypair-chain RPC endpoint.
type Client struct {
	endpoint string
	rpc      *rpc.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, defaultTimeout)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rpcClient := jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &Client{
		endpoint: endpoint,
		rpc:      rpc.NewWithCustomRPCClient(rpcClient),
	}
}

// Endpoint returns the URL the client talks to.
func (c *Client) Endpoint() string { return c.endpoint }
