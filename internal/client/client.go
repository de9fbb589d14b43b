// Package client talks to a keycored HTTP endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-keycore/internal/router"
)

// DefaultEndpoint is where keycored listens by default.
const DefaultEndpoint = "http://127.0.0.1:8645/"

// Client sends request envelopes to keycored.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 90*time.Second)
}

// NewWithTimeout creates a new client with a custom HTTP timeout.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// ResponseError is returned when keycored answers with success=false.
type ResponseError struct {
	Code    string
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Do sends req and decodes the response envelope. A failed operation
// returns the envelope together with a *ResponseError.
func (c *Client) Do(ctx context.Context, req *router.Request) (*router.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("forbidden: this host is not in server.allowed")
	}

	var out router.Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		return &out, &ResponseError{Code: out.Code, Message: out.Error}
	}
	return &out, nil
}

// CreateWallet generates a new identity on network.
func (c *Client) CreateWallet(ctx context.Context, network string) (*router.Response, error) {
	return c.Do(ctx, &router.Request{Network: network, Type: router.CreateWallet})
}

// ImportWallet replaces network's identity with the given secret.
func (c *Client) ImportWallet(ctx context.Context, network, privateKey string) (*router.Response, error) {
	return c.Do(ctx, &router.Request{
		Network:    network,
		Type:       router.SignInWallet,
		PrivateKey: router.SecretRepr(privateKey),
	})
}

// Accounts lists network's active address.
func (c *Client) Accounts(ctx context.Context, network string) ([]string, error) {
	resp, err := c.Do(ctx, &router.Request{Network: network, Type: router.GetAccounts})
	if err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// SignTransaction signs txData, which is marshalled as the request's txData.
func (c *Client) SignTransaction(ctx context.Context, network string, txData any) (*router.Response, error) {
	raw, err := json.Marshal(txData)
	if err != nil {
		return nil, fmt.Errorf("marshal txData: %w", err)
	}
	return c.Do(ctx, &router.Request{Network: network, Type: router.SignTransaction, TxData: raw})
}

// SubmitTransaction broadcasts a base64 signed transaction.
func (c *Client) SubmitTransaction(ctx context.Context, network, rawBase64 string) (*router.Response, error) {
	raw, _ := json.Marshal(map[string]string{"rawTransaction": rawBase64})
	return c.Do(ctx, &router.Request{Network: network, Type: router.SubmitTransaction, TxData: raw})
}
