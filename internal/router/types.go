package router

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OpType is the operation a request asks for.
type OpType string

// Operation types accepted on the wire.
const (
	CreateWallet      OpType = "CREATE_WALLET"
	SignInWallet      OpType = "SIGN_IN_WALLET"
	GetAccounts       OpType = "GET_ACCOUNTS"
	SignTransaction   OpType = "SIGN_TRANSACTION"
	SubmitTransaction OpType = "SUBMIT_TRANSACTION"
)

// Error codes carried in Response.Code.
const (
	CodeGeneration       = "GENERATION_ERROR"
	CodeInvalidKeyFormat = "INVALID_KEY_FORMAT"
	CodeSigning          = "SIGNING_ERROR"
	CodeSubmission       = "SUBMISSION_ERROR"
	CodeNoActiveIdentity = "NO_ACTIVE_IDENTITY"
	CodePersistence      = "PERSISTENCE_ERROR"
	CodeUnsupported      = "UNSUPPORTED_OPERATION"
	CodeTimeout          = "TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
)

// Request is the request envelope.
type Request struct {
	Network    string          `json:"network"`
	Type       OpType          `json:"type"`
	PrivateKey SecretRepr      `json:"privateKey,omitempty"`
	TxData     json.RawMessage `json:"txData,omitempty"`
}

// SecretRepr is an imported secret. It decodes from a JSON string or from
// an array of byte values, which is re-joined as "b0,b1,...".
type SecretRepr string

// UnmarshalJSON accepts a string or a number array.
func (s *SecretRepr) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch {
	case trimmed == "null":
		*s = ""
		return nil
	case strings.HasPrefix(trimmed, "["):
		var nums []json.Number
		if err := json.Unmarshal(b, &nums); err != nil {
			return fmt.Errorf("privateKey: expected a string or an array of numbers")
		}
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = n.String()
		}
		*s = SecretRepr(strings.Join(parts, ","))
		return nil
	default:
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return fmt.Errorf("privateKey: expected a string or an array of numbers")
		}
		*s = SecretRepr(str)
		return nil
	}
}

// String hides the value from accidental formatting.
func (s SecretRepr) String() string {
	return "[redacted " + strconv.Itoa(len(s)) + " chars]"
}

// WalletView is the wallet object of create and import responses.
type WalletView struct {
	PrivateKey any    `json:"privateKey"`
	Address    string `json:"address"`
	Mnemonic   string `json:"mnemonic"`
}

// Response is the single response envelope for every operation.
// Success is always present; Accounts is always present for GET_ACCOUNTS.
type Response struct {
	Success bool   `json:"success"`
	Type    OpType `json:"type,omitempty"`
	Network string `json:"network,omitempty"`

	Wallet   *WalletView `json:"wallet,omitempty"`
	Mnemonic string      `json:"mnemonic,omitempty"`
	Accounts []string    `json:"accounts,omitempty"`

	Signature      string `json:"signature,omitempty"`
	Hash           string `json:"hash,omitempty"`
	RawTransaction string `json:"rawTransaction,omitempty"`
	Status         string `json:"status,omitempty"`
	Slot           uint64 `json:"slot,omitempty"`
	Replayed       bool   `json:"replayed,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	RequestID string `json:"requestId,omitempty"`
}

// MarshalJSON keeps "accounts" present, as an empty list if needed, on
// GET_ACCOUNTS responses.
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	if r.Type != GetAccounts || !r.Success {
		return json.Marshal(plain(r))
	}
	accounts := r.Accounts
	if accounts == nil {
		accounts = []string{}
	}
	return json.Marshal(struct {
		plain
		Accounts []string `json:"accounts"`
	}{plain(r), accounts})
}
