package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Klingon-tech/klingnet-keycore/internal/keystore"
	klog "github.com/Klingon-tech/klingnet-keycore/internal/log"
	"github.com/Klingon-tech/klingnet-keycore/internal/registry"
	"github.com/Klingon-tech/klingnet-keycore/internal/router"
	"github.com/Klingon-tech/klingnet-keycore/internal/server"
	"github.com/Klingon-tech/klingnet-keycore/internal/storage"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/account"
)

func setupClient(t *testing.T) *Client {
	t.Helper()
	klog.Init("error", false, "")

	reg := registry.New(keystore.New(storage.NewMemory()))
	if err := reg.Register(account.New(0), nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	srv := server.New(server.Config{}, router.New(reg), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL + "/")
}

func TestClient_RoundTrip(t *testing.T) {
	c := setupClient(t)
	ctx := context.Background()

	accounts, err := c.Accounts(ctx, "Ethereum")
	if err != nil {
		t.Fatalf("Accounts() error: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("accounts = %v, want empty", accounts)
	}

	imported, err := c.ImportWallet(ctx, "Ethereum", "0x0000000000000000000000000000000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("ImportWallet() error: %v", err)
	}
	if imported.Wallet.Address != "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf" {
		t.Errorf("address = %s", imported.Wallet.Address)
	}

	signed, err := c.SignTransaction(ctx, "Ethereum", map[string]any{
		"to":    "0x000000000000000000000000000000000000dEaD",
		"value": "1",
	})
	if err != nil {
		t.Fatalf("SignTransaction() error: %v", err)
	}
	if signed.Signature == "" || signed.Status != "signed" {
		t.Errorf("response = %+v", signed)
	}
}

func TestClient_ResponseError(t *testing.T) {
	c := setupClient(t)
	resp, err := c.ImportWallet(context.Background(), "Ethereum", "nope")
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *ResponseError", err)
	}
	if re.Code != router.CodeInvalidKeyFormat {
		t.Errorf("code = %s, want %s", re.Code, router.CodeInvalidKeyFormat)
	}
	if resp == nil || resp.Success {
		t.Error("the failed envelope should still be returned")
	}
}

func TestClient_SubmitUnsupported(t *testing.T) {
	c := setupClient(t)
	_, err := c.SubmitTransaction(context.Background(), "Ethereum", "AQ==")
	var re *ResponseError
	if !errors.As(err, &re) || re.Code != router.CodeUnsupported {
		t.Errorf("err = %v, want UNSUPPORTED_OPERATION", err)
	}
}
