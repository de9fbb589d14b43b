package router

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Klingon-tech/klingnet-keycore/internal/keystore"
	"github.com/Klingon-tech/klingnet-keycore/internal/registry"
	"github.com/Klingon-tech/klingnet-keycore/internal/solrpc"
	"github.com/Klingon-tech/klingnet-keycore/internal/storage"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/account"
	"github.com/Klingon-tech/klingnet-keycore/internal/wallet/keypair"
)

type staticBlockhash struct{}

func (staticBlockhash) LatestBlockhash(context.Context, solrpc.Commitment) (*solrpc.Blockhash, error) {
	return &solrpc.Blockhash{Blockhash: solana.Hash{1}}, nil
}

type confirmingSubmitter struct{ calls int }

func (s *confirmingSubmitter) Submit(_ context.Context, tx *wallet.SignedTx) (*wallet.Receipt, error) {
	s.calls++
	return &wallet.Receipt{Signature: tx.Signature, Status: wallet.StatusConfirmed, Slot: 77}, nil
}

func newTestRouter(t *testing.T) (*Router, *confirmingSubmitter) {
	t.Helper()
	sub := &confirmingSubmitter{}
	reg := registry.New(keystore.New(storage.NewMemory()))
	if err := reg.Register(account.New(0), nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if err := reg.Register(keypair.New(staticBlockhash{}, solrpc.Finalized), sub); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return New(reg), sub
}

func handle(t *testing.T, rt *Router, raw string) *Response {
	t.Helper()
	var req Request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	resp := rt.Handle(context.Background(), &req)
	if resp == nil {
		t.Fatal("Handle() returned nil")
	}
	if resp.RequestID == "" {
		t.Error("response should carry a request id")
	}
	return resp
}

func encode(t *testing.T, r *Response) map[string]any {
	t.Helper()
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	return m
}

func TestCreateWallet_AccountBased(t *testing.T) {
	rt, _ := newTestRouter(t)
	resp := handle(t, rt, `{"network":"Ethereum","type":"CREATE_WALLET"}`)
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.HasPrefix(resp.Wallet.Address, "0x") {
		t.Errorf("address = %q", resp.Wallet.Address)
	}
	if n := len(strings.Fields(resp.Wallet.Mnemonic)); n != 12 {
		t.Errorf("mnemonic words = %d, want 12", n)
	}
	if pk, _ := resp.Wallet.PrivateKey.(string); !strings.HasPrefix(pk, "0x") || len(pk) != 66 {
		t.Errorf("privateKey = %v", resp.Wallet.PrivateKey)
	}
	if resp.Network != "AccountBased" {
		t.Errorf("network = %q, want AccountBased", resp.Network)
	}
}

func TestCreateWallet_KeypairBased(t *testing.T) {
	rt, _ := newTestRouter(t)
	resp := handle(t, rt, `{"network":"KeypairBased","type":"CREATE_WALLET"}`)
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}
	m := encode(t, resp)
	if m["mnemonic"] != wallet.MnemonicUnavailable {
		t.Errorf("top-level mnemonic = %v", m["mnemonic"])
	}
	w := m["wallet"].(map[string]any)
	if pk, ok := w["privateKey"].([]any); !ok || len(pk) != 64 {
		t.Errorf("privateKey = %v, want 64 numbers", w["privateKey"])
	}
}

func TestSignInWallet_ArrayOrString(t *testing.T) {
	rt, _ := newTestRouter(t)
	created := handle(t, rt, `{"network":"Solana","type":"CREATE_WALLET"}`)
	arr, _ := json.Marshal(created.Wallet.PrivateKey)

	// As a JSON array.
	resp := handle(t, rt, `{"network":"Solana","type":"SIGN_IN_WALLET","privateKey":`+string(arr)+`}`)
	if !resp.Success || resp.Wallet.Address != created.Wallet.Address {
		t.Fatalf("array import = %+v", resp)
	}

	// As a comma-separated string.
	csv := strings.Trim(string(arr), "[]")
	resp = handle(t, rt, `{"network":"Solana","type":"SIGN_IN_WALLET","privateKey":"`+csv+`"}`)
	if !resp.Success || resp.Wallet.Address != created.Wallet.Address {
		t.Fatalf("string import = %+v", resp)
	}
}

func TestSignInWallet_Invalid(t *testing.T) {
	rt, _ := newTestRouter(t)
	for _, raw := range []string{
		`{"network":"AccountBased","type":"SIGN_IN_WALLET"}`,
		`{"network":"AccountBased","type":"SIGN_IN_WALLET","privateKey":"  "}`,
		`{"network":"AccountBased","type":"SIGN_IN_WALLET","privateKey":"0xnothex"}`,
		`{"network":"KeypairBased","type":"SIGN_IN_WALLET","privateKey":"1,2,300"}`,
	} {
		resp := handle(t, rt, raw)
		if resp.Success || resp.Code != CodeInvalidKeyFormat {
			t.Errorf("%s -> %+v, want INVALID_KEY_FORMAT", raw, resp)
		}
		if !strings.HasPrefix(resp.Error, "SIGN_IN_WALLET: ") {
			t.Errorf("error = %q, want operation prefix", resp.Error)
		}
	}
}

func TestGetAccounts_AlwaysHasAccounts(t *testing.T) {
	rt, _ := newTestRouter(t)
	resp := handle(t, rt, `{"network":"AccountBased","type":"GET_ACCOUNTS"}`)
	m := encode(t, resp)
	accounts, ok := m["accounts"].([]any)
	if !ok || len(accounts) != 0 {
		t.Fatalf("accounts = %#v, want []", m["accounts"])
	}
	if m["success"] != true {
		t.Errorf("success = %v", m["success"])
	}

	created := handle(t, rt, `{"network":"AccountBased","type":"CREATE_WALLET"}`)
	resp = handle(t, rt, `{"network":"AccountBased","type":"GET_ACCOUNTS"}`)
	if len(resp.Accounts) != 1 || resp.Accounts[0] != created.Wallet.Address {
		t.Errorf("accounts = %v, want [%s]", resp.Accounts, created.Wallet.Address)
	}
}

func TestSignTransaction_AccountBased(t *testing.T) {
	rt, _ := newTestRouter(t)
	handle(t, rt, `{"network":"AccountBased","type":"SIGN_IN_WALLET","privateKey":"0x0000000000000000000000000000000000000000000000000000000000000001"}`)

	req := `{"network":"AccountBased","type":"SIGN_TRANSACTION","txData":{"to":"0x000000000000000000000000000000000000dEaD","value":"1"}}`
	a := handle(t, rt, req)
	b := handle(t, rt, req)
	if !a.Success || a.Status != wallet.StatusSigned {
		t.Fatalf("response = %+v", a)
	}
	if !strings.HasPrefix(a.Signature, "0x") || a.Signature != b.Signature {
		t.Errorf("signatures %q / %q should be equal 0x hex", a.Signature, b.Signature)
	}
	if a.RawTransaction != "" {
		t.Error("account-based responses should not carry rawTransaction")
	}
}

func TestSignTransaction_NoActiveIdentity(t *testing.T) {
	rt, _ := newTestRouter(t)
	resp := handle(t, rt, `{"network":"Solana","type":"SIGN_TRANSACTION","txData":{"to":"x","amount":1}}`)
	if resp.Success || resp.Code != CodeNoActiveIdentity {
		t.Errorf("response = %+v, want NO_ACTIVE_IDENTITY", resp)
	}
}

func TestSignTransaction_KeypairSubmits(t *testing.T) {
	rt, sub := newTestRouter(t)
	handle(t, rt, `{"network":"Solana","type":"CREATE_WALLET"}`)
	to := base58.Encode(append(make([]byte, 31), 9))

	resp := handle(t, rt, `{"network":"Solana","type":"SIGN_TRANSACTION","txData":{"to":"`+to+`","amount":0.5}}`)
	if !resp.Success || resp.Status != wallet.StatusConfirmed || resp.Slot != 77 {
		t.Fatalf("response = %+v", resp)
	}
	if sub.calls != 1 {
		t.Errorf("submitter calls = %d, want 1", sub.calls)
	}

	signOnly := handle(t, rt, `{"network":"Solana","type":"SIGN_TRANSACTION","txData":{"to":"`+to+`","amount":0.5,"signOnly":true}}`)
	if !signOnly.Success || signOnly.Status != wallet.StatusSigned || signOnly.RawTransaction == "" {
		t.Fatalf("signOnly response = %+v", signOnly)
	}
	if sub.calls != 1 {
		t.Errorf("signOnly should not submit, calls = %d", sub.calls)
	}

	submitted := handle(t, rt, `{"network":"Solana","type":"SUBMIT_TRANSACTION","txData":{"rawTransaction":"`+signOnly.RawTransaction+`"}}`)
	if !submitted.Success || submitted.Signature != signOnly.Signature || submitted.Status != wallet.StatusConfirmed {
		t.Fatalf("submit response = %+v", submitted)
	}
}

func TestSubmitTransaction_Rejects(t *testing.T) {
	rt, _ := newTestRouter(t)
	tests := []struct {
		raw  string
		code string
	}{
		{`{"network":"Ethereum","type":"SUBMIT_TRANSACTION","txData":{"rawTransaction":"AQ=="}}`, CodeUnsupported},
		{`{"network":"Solana","type":"SUBMIT_TRANSACTION","txData":{"rawTransaction":"%%%"}}`, CodeSubmission},
		{`{"network":"Solana","type":"SUBMIT_TRANSACTION"}`, CodeSubmission},
		{`{"network":"Solana","type":"SUBMIT_TRANSACTION","txData":{"rawTransaction":"` + base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) + `"}}`, CodeSubmission},
	}
	for _, tt := range tests {
		resp := handle(t, rt, tt.raw)
		if resp.Success || resp.Code != tt.code {
			t.Errorf("%s -> %+v, want %s", tt.raw, resp, tt.code)
		}
	}
}

func TestUnsupported(t *testing.T) {
	rt, _ := newTestRouter(t)
	for _, raw := range []string{
		`{"network":"Bitcoin","type":"CREATE_WALLET"}`,
		`{"network":"Ethereum","type":"DELETE_WALLET"}`,
		`{}`,
	} {
		resp := handle(t, rt, raw)
		if resp.Success || resp.Code != CodeUnsupported || resp.Error == "" {
			t.Errorf("%s -> %+v, want UNSUPPORTED_OPERATION", raw, resp)
		}
	}
}

// stubRegistry lets tests control registry behaviour.
type stubRegistry struct {
	create func(ctx context.Context) (*registry.Wallet, error)
	sign   func(ctx context.Context) (*wallet.SignedTx, error)
}

func (s *stubRegistry) Create(ctx context.Context, _ wallet.Network) (*registry.Wallet, error) {
	return s.create(ctx)
}
func (s *stubRegistry) Import(context.Context, wallet.Network, string) (*registry.Wallet, error) {
	return nil, errors.New("not used")
}
func (s *stubRegistry) Accounts(context.Context, wallet.Network) ([]string, error) { return nil, nil }
func (s *stubRegistry) Sign(ctx context.Context, _ wallet.Network, _ json.RawMessage) (*wallet.SignedTx, error) {
	if s.sign == nil {
		return nil, errors.New("not used")
	}
	return s.sign(ctx)
}
func (s *stubRegistry) Submit(context.Context, *wallet.SignedTx) (*wallet.Receipt, error) {
	return nil, errors.New("not used")
}
func (s *stubRegistry) CanSubmit(wallet.Network) bool { return false }

func TestHandle_PanicRecovered(t *testing.T) {
	rt := New(&stubRegistry{create: func(context.Context) (*registry.Wallet, error) {
		panic("boom")
	}})
	resp := handle(t, rt, `{"network":"Ethereum","type":"CREATE_WALLET"}`)
	if resp.Success || resp.Code != CodeInternal {
		t.Errorf("response = %+v, want INTERNAL_ERROR", resp)
	}
}

func TestHandle_Timeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	rt := New(&stubRegistry{sign: func(ctx context.Context) (*wallet.SignedTx, error) {
		<-block
		return nil, errors.New("late")
	}}, WithTimeout(20*time.Millisecond))

	start := time.Now()
	resp := handle(t, rt, `{"network":"Ethereum","type":"SIGN_TRANSACTION","txData":{}}`)
	if resp.Success || resp.Code != CodeTimeout {
		t.Errorf("response = %+v, want TIMEOUT", resp)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout response took too long")
	}
}

// slowStore delays every Save.
type slowStore struct {
	registry.Store
	delay time.Duration
}

func (s *slowStore) Save(id *wallet.Identity) error {
	time.Sleep(s.delay)
	return s.Store.Save(id)
}

func newSlowRouter(t *testing.T, delay, timeout time.Duration) *Router {
	t.Helper()
	reg := registry.New(&slowStore{Store: keystore.New(storage.NewMemory()), delay: delay})
	if err := reg.Register(account.New(0), nil); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	return New(reg, WithTimeout(timeout))
}

func TestHandle_CreateOutlivesDeadline(t *testing.T) {
	rt := newSlowRouter(t, 150*time.Millisecond, 50*time.Millisecond)

	resp := handle(t, rt, `{"network":"Ethereum","type":"CREATE_WALLET"}`)
	accounts := handle(t, rt, `{"network":"Ethereum","type":"GET_ACCOUNTS"}`)

	// Whatever the outcome, the response and the active identity agree.
	if resp.Success {
		if resp.Wallet == nil || resp.Wallet.PrivateKey == nil || resp.Wallet.Mnemonic == "" {
			t.Fatalf("late success must still return the new wallet: %+v", resp)
		}
		if len(accounts.Accounts) != 1 || accounts.Accounts[0] != resp.Wallet.Address {
			t.Errorf("accounts = %v, want [%s]", accounts.Accounts, resp.Wallet.Address)
		}
		return
	}
	if len(accounts.Accounts) != 0 {
		t.Errorf("failed create (%s) left active identity %v", resp.Code, accounts.Accounts)
	}
}

func TestHandle_CreateAfterDeadlineLeavesSlot(t *testing.T) {
	rt := newSlowRouter(t, 0, 50*time.Millisecond)
	first := handle(t, rt, `{"network":"Ethereum","type":"CREATE_WALLET"}`)
	if !first.Success {
		t.Fatalf("create: %+v", first)
	}

	// A request whose deadline has already passed must not replace the
	// identity.
	var req Request
	json.Unmarshal([]byte(`{"network":"Ethereum","type":"CREATE_WALLET"}`), &req)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := rt.Handle(ctx, &req)
	if resp.Success || resp.Code != CodeTimeout {
		t.Errorf("response = %+v, want TIMEOUT", resp)
	}

	accounts := handle(t, rt, `{"network":"Ethereum","type":"GET_ACCOUNTS"}`)
	if len(accounts.Accounts) != 1 || accounts.Accounts[0] != first.Wallet.Address {
		t.Errorf("accounts = %v, want [%s]", accounts.Accounts, first.Wallet.Address)
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{wallet.ErrGeneration, CodeGeneration},
		{wallet.ErrInvalidKeyFormat, CodeInvalidKeyFormat},
		{wallet.ErrSigning, CodeSigning},
		{wallet.ErrSubmission, CodeSubmission},
		{wallet.ErrNoActiveIdentity, CodeNoActiveIdentity},
		{wallet.ErrPersistence, CodePersistence},
		{wallet.ErrUnsupported, CodeUnsupported},
		{context.DeadlineExceeded, CodeTimeout},
		{errors.New("other"), CodeInternal},
	}
	for _, tt := range tests {
		if got := CodeFor(tt.err); got != tt.want {
			t.Errorf("CodeFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	rt, _ := newTestRouter(t)
	rt.metrics = m

	handle(t, rt, `{"network":"Ethereum","type":"GET_ACCOUNTS"}`)
	handle(t, rt, `{"network":"Ethereum","type":"NOPE"}`)
	handle(t, rt, `{"network":"Ethereum","type":"NOPE2"}`)
	handle(t, rt, `{"network":"dogecoin-42","type":"GET_ACCOUNTS"}`)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("AccountBased", "GET_ACCOUNTS", "OK")); got != 1 {
		t.Errorf("ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("AccountBased", "unsupported", CodeUnsupported)); got != 2 {
		t.Errorf("unsupported counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("unknown", "GET_ACCOUNTS", CodeUnsupported)); got != 1 {
		t.Errorf("unknown network counter = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.requests); n != 3 {
		t.Errorf("request series = %d, want 3", n)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestSecretRepr_String(t *testing.T) {
	s := SecretRepr("0xdeadbeef")
	if strings.Contains(s.String(), "dead") {
		t.Error("String() should not reveal the secret")
	}
}
