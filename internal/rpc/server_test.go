package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Klingon-tech/klingnet-walletd/config"
	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	"github.com/Klingon-tech/klingnet-walletd/internal/hub"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

func TestMain(m *testing.M) {
	klog.Init(klog.Options{Level: "disabled"})
	os.Exit(m.Run())
}

const txData = `{"transactions":[{"contractAddress":"0x00000000000000000000000000000000000000aa","entrypoint":"transfer","calldata":["0x1","100"]}]}`

// stubEstimator returns a fixed estimate or error.
type stubEstimator struct {
	est fee.Estimate
	err error
}

func (s *stubEstimator) EstimateFee(ctx context.Context, t *tx.Transaction) (fee.Estimate, error) {
	return s.est, s.err
}

// fakeWallet is an in-memory Wallet.
type fakeWallet struct {
	mu       sync.Mutex
	accounts []wallet.AccountInfo
	selected int // -1 = none
}

func newFakeWallet(n int) *fakeWallet {
	w := &fakeWallet{selected: -1}
	for i := 0; i < n; i++ {
		w.accounts = append(w.accounts, wallet.AccountInfo{
			Address:     types.Address{0x10, byte(i + 1)},
			Name:        fmt.Sprintf("Account %d", i+1),
			Index:       uint32(i),
			NeedsDeploy: true,
		})
	}
	if n > 0 {
		w.selected = 0
	}
	return w
}

func (w *fakeWallet) deselect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = -1
}

func (w *fakeWallet) Accounts() []wallet.AccountInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]wallet.AccountInfo(nil), w.accounts...)
}

func (w *fakeWallet) SelectedAccount() (wallet.AccountInfo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected < 0 {
		return wallet.AccountInfo{}, false
	}
	return w.accounts[w.selected], true
}

func (w *fakeWallet) Select(addr types.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, a := range w.accounts {
		if a.Address == addr {
			w.selected = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", wallet.ErrUnknownAccount, addr)
}

func (w *fakeWallet) NewAccount(name string) (wallet.AccountInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := len(w.accounts)
	if name == "" {
		name = fmt.Sprintf("Account %d", i+1)
	}
	info := wallet.AccountInfo{Address: types.Address{0x10, byte(i + 1)}, Name: name, Index: uint32(i), NeedsDeploy: true}
	w.accounts = append(w.accounts, info)
	return info, nil
}

func (w *fakeWallet) DeployPayload(addr *types.Address) (*tx.DeployAccount, error) {
	if addr == nil {
		info, ok := w.SelectedAccount()
		if !ok {
			return nil, fee.ErrNoAccount
		}
		return &tx.DeployAccount{Address: info.Address}, nil
	}
	for _, a := range w.Accounts() {
		if a.Address == *addr {
			return &tx.DeployAccount{Address: a.Address}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", wallet.ErrUnknownAccount, addr)
}

// testEnv holds all components for an RPC test.
type testEnv struct {
	server    *Server
	queue     *queue.Queue
	hub       *hub.Hub
	estimator *stubEstimator
	wallet    *fakeWallet
	url       string
}

func setupTestEnv(t *testing.T) *testEnv {
	return setupTestEnvWithConfig(t, config.RPCConfig{WS: true})
}

func setupTestEnvWithConfig(t *testing.T, rpcCfg config.RPCConfig) *testEnv {
	t.Helper()
	return newTestEnv(t, rpcCfg, newFakeWallet(2))
}

// newTestEnv starts a server over a fresh queue and hub. A nil wallet leaves
// the wallet endpoints disabled.
func newTestEnv(t *testing.T, rpcCfg config.RPCConfig, w *fakeWallet) *testEnv {
	t.Helper()

	// The worker is not started, so pushed actions stay queued.
	q, err := queue.New(queue.ExecutorFunc(func(ctx context.Context, a queue.Action) (string, error) {
		return "", nil
	}), nil)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	est := &stubEstimator{est: fee.Estimate{Amount: "0x64", SuggestedMaxFee: "0x12c"}}
	h := hub.New(8)
	router := messaging.NewRouter(q, est)

	srv := New("127.0.0.1:0", router, h, q, rpcCfg)
	if w != nil {
		srv.SetWallet(w)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		h.Close()
	})

	return &testEnv{
		server:    srv,
		queue:     q,
		hub:       h,
		estimator: est,
		wallet:    w,
		url:       "http://" + srv.Addr(),
	}
}

// rpcCall sends a JSON-RPC request and returns the parsed response.
func rpcCall(t *testing.T, url, method string, params interface{}) Response {
	t.Helper()
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rpcResp
}

// decodeResult re-decodes a response result into target.
func decodeResult(t *testing.T, resp Response, target interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %d %s", resp.Error.Code, resp.Error.Message)
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
}

func postMessage(t *testing.T, url, tabID string, typ messaging.Type, data string) Response {
	t.Helper()
	msg := messaging.Message{Type: typ}
	if data != "" {
		msg.Data = json.RawMessage(data)
	}
	return rpcCall(t, url, "wallet_postMessage", PostMessageParam{TabID: tabID, Message: msg})
}

func expectCode(t *testing.T, resp Response, code int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Fatalf("error code = %d (%s), want %d", resp.Error.Code, resp.Error.Message, code)
	}
}

// ── Tests ───────────────────────────────────────────────────────────────

func TestRPC_PostMessage_Execute(t *testing.T) {
	env := setupTestEnv(t)

	var res PostMessageResult
	decodeResult(t, postMessage(t, env.url, "tab-1", messaging.TypeExecuteTransaction, txData), &res)
	if res.TabID != "tab-1" {
		t.Errorf("tab_id = %q, want tab-1", res.TabID)
	}
	if len(res.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(res.Messages))
	}
	if res.Messages[0].Type != messaging.TypeExecuteTransactionRes {
		t.Fatalf("type = %s", res.Messages[0].Type)
	}
	var out messaging.ExecuteTransactionRes
	if err := res.Messages[0].Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var want tx.Transaction
	if err := json.Unmarshal([]byte(txData), &want); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wantHash, err := queue.ContentHash(&want)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if out.ActionHash != wantHash.String() {
		t.Errorf("actionHash = %s, want %s", out.ActionHash, wantHash)
	}
	if env.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1", env.queue.Len())
	}

	// Same content again: same hash, still one entry.
	decodeResult(t, postMessage(t, env.url, "tab-1", messaging.TypeExecuteTransaction, txData), &res)
	if env.queue.Len() != 1 {
		t.Errorf("queue length after duplicate = %d, want 1", env.queue.Len())
	}
}

func TestRPC_PostMessage_GeneratesTabID(t *testing.T) {
	env := setupTestEnv(t)

	var res PostMessageResult
	decodeResult(t, postMessage(t, env.url, "", messaging.TypeEstimateTransactionFee, txData), &res)
	if res.TabID == "" {
		t.Fatal("expected a generated tab_id")
	}
}

func TestRPC_PostMessage_Estimate(t *testing.T) {
	env := setupTestEnv(t)

	var res PostMessageResult
	decodeResult(t, postMessage(t, env.url, "tab-1", messaging.TypeEstimateTransactionFee, txData), &res)
	if len(res.Messages) != 1 || res.Messages[0].Type != messaging.TypeEstimateTransactionFeeRes {
		t.Fatalf("messages = %+v", res.Messages)
	}
	var out messaging.EstimateTransactionFeeRes
	if err := res.Messages[0].Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Amount != "0x64" || out.SuggestedMaxFee != "0x12c" {
		t.Errorf("estimate = %+v", out)
	}
	if env.queue.Len() != 0 {
		t.Errorf("estimate must not enqueue, queue length = %d", env.queue.Len())
	}
}

func TestRPC_PostMessage_EstimateRejected(t *testing.T) {
	env := setupTestEnv(t)
	env.estimator.err = &fee.EstimationError{Path: "invoke", Err: errors.New("insufficient balance")}

	var res PostMessageResult
	decodeResult(t, postMessage(t, env.url, "tab-1", messaging.TypeEstimateTransactionFee, txData), &res)
	if len(res.Messages) != 1 || res.Messages[0].Type != messaging.TypeEstimateTransactionFeeRej {
		t.Fatalf("messages = %+v", res.Messages)
	}
	var out messaging.EstimateTransactionFeeRej
	if err := res.Messages[0].Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != "insufficient balance" {
		t.Errorf("error = %q", out.Error)
	}
}

func TestRPC_PostMessage_Errors(t *testing.T) {
	env := setupTestEnv(t)

	expectCode(t, postMessage(t, env.url, "t", "OPEN_POPUP", ""), CodeMethodNotFound)
	expectCode(t, postMessage(t, env.url, "t", messaging.TypeExecuteTransaction, ""), CodeInvalidParams)
	expectCode(t, postMessage(t, env.url, "t", messaging.TypeExecuteTransaction, `{"transactions":[]}`), CodeInvalidParams)
	expectCode(t, postMessage(t, env.url, "t", messaging.TypeTransactionFailed, `{"actionHash":"zz"}`), CodeInvalidParams)
	expectCode(t, rpcCall(t, env.url, "wallet_postMessage", PostMessageParam{}), CodeInvalidParams)

	env.estimator.err = fee.ErrNoAccount
	expectCode(t, postMessage(t, env.url, "t", messaging.TypeEstimateTransactionFee, txData), CodeNoAccount)
}

func TestRPC_PostMessage_TransactionFailed(t *testing.T) {
	env := setupTestEnv(t)

	var res PostMessageResult
	decodeResult(t, postMessage(t, env.url, "tab-1", messaging.TypeExecuteTransaction, txData), &res)
	var out messaging.ExecuteTransactionRes
	if err := res.Messages[0].Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	data := fmt.Sprintf(`{"actionHash":%q}`, out.ActionHash)
	decodeResult(t, postMessage(t, env.url, "ui", messaging.TypeTransactionFailed, data), &res)
	if len(res.Messages) != 0 {
		t.Errorf("TRANSACTION_FAILED should emit nothing, got %d", len(res.Messages))
	}
	if env.queue.Len() != 0 {
		t.Errorf("queue length = %d, want 0", env.queue.Len())
	}
}

func TestRPC_QueueStatus(t *testing.T) {
	env := setupTestEnv(t)

	var status QueueStatusResult
	decodeResult(t, rpcCall(t, env.url, "queue_getStatus", nil), &status)
	if status.Length != 0 || len(status.Actions) != 0 || status.InFlight != nil {
		t.Fatalf("empty status = %+v", status)
	}

	postMessage(t, env.url, "t", messaging.TypeExecuteTransaction, txData)
	decodeResult(t, rpcCall(t, env.url, "queue_getStatus", nil), &status)
	if status.Length != 1 || len(status.Actions) != 1 {
		t.Fatalf("status = %+v", status)
	}
	action := status.Actions[0]
	if action.State != queue.StateQueued || action.Type != types.ActionTransaction {
		t.Errorf("action = %+v", action)
	}

	var meta queue.Meta
	decodeResult(t, rpcCall(t, env.url, "queue_getAction", HashParam{Hash: action.Hash.String()}), &meta)
	if meta.Hash != action.Hash {
		t.Errorf("hash = %s, want %s", meta.Hash, action.Hash)
	}
}

func TestRPC_QueueGetAction_Errors(t *testing.T) {
	env := setupTestEnv(t)

	expectCode(t, rpcCall(t, env.url, "queue_getAction", nil), CodeInvalidParams)
	expectCode(t, rpcCall(t, env.url, "queue_getAction", HashParam{}), CodeInvalidParams)
	expectCode(t, rpcCall(t, env.url, "queue_getAction", HashParam{Hash: "abc"}), CodeInvalidParams)
	expectCode(t, rpcCall(t, env.url, "queue_getAction", HashParam{Hash: types.Hash{0x01}.String()}), CodeNotFound)
}

func TestRPC_WalletAccounts(t *testing.T) {
	env := setupTestEnv(t)

	var selected wallet.AccountInfo
	decodeResult(t, rpcCall(t, env.url, "wallet_getSelectedAccount", nil), &selected)
	if selected.Index != 0 {
		t.Errorf("selected index = %d, want 0", selected.Index)
	}

	var list AccountsResult
	decodeResult(t, rpcCall(t, env.url, "wallet_listAccounts", nil), &list)
	if len(list.Accounts) != 2 {
		t.Fatalf("accounts = %d, want 2", len(list.Accounts))
	}

	second := list.Accounts[1].Address.String()
	decodeResult(t, rpcCall(t, env.url, "wallet_selectAccount", AddressParam{Address: second}), &selected)
	if selected.Address.String() != second {
		t.Errorf("selected = %s, want %s", selected.Address, second)
	}

	var created wallet.AccountInfo
	decodeResult(t, rpcCall(t, env.url, "wallet_newAccount", NewAccountParam{Name: "savings"}), &created)
	if created.Name != "savings" || created.Index != 2 {
		t.Errorf("created = %+v", created)
	}
	decodeResult(t, rpcCall(t, env.url, "wallet_newAccount", nil), &created)
	if created.Name != "Account 4" {
		t.Errorf("default name = %q", created.Name)
	}
}

func TestRPC_WalletAccounts_Errors(t *testing.T) {
	env := setupTestEnv(t)

	expectCode(t, rpcCall(t, env.url, "wallet_selectAccount", AddressParam{}), CodeInvalidParams)
	expectCode(t, rpcCall(t, env.url, "wallet_selectAccount", AddressParam{Address: "0xzz"}), CodeInvalidParams)
	unknown := types.Address{0x99}.String()
	expectCode(t, rpcCall(t, env.url, "wallet_selectAccount", AddressParam{Address: unknown}), CodeNotFound)

	env.wallet.deselect()
	expectCode(t, rpcCall(t, env.url, "wallet_getSelectedAccount", nil), CodeNoAccount)
	expectCode(t, rpcCall(t, env.url, "wallet_deployAccount", nil), CodeNoAccount)
}

func TestRPC_WalletDisabled(t *testing.T) {
	env := newTestEnv(t, config.RPCConfig{}, nil)

	for _, method := range []string{"wallet_getSelectedAccount", "wallet_listAccounts", "wallet_newAccount", "wallet_deployAccount"} {
		expectCode(t, rpcCall(t, env.url, method, nil), CodeNotFound)
	}
}

func TestRPC_WalletDeployAccount(t *testing.T) {
	env := setupTestEnv(t)

	var res DeployResult
	decodeResult(t, rpcCall(t, env.url, "wallet_deployAccount", nil), &res)
	if res.State != string(queue.StateQueued) {
		t.Errorf("state = %s", res.State)
	}
	hash, err := types.HexToHash(res.ActionHash)
	if err != nil {
		t.Fatalf("action hash: %v", err)
	}
	meta, ok := env.queue.Get(hash)
	if !ok || meta.Type != types.ActionDeployAccount {
		t.Fatalf("queued deploy = %+v, %v", meta, ok)
	}

	// Deploying the same account again while queued is deduplicated.
	addr := env.wallet.accounts[0].Address.String()
	var again DeployResult
	decodeResult(t, rpcCall(t, env.url, "wallet_deployAccount", AddressParam{Address: addr}), &again)
	if again.ActionHash != res.ActionHash || env.queue.Len() != 1 {
		t.Errorf("duplicate deploy: %+v, queue length %d", again, env.queue.Len())
	}
}

func TestRPC_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)
	expectCode(t, rpcCall(t, env.url, "chain_getInfo", nil), CodeMethodNotFound)
}

func TestRPC_InvalidJSON(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Post(env.url, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expectCode(t, rpcResp, CodeParseError)
}

func TestRPC_WrongVersion(t *testing.T) {
	env := setupTestEnv(t)

	body := `{"jsonrpc":"1.0","method":"queue_getStatus","id":1}`
	resp, err := http.Post(env.url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expectCode(t, rpcResp, CodeInvalidRequest)
}

func TestRPC_GetMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var rpcResp Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	expectCode(t, rpcResp, CodeInvalidRequest)
}

// --- IP filter ---

func TestRPC_IPFilter_Allowed(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"127.0.0.1"},
	})

	resp := rpcCall(t, env.url, "queue_getStatus", nil)
	if resp.Error != nil {
		t.Errorf("expected success for 127.0.0.1, got error: %s", resp.Error.Message)
	}
}

func TestRPC_IPFilter_Blocked(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{
		AllowedIPs: []string{"10.0.0.0/8"}, // Only allow 10.x.x.x.
	})

	req := Request{JSONRPC: "2.0", Method: "queue_getStatus", ID: 1}
	body, _ := json.Marshal(req)
	resp, err := http.Post(env.url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

// --- CORS ---

func TestRPC_CORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"wildcard", []string{"*"}, "chrome-extension://abc", "*"},
		{"match", []string{"chrome-extension://abc"}, "chrome-extension://abc", "chrome-extension://abc"},
		{"mismatch", []string{"chrome-extension://abc"}, "http://evil.example", ""},
		{"disabled", nil, "chrome-extension://abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvWithConfig(t, config.RPCConfig{CORSOrigins: tt.allowed})

			body, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "queue_getStatus", ID: 1})
			httpReq, _ := http.NewRequest("POST", env.url, bytes.NewReader(body))
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Origin", tt.origin)

			resp, err := http.DefaultClient.Do(httpReq)
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()

			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("CORS origin = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- Websocket ---

func dialWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+env.server.Addr()+"/ws?"+query, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) messaging.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg messaging.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read ws: %v", err)
	}
	return msg
}

func TestRPC_WebSocket_TabAndUI(t *testing.T) {
	env := setupTestEnv(t)
	tab := dialWS(t, env, "tab=tab-7")
	ui := dialWS(t, env, "role=ui")

	postMessage(t, env.url, "tab-7", messaging.TypeEstimateTransactionFee, txData)

	if got := readWS(t, tab); got.Type != messaging.TypeEstimateTransactionFeeRes {
		t.Errorf("tab got %s", got.Type)
	}
	if got := readWS(t, ui); got.Type != messaging.TypeEstimateTransactionFeeRes {
		t.Errorf("ui got %s", got.Type)
	}
}

func TestRPC_WebSocket_UIOnly(t *testing.T) {
	env := setupTestEnv(t)
	ui := dialWS(t, env, "role=ui")

	msg, err := messaging.NewMessage(messaging.TypeTransactionSubmitted, messaging.TransactionSubmitted{
		ActionHash:      "aa",
		TransactionHash: "0xbb",
	})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	env.hub.SendToUI(context.Background(), msg)

	if got := readWS(t, ui); got.Type != messaging.TypeTransactionSubmitted {
		t.Errorf("ui got %s", got.Type)
	}
}

func TestRPC_WebSocket_RequiresTarget(t *testing.T) {
	env := setupTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+env.server.Addr()+"/ws", nil)
	if err == nil {
		t.Fatal("expected dial to fail without tab or role")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("response = %v", resp)
	}
}

func TestRPC_WebSocket_Disabled(t *testing.T) {
	env := setupTestEnvWithConfig(t, config.RPCConfig{})

	_, _, err := websocket.DefaultDialer.Dial("ws://"+env.server.Addr()+"/ws?tab=x", nil)
	if err == nil {
		t.Fatal("expected dial to fail when websocket is disabled")
	}
}

// --- Metrics ---

func TestRPC_Metrics(t *testing.T) {
	env := setupTestEnv(t)

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "klingwallet_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	env.server.SetMetrics(reg)

	resp, err := http.Get(env.url + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "klingwallet_test_total 1") {
		t.Errorf("metrics body missing counter:\n%s", body)
	}
}
