// Package chainrpctest provides an in-process chain node for tests.
package chainrpctest

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Klingon-tech/klingnet-walletd/internal/chainrpc"
	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	pfee "github.com/Klingon-tech/klingnet-walletd/pkg/fee"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Error codes returned by the fake node.
const (
	CodeInvalidParams = -32602
	CodeMethodMissing = -32601
	CodeRejected      = -32003
)

// Node is a fake chain node speaking the chainrpc methods. It verifies
// submitted signatures, tracks nonces and records deployments.
type Node struct {
	srv *httptest.Server

	mu        sync.Mutex
	invokeFee string
	deployFee string
	deployed  map[types.Address]bool
	nonces    map[types.Address]uint64
	calls     map[string]int
	failures  map[string]string
	submitted []string
}

// NewNode starts a fake node and closes it when the test ends.
func NewNode(t testing.TB) *Node {
	t.Helper()
	n := &Node{
		invokeFee: "0x64",
		deployFee: "0x64",
		deployed:  make(map[types.Address]bool),
		nonces:    make(map[types.Address]uint64),
		calls:     make(map[string]int),
		failures:  make(map[string]string),
	}
	n.srv = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.srv.Close)
	return n
}

// URL returns the node endpoint.
func (n *Node) URL() string { return n.srv.URL }

// SetFees sets the raw fees returned by the estimate methods.
func (n *Node) SetFees(invoke, deploy string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invokeFee = invoke
	n.deployFee = deploy
}

// SetDeployed marks an account as deployed.
func (n *Node) SetDeployed(addr types.Address, deployed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deployed[addr] = deployed
}

// Deployed reports whether the node saw a deployment for addr.
func (n *Node) Deployed(addr types.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deployed[addr]
}

// Fail makes method answer with an error carrying msg. An empty msg clears it.
func (n *Node) Fail(method, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msg == "" {
		delete(n.failures, method)
		return
	}
	n.failures[method] = msg
}

// Calls returns how often method was called.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Submitted returns the tx hashes accepted so far, in order.
func (n *Node) Submitted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.submitted...)
}

type request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	failMsg, failing := n.failures[req.Method]
	n.mu.Unlock()

	var (
		result interface{}
		rerr   *rpcError
	)
	if failing {
		rerr = &rpcError{Code: CodeRejected, Message: failMsg}
	} else {
		result, rerr = n.dispatch(req)
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rerr != nil {
		resp["error"] = rerr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (n *Node) dispatch(req request) (interface{}, *rpcError) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch req.Method {
	case chainrpc.MethodEstimateTransaction:
		var p chainrpc.EstimateTransactionParams
		if err := json.Unmarshal(req.Params, &p); err != nil || len(p.Calls) == 0 {
			return nil, invalid("invalid transaction")
		}
		return chainrpc.FeeEstimate{OverallFee: n.invokeFee}, nil

	case chainrpc.MethodEstimateDeployAccount:
		var p chainrpc.EstimateDeployParams
		if err := json.Unmarshal(req.Params, &p); err != nil || p.Address.IsZero() {
			return nil, invalid("invalid address")
		}
		return chainrpc.FeeEstimate{OverallFee: n.deployFee}, nil

	case chainrpc.MethodIsDeployed:
		var p chainrpc.AddressParam
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalid(err.Error())
		}
		return chainrpc.DeployedResult{Deployed: n.deployed[p.Address]}, nil

	case chainrpc.MethodGetNonce:
		var p chainrpc.AddressParam
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalid(err.Error())
		}
		return chainrpc.NonceResult{Nonce: n.nonces[p.Address]}, nil

	case chainrpc.MethodSubmitInvoke:
		var env tx.SignedInvoke
		if err := json.Unmarshal(req.Params, &env); err != nil {
			return nil, invalid(err.Error())
		}
		if !n.deployed[env.Sender] {
			return nil, &rpcError{Code: CodeRejected, Message: "account not deployed"}
		}
		if env.Nonce != n.nonces[env.Sender] {
			return nil, &rpcError{Code: CodeRejected, Message: "invalid nonce"}
		}
		maxFee, err := pfee.FromHex(env.MaxFee)
		if err != nil {
			return nil, invalid(err.Error())
		}
		h, err := (&tx.Transaction{Calls: env.Calls, Details: &tx.Details{Version: env.Version}}).Hash(env.Sender, env.Nonce, maxFee)
		if err != nil {
			return nil, invalid(err.Error())
		}
		if crypto.AddressFromPubKey(env.PubKey) != env.Sender || !crypto.VerifySignature(h[:], env.Signature, env.PubKey) {
			return nil, &rpcError{Code: CodeRejected, Message: "invalid signature"}
		}
		n.nonces[env.Sender]++
		return n.accept(h), nil

	case chainrpc.MethodSubmitDeployAccount:
		var env tx.SignedDeploy
		if err := json.Unmarshal(req.Params, &env); err != nil {
			return nil, invalid(err.Error())
		}
		pub, err1 := hex.DecodeString(env.PubKey)
		sig, err2 := hex.DecodeString(env.Signature)
		maxFee, err3 := pfee.FromHex(env.MaxFee)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, invalid("malformed deployment")
		}
		if n.deployed[env.Address] {
			return nil, &rpcError{Code: CodeRejected, Message: "account already deployed"}
		}
		d := &tx.DeployAccount{Address: env.Address}
		h := d.Hash(pub, maxFee)
		if crypto.AddressFromPubKey(pub) != env.Address || !crypto.VerifySignature(h[:], sig, pub) {
			return nil, &rpcError{Code: CodeRejected, Message: "invalid signature"}
		}
		n.deployed[env.Address] = true
		return n.accept(h), nil

	default:
		return nil, &rpcError{Code: CodeMethodMissing, Message: "method not found"}
	}
}

func (n *Node) accept(h types.Hash) chainrpc.SubmitResult {
	txHash := "0x" + h.String()
	n.submitted = append(n.submitted, txHash)
	return chainrpc.SubmitResult{TxHash: txHash}
}

func invalid(msg string) *rpcError {
	return &rpcError{Code: CodeInvalidParams, Message: msg}
}
