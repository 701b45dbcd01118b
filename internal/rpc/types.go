package rpc

import (
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeNoAccount      = -32010
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// PostMessageParam is used by wallet_postMessage.
type PostMessageParam struct {
	TabID   string            `json:"tab_id,omitempty"`
	Message messaging.Message `json:"message"`
}

// HashParam is used by endpoints that take a single action hash.
type HashParam struct {
	Hash string `json:"hash"`
}

// AddressParam is used by endpoints that take an account address.
type AddressParam struct {
	Address string `json:"address"`
}

// NewAccountParam is used by wallet_newAccount.
type NewAccountParam struct {
	Name string `json:"name,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// PostMessageResult lists the messages the router emitted for the request.
type PostMessageResult struct {
	TabID    string              `json:"tab_id"`
	Messages []messaging.Message `json:"messages"`
}

// QueueStatusResult is returned by queue_getStatus.
type QueueStatusResult struct {
	Length   int          `json:"length"`
	InFlight *queue.Meta  `json:"in_flight,omitempty"`
	Actions  []queue.Meta `json:"actions"`
}

// AccountsResult is returned by wallet_listAccounts.
type AccountsResult struct {
	Accounts []wallet.AccountInfo `json:"accounts"`
}

// DeployResult is returned by wallet_deployAccount.
type DeployResult struct {
	ActionHash string `json:"action_hash"`
	State      string `json:"state"`
}
