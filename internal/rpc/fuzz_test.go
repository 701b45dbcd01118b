package rpc

import (
	"encoding/json"
	"testing"
)

// FuzzRPCRequestUnmarshal tests that arbitrary JSON does not panic
// when parsed as a JSON-RPC 2.0 request.
func FuzzRPCRequestUnmarshal(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","method":"queue_getStatus","params":null,"id":1}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"queue_getAction","params":{"hash":"abc"},"id":"test"}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":"wallet_postMessage","params":{"tab_id":"t","message":{"type":"EXECUTE_TRANSACTION","data":{}}},"id":2}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"method":"","params":[]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}
		_ = req.Method
		_ = req.ID
	})
}

// FuzzPostMessageParam checks that arbitrary params never panic the
// message decoding path.
func FuzzPostMessageParam(f *testing.F) {
	f.Add([]byte(`{"tab_id":"t","message":{"type":"ESTIMATE_TRANSACTION_FEE","data":{"transactions":[]}}}`))
	f.Add([]byte(`{"message":{"type":"TRANSACTION_FAILED","data":"x"}}`))
	f.Add([]byte(`{"message":null}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var params PostMessageParam
		if err := json.Unmarshal(data, &params); err != nil {
			return
		}
		var v map[string]interface{}
		_ = params.Message.Decode(&v)
	})
}
