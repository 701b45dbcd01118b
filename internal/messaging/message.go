// Package messaging routes typed wallet messages between pages, the wallet
// UI and the background action queue.
package messaging

import (
	"encoding/json"
	"fmt"
)

// Type names a message kind.
type Type string

// Inbound message types.
const (
	TypeExecuteTransaction     Type = "EXECUTE_TRANSACTION"
	TypeEstimateTransactionFee Type = "ESTIMATE_TRANSACTION_FEE"
	TypeTransactionFailed      Type = "TRANSACTION_FAILED"
)

// Outbound message types.
const (
	TypeExecuteTransactionRes     Type = "EXECUTE_TRANSACTION_RES"
	TypeEstimateTransactionFeeRes Type = "ESTIMATE_TRANSACTION_FEE_RES"
	TypeEstimateTransactionFeeRej Type = "ESTIMATE_TRANSACTION_FEE_REJ"
	TypeTransactionSubmitted      Type = "TRANSACTION_SUBMITTED"
	TypeTransactionSubmitFailed   Type = "TRANSACTION_SUBMIT_FAILED"
)

// Message is the envelope exchanged with pages and the UI.
type Message struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ExecuteTransactionRes answers EXECUTE_TRANSACTION.
type ExecuteTransactionRes struct {
	ActionHash string `json:"actionHash"`
}

// EstimateTransactionFeeRes answers a successful ESTIMATE_TRANSACTION_FEE.
type EstimateTransactionFeeRes struct {
	Amount          string `json:"amount"`
	SuggestedMaxFee string `json:"suggestedMaxFee"`
}

// EstimateTransactionFeeRej answers a failed ESTIMATE_TRANSACTION_FEE.
type EstimateTransactionFeeRej struct {
	Error string `json:"error"`
}

// TransactionFailed is sent by the UI when an action failed terminally.
type TransactionFailed struct {
	ActionHash string `json:"actionHash"`
}

// TransactionSubmitted reports that the worker submitted an action.
type TransactionSubmitted struct {
	ActionHash      string `json:"actionHash"`
	TransactionHash string `json:"transactionHash"`
}

// TransactionSubmitFailed reports that the worker could not submit an action.
type TransactionSubmitFailed struct {
	ActionHash string `json:"actionHash"`
	Error      string `json:"error"`
}

// NewMessage encodes data into a message of type t. A nil data yields a
// message without a data field.
func NewMessage(t Type, data interface{}) (Message, error) {
	if data == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", t, err)
	}
	return Message{Type: t, Data: raw}, nil
}

// Decode unmarshals the message data into v.
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedMessage, m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, m.Type, err)
	}
	return nil
}
