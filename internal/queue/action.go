// Package queue implements the wallet's action queue: a deduplicated, FIFO
// ordered table of pending actions processed by a single background worker.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// State is the lifecycle state of a queued action.
type State string

// Action states.
const (
	StateQueued     State = "QUEUED"
	StateInProgress State = "IN_PROGRESS"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Active reports whether the state blocks a duplicate push.
func (s State) Active() bool {
	return s == StateQueued || s == StateInProgress
}

// Payload is the data carried by an action. Each payload kind reports its
// own action type tag.
type Payload interface {
	ActionType() types.ActionType
}

// validator is implemented by payloads that can check themselves.
type validator interface {
	Validate() error
}

// Meta is the queue-assigned bookkeeping for an action.
type Meta struct {
	Hash      types.Hash       `json:"hash"`
	Type      types.ActionType `json:"type"`
	Seq       uint64           `json:"seq"`
	State     State            `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Action is a queued unit of work.
type Action struct {
	Meta    Meta
	Payload Payload
}

// Outcome is delivered to listeners when the worker finishes an action.
type Outcome struct {
	Meta Meta
	Ref  string // Executor reference, e.g. the submitted transaction hash.
	Err  error
}

// Succeeded reports whether the action completed without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// ContentHash returns the stable identifier of a payload: a tagged BLAKE3
// hash over the action type and the JSON encoding of the payload.
func ContentHash(p Payload) (types.Hash, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: encode payload: %v", ErrInvalidAction, err)
	}
	return crypto.HashTagged("klingwallet/action", []byte(p.ActionType()), data), nil
}

// checkPayload rejects payloads the queue cannot accept.
func checkPayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidAction)
	}
	if !p.ActionType().Valid() {
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, p.ActionType())
	}
	if v, ok := p.(validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAction, err)
		}
	}
	return nil
}
