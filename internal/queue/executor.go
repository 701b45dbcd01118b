package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Executor performs the side effect of an action, typically chain submission.
// The returned ref identifies the side effect (a transaction hash).
type Executor interface {
	Execute(ctx context.Context, action Action) (ref string, err error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, action Action) (string, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, action Action) (string, error) {
	return f(ctx, action)
}

// Mux dispatches actions to an executor registered for their type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[types.ActionType]Executor
}

// NewMux creates an empty executor mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[types.ActionType]Executor)}
}

// Handle registers the executor for an action type, replacing any previous one.
func (m *Mux) Handle(t types.ActionType, e Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = e
}

// Execute implements Executor.
func (m *Mux) Execute(ctx context.Context, action Action) (string, error) {
	m.mu.RLock()
	e, ok := m.handlers[action.Meta.Type]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoExecutor, action.Meta.Type)
	}
	return e.Execute(ctx, action)
}
