package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
	"github.com/rs/zerolog"
)

// Queue is the part of the action queue the router drives.
type Queue interface {
	Push(ctx context.Context, p queue.Payload) (queue.Meta, error)
	Remove(ctx context.Context, hash types.Hash) error
}

// Estimator computes fee estimates.
type Estimator interface {
	EstimateFee(ctx context.Context, t *tx.Transaction) (fee.Estimate, error)
}

// Sender delivers an outbound message to the requesting tab and the wallet UI.
type Sender interface {
	SendToTabAndUI(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// SendToTabAndUI calls f.
func (f SenderFunc) SendToTabAndUI(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

type handlerFunc func(ctx context.Context, msg Message, sender Sender) error

// Router dispatches inbound messages. It keeps no state of its own; all
// state lives in the queue.
type Router struct {
	queue     Queue
	estimator Estimator
	handlers  map[Type]handlerFunc
	metrics   *Metrics
	logger    zerolog.Logger
}

// NewRouter creates a router over the given queue and estimator.
func NewRouter(q Queue, est Estimator) *Router {
	r := &Router{
		queue:     q,
		estimator: est,
		logger:    klog.WithComponent("router"),
	}
	r.handlers = map[Type]handlerFunc{
		TypeExecuteTransaction:     r.executeTransaction,
		TypeEstimateTransactionFee: r.estimateTransactionFee,
		TypeTransactionFailed:      r.transactionFailed,
	}
	return r
}

// SetMetrics enables Prometheus instrumentation. Call before use.
func (r *Router) SetMetrics(m *Metrics) {
	r.metrics = m
}

// Handles reports whether the router knows the message type.
func (r *Router) Handles(t Type) bool {
	_, ok := r.handlers[t]
	return ok
}

// Handle processes one inbound message and emits at most one outbound
// message through sender. Unknown types return *UnhandledMessageError and
// emit nothing. Precondition failures (no account, malformed data, invalid
// action) are returned to the caller; fee estimation failures are reported
// to the page as a rejection message instead.
func (r *Router) Handle(ctx context.Context, msg Message, sender Sender) error {
	h, ok := r.handlers[msg.Type]
	if !ok {
		r.metrics.count("unknown", "unhandled")
		r.logger.Warn().Str("type", string(msg.Type)).Msg("Unhandled message")
		return &UnhandledMessageError{Type: msg.Type}
	}

	if err := h(ctx, msg, sender); err != nil {
		r.metrics.count(msg.Type, "error")
		r.logger.Debug().Err(err).Str("type", string(msg.Type)).Msg("Message handling failed")
		return err
	}
	r.metrics.count(msg.Type, "ok")
	return nil
}

func (r *Router) executeTransaction(ctx context.Context, msg Message, sender Sender) error {
	var t tx.Transaction
	if err := msg.Decode(&t); err != nil {
		return err
	}
	meta, err := r.queue.Push(ctx, &t)
	if err != nil {
		return fmt.Errorf("enqueue transaction: %w", err)
	}
	return r.send(ctx, sender, TypeExecuteTransactionRes, ExecuteTransactionRes{
		ActionHash: meta.Hash.String(),
	})
}

func (r *Router) estimateTransactionFee(ctx context.Context, msg Message, sender Sender) error {
	var t tx.Transaction
	if err := msg.Decode(&t); err != nil {
		return err
	}
	est, err := r.estimator.EstimateFee(ctx, &t)
	if errors.Is(err, fee.ErrNoAccount) {
		return err
	}
	if err != nil {
		return r.send(ctx, sender, TypeEstimateTransactionFeeRej, EstimateTransactionFeeRej{
			Error: fee.ErrorMessage(err),
		})
	}
	return r.send(ctx, sender, TypeEstimateTransactionFeeRes, EstimateTransactionFeeRes{
		Amount:          est.Amount,
		SuggestedMaxFee: est.SuggestedMaxFee,
	})
}

func (r *Router) transactionFailed(ctx context.Context, msg Message, _ Sender) error {
	var data TransactionFailed
	if err := msg.Decode(&data); err != nil {
		return err
	}
	hash, err := types.HexToHash(data.ActionHash)
	if err != nil {
		return fmt.Errorf("%w: action hash: %v", ErrMalformedMessage, err)
	}
	return r.queue.Remove(ctx, hash)
}

func (r *Router) send(ctx context.Context, sender Sender, t Type, data interface{}) error {
	out, err := NewMessage(t, data)
	if err != nil {
		return err
	}
	if err := sender.SendToTabAndUI(ctx, out); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}
