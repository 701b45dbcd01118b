package messaging

import (
	"context"

	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/rs/zerolog"
)

// UISender delivers a message to the wallet UI only.
type UISender interface {
	SendToUI(ctx context.Context, msg Message) error
}

// Notifier turns queue outcomes into UI messages. On a submit failure the UI
// is expected to answer with TRANSACTION_FAILED once it has shown the error.
type Notifier struct {
	ui     UISender
	logger zerolog.Logger
}

// NewNotifier creates a notifier sending to ui.
func NewNotifier(ui UISender) *Notifier {
	return &Notifier{ui: ui, logger: klog.WithComponent("router")}
}

// HandleOutcome is a queue outcome listener.
func (n *Notifier) HandleOutcome(o queue.Outcome) {
	var (
		msg Message
		err error
	)
	if o.Succeeded() {
		msg, err = NewMessage(TypeTransactionSubmitted, TransactionSubmitted{
			ActionHash:      o.Meta.Hash.String(),
			TransactionHash: o.Ref,
		})
	} else {
		msg, err = NewMessage(TypeTransactionSubmitFailed, TransactionSubmitFailed{
			ActionHash: o.Meta.Hash.String(),
			Error:      fee.ErrorMessage(o.Err),
		})
	}
	if err == nil {
		err = n.ui.SendToUI(context.Background(), msg)
	}
	if err != nil {
		n.logger.Warn().Err(err).Str("action", o.Meta.Hash.String()).Msg("Failed to notify UI")
	}
}
