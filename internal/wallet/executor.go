package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Register installs the wallet's executors for every action type on m.
func (w *Wallet) Register(m *queue.Mux) {
	m.Handle(types.ActionTransaction, queue.ExecutorFunc(w.executeTransaction))
	m.Handle(types.ActionDeployAccount, queue.ExecutorFunc(w.executeDeploy))
}

// DeployPayload builds the deployment action for addr, or for the selected
// account when addr is nil.
func (w *Wallet) DeployPayload(addr *types.Address) (*tx.DeployAccount, error) {
	acct := w.Account(addr)
	if acct == nil {
		if addr == nil {
			return nil, fee.ErrNoAccount
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	return &tx.DeployAccount{Address: acct.Address()}, nil
}

func (w *Wallet) executeTransaction(ctx context.Context, a queue.Action) (string, error) {
	t, ok := a.Payload.(*tx.Transaction)
	if !ok {
		return "", fmt.Errorf("unexpected payload %T for %s", a.Payload, a.Meta.Type)
	}
	acct := w.Account(t.Account)
	if acct == nil {
		if t.Account == nil {
			return "", fee.ErrNoAccount
		}
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, t.Account)
	}
	return acct.Execute(ctx, t)
}

func (w *Wallet) executeDeploy(ctx context.Context, a queue.Action) (string, error) {
	d, ok := a.Payload.(*tx.DeployAccount)
	if !ok {
		return "", fmt.Errorf("unexpected payload %T for %s", a.Payload, a.Meta.Type)
	}
	acct := w.Account(&d.Address)
	if acct == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, d.Address)
	}
	txHash, err := acct.Deploy(ctx)
	if err != nil {
		return "", err
	}
	w.MarkDeployed(d.Address)
	return txHash, nil
}
