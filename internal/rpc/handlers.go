package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletd/internal/fee"
	"github.com/Klingon-tech/klingnet-walletd/internal/hub"
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// ── Message endpoints ───────────────────────────────────────────────────

// recordingSender keeps every message the router emits for one request and
// forwards it to the tab's subscribers.
type recordingSender struct {
	next messaging.Sender
	msgs []messaging.Message
}

func (r *recordingSender) SendToTabAndUI(ctx context.Context, msg messaging.Message) error {
	r.msgs = append(r.msgs, msg)
	if r.next == nil {
		return nil
	}
	return r.next.SendToTabAndUI(ctx, msg)
}

func (s *Server) handlePostMessage(ctx context.Context, req *Request) (interface{}, *Error) {
	var params PostMessageParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Message.Type == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "message.type is required"}
	}
	if params.TabID == "" {
		params.TabID = hub.NewTabID()
	}

	sender := &recordingSender{}
	if s.hub != nil {
		sender.next = s.hub.ForTab(params.TabID)
	}
	if err := s.router.Handle(ctx, params.Message, sender); err != nil {
		return nil, messageError(err)
	}

	msgs := sender.msgs
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return &PostMessageResult{TabID: params.TabID, Messages: msgs}, nil
}

// messageError maps a router error to a JSON-RPC error.
func messageError(err error) *Error {
	switch {
	case errors.Is(err, messaging.ErrUnhandledMessage):
		return &Error{Code: CodeMethodNotFound, Message: err.Error()}
	case errors.Is(err, fee.ErrNoAccount):
		return &Error{Code: CodeNoAccount, Message: err.Error()}
	case errors.Is(err, messaging.ErrMalformedMessage), errors.Is(err, queue.ErrInvalidAction):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// ── Queue endpoints ─────────────────────────────────────────────────────

func (s *Server) handleQueueGetStatus(_ *Request) (interface{}, *Error) {
	res := &QueueStatusResult{
		Length:  s.queue.Len(),
		Actions: s.queue.List(),
	}
	if res.Actions == nil {
		res.Actions = []queue.Meta{}
	}
	if meta, ok := s.queue.InFlight(); ok {
		res.InFlight = &meta
	}
	return res, nil
}

func (s *Server) handleQueueGetAction(req *Request) (interface{}, *Error) {
	var params HashParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Hash == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}
	hash, err := types.HexToHash(params.Hash)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid hash: %v", err)}
	}
	meta, ok := s.queue.Get(hash)
	if !ok {
		return nil, &Error{Code: CodeNotFound, Message: "action not found"}
	}
	return &meta, nil
}

// ── Wallet endpoints ────────────────────────────────────────────────────

func (s *Server) requireWallet() *Error {
	if s.wallet == nil {
		return &Error{Code: CodeNotFound, Message: "no wallet loaded"}
	}
	return nil
}

// walletError maps a wallet error to a JSON-RPC error.
func walletError(err error) *Error {
	switch {
	case errors.Is(err, fee.ErrNoAccount):
		return &Error{Code: CodeNoAccount, Message: err.Error()}
	case errors.Is(err, wallet.ErrUnknownAccount):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, queue.ErrInvalidAction):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

// parseAddress parses an optional address param. An empty string yields nil.
func parseAddress(s string) (*types.Address, *Error) {
	if s == "" {
		return nil, nil
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid address: %v", err)}
	}
	return &addr, nil
}

func (s *Server) handleWalletGetSelectedAccount(_ *Request) (interface{}, *Error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	info, ok := s.wallet.SelectedAccount()
	if !ok {
		return nil, &Error{Code: CodeNoAccount, Message: fee.ErrNoAccount.Error()}
	}
	return &info, nil
}

func (s *Server) handleWalletListAccounts(_ *Request) (interface{}, *Error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	accounts := s.wallet.Accounts()
	if accounts == nil {
		accounts = []wallet.AccountInfo{}
	}
	return &AccountsResult{Accounts: accounts}, nil
}

func (s *Server) handleWalletSelectAccount(req *Request) (interface{}, *Error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.wallet.Select(*addr); err != nil {
		return nil, walletError(err)
	}
	info, _ := s.wallet.SelectedAccount()
	return &info, nil
}

func (s *Server) handleWalletNewAccount(req *Request) (interface{}, *Error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	var params NewAccountParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	info, err := s.wallet.NewAccount(params.Name)
	if err != nil {
		return nil, walletError(err)
	}
	return &info, nil
}

func (s *Server) handleWalletDeployAccount(ctx context.Context, req *Request) (interface{}, *Error) {
	if err := s.requireWallet(); err != nil {
		return nil, err
	}
	var params AddressParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	addr, rpcErr := parseAddress(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}

	payload, err := s.wallet.DeployPayload(addr)
	if err != nil {
		return nil, walletError(err)
	}
	meta, err := s.queue.Push(ctx, payload)
	if err != nil {
		return nil, walletError(err)
	}
	return &DeployResult{ActionHash: meta.Hash.String(), State: string(meta.State)}, nil
}
