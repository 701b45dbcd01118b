// Package account implements a chain account: fee quotes with the safety
// margin applied, and signed submission of invoke and deploy transactions.
package account

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-walletd/internal/chainrpc"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	pfee "github.com/Klingon-tech/klingnet-walletd/pkg/fee"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
	"github.com/rs/zerolog"
)

// Account errors.
var (
	ErrNotDeployed     = errors.New("account is not deployed")
	ErrAlreadyDeployed = errors.New("account is already deployed")
	ErrNilTransaction  = errors.New("nil transaction")
	ErrAccountMismatch = errors.New("transaction targets a different account")
)

// Chain is the chain node surface an account needs.
type Chain interface {
	EstimateTransaction(ctx context.Context, p chainrpc.EstimateTransactionParams) (chainrpc.FeeEstimate, error)
	EstimateDeployAccount(ctx context.Context, p chainrpc.EstimateDeployParams) (chainrpc.FeeEstimate, error)
	IsDeployed(ctx context.Context, addr types.Address) (bool, error)
	Nonce(ctx context.Context, addr types.Address) (uint64, error)
	SubmitInvoke(ctx context.Context, env *tx.SignedInvoke) (string, error)
	SubmitDeployAccount(ctx context.Context, env *tx.SignedDeploy) (string, error)
}

// Account is a signing account on chain.
type Account struct {
	name      string
	signer    crypto.Signer
	address   types.Address
	chain     Chain
	safetyPct uint64
	logger    zerolog.Logger

	mu       sync.RWMutex
	deployed bool

	// submit serializes nonce lookup and submission.
	submit sync.Mutex
}

// New creates an account for signer. The account starts as not deployed
// until SetDeployed or Refresh says otherwise.
func New(name string, signer crypto.Signer, chain Chain, safetyMarginPct uint64) *Account {
	addr := crypto.AddressFromPubKey(signer.PublicKey())
	return &Account{
		name:      name,
		signer:    signer,
		address:   addr,
		chain:     chain,
		safetyPct: safetyMarginPct,
		logger:    klog.WithComponent("wallet").With().Str("account", addr.String()).Logger(),
	}
}

// Name returns the account label.
func (a *Account) Name() string { return a.name }

// Address returns the account address.
func (a *Account) Address() types.Address { return a.address }

// PublicKey returns the compressed public key.
func (a *Account) PublicKey() []byte { return a.signer.PublicKey() }

// NeedsDeploy reports whether the account contract is not yet on chain,
// according to the last known status.
func (a *Account) NeedsDeploy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.deployed
}

// SetDeployed records the deployment status.
func (a *Account) SetDeployed(deployed bool) {
	a.mu.Lock()
	a.deployed = deployed
	a.mu.Unlock()
}

// Refresh queries the chain for the deployment status and caches it.
func (a *Account) Refresh(ctx context.Context) (bool, error) {
	deployed, err := a.chain.IsDeployed(ctx, a.address)
	if err != nil {
		return false, err
	}
	a.SetDeployed(deployed)
	return deployed, nil
}

// quote applies the safety margin to a raw network fee.
func (a *Account) quote(raw chainrpc.FeeEstimate) (pfee.Quote, error) {
	maxFee, err := pfee.ApplyOverhead(raw.OverallFee, a.safetyPct)
	if err != nil {
		return pfee.Quote{}, err
	}
	return pfee.Quote{OverallFee: raw.OverallFee, SuggestedMaxFee: maxFee}, nil
}

// EstimateFee quotes an invoke transaction from this account.
func (a *Account) EstimateFee(ctx context.Context, t *tx.Transaction) (pfee.Quote, error) {
	if t == nil {
		return pfee.Quote{}, ErrNilTransaction
	}
	nonce, err := a.nonce(ctx, t)
	if err != nil {
		return pfee.Quote{}, err
	}
	raw, err := a.chain.EstimateTransaction(ctx, chainrpc.EstimateTransactionParams{
		Sender:  a.address,
		Calls:   t.Calls,
		Nonce:   nonce,
		Version: version(t),
	})
	if err != nil {
		return pfee.Quote{}, err
	}
	return a.quote(raw)
}

// DeploymentFee quotes the deployment of this account.
func (a *Account) DeploymentFee(ctx context.Context) (pfee.Quote, error) {
	raw, err := a.chain.EstimateDeployAccount(ctx, chainrpc.EstimateDeployParams{
		Address: a.address,
		PubKey:  hex.EncodeToString(a.signer.PublicKey()),
	})
	if err != nil {
		return pfee.Quote{}, err
	}
	return a.quote(raw)
}

// Execute signs and submits t, returning the chain transaction hash. A max
// fee or nonce pinned in the transaction details is used as given.
func (a *Account) Execute(ctx context.Context, t *tx.Transaction) (string, error) {
	if t == nil {
		return "", ErrNilTransaction
	}
	if t.Account != nil && *t.Account != a.address {
		return "", ErrAccountMismatch
	}
	if a.NeedsDeploy() {
		return "", ErrNotDeployed
	}

	a.submit.Lock()
	defer a.submit.Unlock()

	nonce, err := a.nonce(ctx, t)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	maxFeeHex := ""
	if t.Details != nil {
		maxFeeHex = t.Details.MaxFee
	}
	if maxFeeHex == "" {
		q, err := a.EstimateFee(ctx, withNonce(t, nonce))
		if err != nil {
			return "", fmt.Errorf("estimate fee: %w", err)
		}
		maxFeeHex = q.SuggestedMaxFee
	}
	maxFee, err := pfee.FromHex(maxFeeHex)
	if err != nil {
		return "", err
	}

	h, err := t.Hash(a.address, nonce, maxFee)
	if err != nil {
		return "", err
	}
	sig, err := a.signer.Sign(h[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	txHash, err := a.chain.SubmitInvoke(ctx, &tx.SignedInvoke{
		Sender:    a.address,
		Calls:     t.Calls,
		Nonce:     nonce,
		MaxFee:    pfee.ToHex(maxFee),
		Version:   version(t),
		Signature: sig,
		PubKey:    a.signer.PublicKey(),
	})
	if err != nil {
		return "", err
	}

	a.logger.Info().
		Str("tx", txHash).
		Uint64("nonce", nonce).
		Str("max_fee", pfee.ToHex(maxFee)).
		Int("calls", len(t.Calls)).
		Msg("Transaction submitted")
	return txHash, nil
}

// Deploy signs and submits the account deployment. On success the account
// is marked deployed.
func (a *Account) Deploy(ctx context.Context) (string, error) {
	if !a.NeedsDeploy() {
		return "", ErrAlreadyDeployed
	}

	a.submit.Lock()
	defer a.submit.Unlock()

	q, err := a.DeploymentFee(ctx)
	if err != nil {
		return "", fmt.Errorf("estimate deployment fee: %w", err)
	}
	maxFee, err := pfee.FromHex(q.SuggestedMaxFee)
	if err != nil {
		return "", err
	}

	d := &tx.DeployAccount{Address: a.address}
	h := d.Hash(a.signer.PublicKey(), maxFee)
	sig, err := a.signer.Sign(h[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	txHash, err := a.chain.SubmitDeployAccount(ctx, tx.NewSignedDeploy(a.address, a.signer.PublicKey(), q.SuggestedMaxFee, sig))
	if err != nil {
		return "", err
	}
	a.SetDeployed(true)

	a.logger.Info().Str("tx", txHash).Str("max_fee", q.SuggestedMaxFee).Msg("Account deployment submitted")
	return txHash, nil
}

func (a *Account) nonce(ctx context.Context, t *tx.Transaction) (uint64, error) {
	if t.Details != nil && t.Details.Nonce != nil {
		return *t.Details.Nonce, nil
	}
	return a.chain.Nonce(ctx, a.address)
}

func version(t *tx.Transaction) uint32 {
	if t.Details != nil && t.Details.Version != 0 {
		return t.Details.Version
	}
	return tx.CurrentVersion
}

// withNonce returns a shallow copy of t with the nonce pinned, so the fee
// estimate does not query the chain a second time.
func withNonce(t *tx.Transaction, nonce uint64) *tx.Transaction {
	cp := *t
	d := tx.Details{}
	if t.Details != nil {
		d = *t.Details
	}
	d.Nonce = &nonce
	cp.Details = &d
	return &cp
}
