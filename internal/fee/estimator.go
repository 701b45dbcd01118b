// Package fee estimates transaction fees for the selected wallet account.
//
// The suggested max fee is derived in two stages. The chain account applies
// the safety margin to the raw network estimate (stage 1), then the
// estimator applies the wallet margin on top (stage 2). With the default
// policy the result is three times the raw estimate.
package fee

import (
	"context"

	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	pfee "github.com/Klingon-tech/klingnet-walletd/pkg/fee"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
	"github.com/rs/zerolog"
)

// Estimation paths.
const (
	PathDeploy = "deploy"
	PathInvoke = "invoke"
)

// Account is the chain account the estimator queries.
type Account interface {
	Address() types.Address
	// NeedsDeploy reports whether the account contract is not yet on chain.
	NeedsDeploy() bool
	// EstimateFee quotes an invoke transaction with the stage 1 margin applied.
	EstimateFee(ctx context.Context, t *tx.Transaction) (pfee.Quote, error)
	// DeploymentFee quotes the account deployment with the stage 1 margin applied.
	DeploymentFee(ctx context.Context) (pfee.Quote, error)
}

// AccountSource resolves the account a transaction is estimated for.
type AccountSource interface {
	// Account returns the account with the given address, or the selected
	// account when addr is nil. It returns nil when there is none.
	Account(addr *types.Address) Account
}

// Policy holds the margins of the two-stage max fee policy, in percent.
type Policy struct {
	SafetyMarginPct uint64 // stage 1, applied by the chain account
	WalletMarginPct uint64 // stage 2, applied by the estimator
}

// DefaultPolicy returns the ×1.5 then ×2 policy.
func DefaultPolicy() Policy {
	return Policy{
		SafetyMarginPct: pfee.DefaultSafetyMarginPct,
		WalletMarginPct: pfee.DefaultWalletMarginPct,
	}
}

// Estimate is the fee reported to the page.
type Estimate struct {
	Amount          string `json:"amount"`
	SuggestedMaxFee string `json:"suggestedMaxFee"`
}

// Estimator computes fee estimates. It holds no mutable state and is safe
// for concurrent use.
type Estimator struct {
	accounts AccountSource
	policy   Policy
	metrics  *Metrics
	logger   zerolog.Logger
}

// NewEstimator creates an estimator over the given account source.
func NewEstimator(accounts AccountSource, policy Policy) *Estimator {
	return &Estimator{
		accounts: accounts,
		policy:   policy,
		logger:   klog.WithComponent("fee"),
	}
}

// SetMetrics enables Prometheus instrumentation. Call before use.
func (e *Estimator) SetMetrics(m *Metrics) {
	e.metrics = m
}

// Policy returns the estimator's margin policy.
func (e *Estimator) Policy() Policy {
	return e.policy
}

// EstimateFee estimates the fee of t for its account. If the account still
// needs deployment, the deployment cost is quoted instead of the
// transaction. Returns ErrNoAccount, before any network call, when there is
// no account; every other failure is an *EstimationError.
func (e *Estimator) EstimateFee(ctx context.Context, t *tx.Transaction) (Estimate, error) {
	var addr *types.Address
	if t != nil {
		addr = t.Account
	}
	acct := e.accounts.Account(addr)
	if acct == nil {
		return Estimate{}, ErrNoAccount
	}

	path := PathInvoke
	var (
		quote pfee.Quote
		err   error
	)
	if acct.NeedsDeploy() {
		path = PathDeploy
		quote, err = acct.DeploymentFee(ctx)
	} else {
		quote, err = acct.EstimateFee(ctx, t)
	}
	if err != nil {
		return Estimate{}, e.fail(acct, path, err)
	}

	amount, err := pfee.FromHex(quote.OverallFee)
	if err != nil {
		return Estimate{}, e.fail(acct, path, err)
	}
	maxFee, err := pfee.ApplyOverhead(quote.SuggestedMaxFee, e.policy.WalletMarginPct)
	if err != nil {
		return Estimate{}, e.fail(acct, path, err)
	}

	e.metrics.count(path, "ok")
	est := Estimate{Amount: pfee.ToHex(amount), SuggestedMaxFee: maxFee}
	e.logger.Debug().
		Str("account", acct.Address().String()).
		Str("path", path).
		Str("amount", est.Amount).
		Str("max_fee", est.SuggestedMaxFee).
		Msg("Fee estimated")
	return est, nil
}

func (e *Estimator) fail(acct Account, path string, err error) error {
	e.metrics.count(path, "error")
	e.logger.Warn().
		Err(err).
		Str("account", acct.Address().String()).
		Str("path", path).
		Msg("Fee estimation failed")
	return &EstimationError{Path: path, Err: err}
}
