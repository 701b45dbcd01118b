// Package chainrpc is the typed client for the chain node methods the wallet
// needs: fee estimation, account state and transaction submission.
package chainrpc

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-walletd/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Chain node method names.
const (
	MethodEstimateTransaction   = "fee_estimateTransaction"
	MethodEstimateDeployAccount = "fee_estimateDeployAccount"
	MethodIsDeployed            = "account_isDeployed"
	MethodGetNonce              = "account_getNonce"
	MethodSubmitInvoke          = "tx_submitInvoke"
	MethodSubmitDeployAccount   = "tx_submitDeployAccount"
)

// FeeEstimate is the raw network fee for a transaction, hex encoded.
type FeeEstimate struct {
	OverallFee string `json:"overall_fee"`
}

// EstimateTransactionParams asks the node to simulate an invoke.
type EstimateTransactionParams struct {
	Sender  types.Address `json:"sender"`
	Calls   []tx.Call     `json:"calls"`
	Nonce   uint64        `json:"nonce"`
	Version uint32        `json:"version"`
}

// EstimateDeployParams asks the node to price an account deployment.
type EstimateDeployParams struct {
	Address types.Address `json:"address"`
	PubKey  string        `json:"pubkey"`
}

// AddressParam is the parameter of the account_* methods.
type AddressParam struct {
	Address types.Address `json:"address"`
}

// DeployedResult is the result of account_isDeployed.
type DeployedResult struct {
	Deployed bool `json:"deployed"`
}

// NonceResult is the result of account_getNonce.
type NonceResult struct {
	Nonce uint64 `json:"nonce"`
}

// SubmitResult is the result of the tx_submit* methods.
type SubmitResult struct {
	TxHash string `json:"tx_hash"`
}

// Client calls the chain node.
type Client struct {
	rpc *rpcclient.Client
}

// New creates a chain client for the node at endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{rpc: rpcclient.NewWithTimeout(endpoint, timeout)}
}

// Endpoint returns the node URL.
func (c *Client) Endpoint() string {
	return c.rpc.Endpoint()
}

// EstimateTransaction returns the raw network fee of an invoke.
func (c *Client) EstimateTransaction(ctx context.Context, p EstimateTransactionParams) (FeeEstimate, error) {
	var out FeeEstimate
	if err := c.rpc.Call(ctx, MethodEstimateTransaction, p, &out); err != nil {
		return FeeEstimate{}, fmt.Errorf("%s: %w", MethodEstimateTransaction, err)
	}
	return out, nil
}

// EstimateDeployAccount returns the raw network fee of deploying an account.
func (c *Client) EstimateDeployAccount(ctx context.Context, p EstimateDeployParams) (FeeEstimate, error) {
	var out FeeEstimate
	if err := c.rpc.Call(ctx, MethodEstimateDeployAccount, p, &out); err != nil {
		return FeeEstimate{}, fmt.Errorf("%s: %w", MethodEstimateDeployAccount, err)
	}
	return out, nil
}

// IsDeployed reports whether the account contract exists on chain.
func (c *Client) IsDeployed(ctx context.Context, addr types.Address) (bool, error) {
	var out DeployedResult
	if err := c.rpc.Call(ctx, MethodIsDeployed, AddressParam{Address: addr}, &out); err != nil {
		return false, fmt.Errorf("%s: %w", MethodIsDeployed, err)
	}
	return out.Deployed, nil
}

// Nonce returns the next nonce of the account.
func (c *Client) Nonce(ctx context.Context, addr types.Address) (uint64, error) {
	var out NonceResult
	if err := c.rpc.Call(ctx, MethodGetNonce, AddressParam{Address: addr}, &out); err != nil {
		return 0, fmt.Errorf("%s: %w", MethodGetNonce, err)
	}
	return out.Nonce, nil
}

// SubmitInvoke broadcasts a signed invoke and returns the chain tx hash.
func (c *Client) SubmitInvoke(ctx context.Context, env *tx.SignedInvoke) (string, error) {
	var out SubmitResult
	if err := c.rpc.Call(ctx, MethodSubmitInvoke, env, &out); err != nil {
		return "", fmt.Errorf("%s: %w", MethodSubmitInvoke, err)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("%s: empty transaction hash", MethodSubmitInvoke)
	}
	return out.TxHash, nil
}

// SubmitDeployAccount broadcasts a signed deployment and returns the chain tx hash.
func (c *Client) SubmitDeployAccount(ctx context.Context, env *tx.SignedDeploy) (string, error) {
	var out SubmitResult
	if err := c.rpc.Call(ctx, MethodSubmitDeployAccount, env, &out); err != nil {
		return "", fmt.Errorf("%s: %w", MethodSubmitDeployAccount, err)
	}
	if out.TxHash == "" {
		return "", fmt.Errorf("%s: empty transaction hash", MethodSubmitDeployAccount)
	}
	return out.TxHash, nil
}
