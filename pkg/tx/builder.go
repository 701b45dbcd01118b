package tx

import (
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{tx: &Transaction{}}
}

// AddCall appends a contract invocation.
func (b *Builder) AddCall(contract types.Address, entrypoint string, calldata ...string) *Builder {
	b.tx.Calls = append(b.tx.Calls, Call{
		ContractAddress: contract,
		Entrypoint:      entrypoint,
		Calldata:        calldata,
	})
	return b
}

// SetAccount pins the signer account instead of using the selected one.
func (b *Builder) SetAccount(addr types.Address) *Builder {
	b.tx.Account = &addr
	return b
}

// SetNonce pins the nonce instead of querying the chain at submission.
func (b *Builder) SetNonce(nonce uint64) *Builder {
	b.details().Nonce = &nonce
	return b
}

// SetMaxFee pins the max fee (0x-hex) instead of estimating at submission.
func (b *Builder) SetMaxFee(maxFee string) *Builder {
	b.details().MaxFee = maxFee
	return b
}

func (b *Builder) details() *Details {
	if b.tx.Details == nil {
		b.tx.Details = &Details{}
	}
	return b.tx.Details
}

// Build returns the constructed transaction.
// Does NOT validate; call Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}
