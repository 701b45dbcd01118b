package tx

import (
	"errors"
	"fmt"
	"math/big"
)

// Structural limits enforced before an action is queued.
const (
	MaxCalls        = 32
	MaxCalldataLen  = 1024
	MaxEntrypointSz = 128
)

// Validation errors.
var (
	ErrNoCalls          = errors.New("transaction has no calls")
	ErrTooManyCalls     = errors.New("too many calls")
	ErrZeroContract     = errors.New("call targets the zero address")
	ErrEmptyEntrypoint  = errors.New("call has no entrypoint")
	ErrInvalidCalldata  = errors.New("invalid calldata")
	ErrCalldataTooLarge = errors.New("calldata too large")
	ErrInvalidMaxFee    = errors.New("invalid max fee")
	ErrZeroAccount      = errors.New("deploy targets the zero address")
)

// Validate checks transaction structure. It does not touch the chain.
func (t *Transaction) Validate() error {
	if len(t.Calls) == 0 {
		return ErrNoCalls
	}
	if len(t.Calls) > MaxCalls {
		return fmt.Errorf("%w: %d calls, max %d", ErrTooManyCalls, len(t.Calls), MaxCalls)
	}
	for i, c := range t.Calls {
		if c.ContractAddress.IsZero() {
			return fmt.Errorf("call %d: %w", i, ErrZeroContract)
		}
		if c.Entrypoint == "" {
			return fmt.Errorf("call %d: %w", i, ErrEmptyEntrypoint)
		}
		if len(c.Entrypoint) > MaxEntrypointSz {
			return fmt.Errorf("call %d: entrypoint longer than %d bytes", i, MaxEntrypointSz)
		}
		if len(c.Calldata) > MaxCalldataLen {
			return fmt.Errorf("call %d: %w: %d items, max %d", i, ErrCalldataTooLarge, len(c.Calldata), MaxCalldataLen)
		}
		for j, s := range c.Calldata {
			if _, err := ParseFelt(s); err != nil {
				return fmt.Errorf("call %d calldata %d: %w", i, j, err)
			}
		}
	}
	if t.Details != nil && t.Details.MaxFee != "" {
		if _, ok := new(big.Int).SetString(trimHexPrefix(t.Details.MaxFee), 16); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidMaxFee, t.Details.MaxFee)
		}
	}
	return nil
}

// Validate checks the deployment payload.
func (d *DeployAccount) Validate() error {
	if d.Address.IsZero() {
		return ErrZeroAccount
	}
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
