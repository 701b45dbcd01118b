// Package fee holds the fee arithmetic shared by the chain account and the
// wallet fee estimator.
//
// Fee quantities travel as 0x-prefixed hex integer strings. They are decoded
// to integers only where arithmetic happens and encoded back right after.
package fee

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Overhead percentages for the two-stage max fee policy.
// Stage 1 is applied to the raw network estimate by the chain account,
// stage 2 is applied by the wallet on top of the stage 1 result.
const (
	DefaultSafetyMarginPct = 50  // ×1.5
	DefaultWalletMarginPct = 100 // ×2
)

// ErrInvalidAmount is returned for hex strings that are not non-negative integers.
var ErrInvalidAmount = errors.New("invalid fee amount")

var hundred = big.NewInt(100)

// Quote is a fee estimate as returned by the chain account: the raw network
// fee and the stage 1 suggested max fee, both hex encoded.
type Quote struct {
	OverallFee      string `json:"overall_fee"`
	SuggestedMaxFee string `json:"suggested_max_fee"`
}

// EstimatedFeeToMaxFee scales an estimate by (100+overheadPct)/100 using
// integer arithmetic. The division truncates.
func EstimatedFeeToMaxFee(estimated *big.Int, overheadPct uint64) *big.Int {
	if estimated == nil {
		return new(big.Int)
	}
	factor := new(big.Int).SetUint64(100 + overheadPct)
	out := new(big.Int).Mul(estimated, factor)
	return out.Quo(out, hundred)
}

// ToHex encodes a fee amount as a 0x-prefixed hex string. nil encodes as "0x0".
func ToHex(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

// FromHex decodes a 0x-prefixed hex amount. Leading zeros are tolerated
// since chain nodes are not consistent about padding.
func FromHex(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("%w: %q missing 0x prefix", ErrInvalidAmount, s)
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		if len(s) == 2 {
			return nil, fmt.Errorf("%w: empty hex", ErrInvalidAmount)
		}
		return new(big.Int), nil
	}
	v, err := hexutil.DecodeBig("0x" + digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return v, nil
}

// ApplyOverhead decodes a hex amount, applies EstimatedFeeToMaxFee and
// re-encodes the result.
func ApplyOverhead(amountHex string, overheadPct uint64) (string, error) {
	v, err := FromHex(amountHex)
	if err != nil {
		return "", err
	}
	return ToHex(EstimatedFeeToMaxFee(v, overheadPct)), nil
}
