// Package tx defines the action payloads the wallet queues and submits.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// CurrentVersion is the invoke transaction version produced by the wallet.
const CurrentVersion = 1

// Call is a single contract invocation inside a transaction.
type Call struct {
	ContractAddress types.Address `json:"contractAddress"`
	Entrypoint      string        `json:"entrypoint"`
	Calldata        []string      `json:"calldata,omitempty"` // 0x-hex or decimal integers.
}

// Details carries optional submission parameters supplied by the dapp.
type Details struct {
	Nonce   *uint64 `json:"nonce,omitempty"`
	MaxFee  string  `json:"maxFee,omitempty"` // 0x-hex; empty means estimate at submission.
	Version uint32  `json:"version,omitempty"`
}

// Transaction is the payload of a TRANSACTION action: the calls a page asked
// the wallet to execute.
type Transaction struct {
	Calls   []Call         `json:"transactions"`
	Account *types.Address `json:"account,omitempty"` // nil = selected account.
	Details *Details       `json:"transactionsDetail,omitempty"`
}

// ActionType tags the transaction for the action queue.
func (t *Transaction) ActionType() types.ActionType {
	return types.ActionTransaction
}

// Selector returns the entrypoint selector for a function name.
func Selector(entrypoint string) types.Hash {
	return crypto.HashTagged("klingwallet/selector", []byte(entrypoint))
}

// SigningBytes returns the canonical byte representation signed by sender.
// Format: version(4) | sender(20) | nonce(8) | max_fee_len(4) | max_fee | call_count(4) |
// [contract(20) | selector(32) | calldata_count(4) | [felt_len(4) | felt]...]...
func (t *Transaction) SigningBytes(sender types.Address, nonce uint64, maxFee *big.Int) ([]byte, error) {
	version := uint32(CurrentVersion)
	if t.Details != nil && t.Details.Version != 0 {
		version = t.Details.Version
	}

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, version)
	buf = append(buf, sender[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, nonce)
	buf = appendBig(buf, maxFee)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Calls)))
	for i, c := range t.Calls {
		sel := Selector(c.Entrypoint)
		buf = append(buf, c.ContractAddress[:]...)
		buf = append(buf, sel[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Calldata)))
		for j, s := range c.Calldata {
			felt, err := ParseFelt(s)
			if err != nil {
				return nil, fmt.Errorf("call %d calldata %d: %w", i, j, err)
			}
			buf = appendBig(buf, felt)
		}
	}
	return buf, nil
}

// Hash computes the chain transaction hash for the given sender parameters.
func (t *Transaction) Hash(sender types.Address, nonce uint64, maxFee *big.Int) (types.Hash, error) {
	b, err := t.SigningBytes(sender, nonce, maxFee)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(b), nil
}

// ParseFelt parses a non-negative calldata integer in 0x-hex or decimal.
func ParseFelt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCalldata, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %q", ErrInvalidCalldata, s)
	}
	return v, nil
}

func appendBig(buf []byte, v *big.Int) []byte {
	var b []byte
	if v != nil {
		b = v.Bytes()
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// SignedInvoke is the envelope submitted to the chain node for a TRANSACTION action.
type SignedInvoke struct {
	Sender    types.Address `json:"sender"`
	Calls     []Call        `json:"calls"`
	Nonce     uint64        `json:"nonce"`
	MaxFee    string        `json:"max_fee"`
	Version   uint32        `json:"version"`
	Signature []byte        `json:"-"`
	PubKey    []byte        `json:"-"`
}

// signedInvokeJSON is the JSON representation with hex-encoded byte fields.
type signedInvokeJSON struct {
	Sender    types.Address `json:"sender"`
	Calls     []Call        `json:"calls"`
	Nonce     uint64        `json:"nonce"`
	MaxFee    string        `json:"max_fee"`
	Version   uint32        `json:"version"`
	Signature string        `json:"signature"`
	PubKey    string        `json:"pubkey"`
}

// MarshalJSON encodes the envelope with hex-encoded signature and pubkey.
func (s SignedInvoke) MarshalJSON() ([]byte, error) {
	return json.Marshal(signedInvokeJSON{
		Sender:    s.Sender,
		Calls:     s.Calls,
		Nonce:     s.Nonce,
		MaxFee:    s.MaxFee,
		Version:   s.Version,
		Signature: hex.EncodeToString(s.Signature),
		PubKey:    hex.EncodeToString(s.PubKey),
	})
}

// UnmarshalJSON decodes an envelope with hex-encoded signature and pubkey.
func (s *SignedInvoke) UnmarshalJSON(data []byte) error {
	var j signedInvokeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := hex.DecodeString(j.Signature)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	pub, err := hex.DecodeString(j.PubKey)
	if err != nil {
		return fmt.Errorf("pubkey: %w", err)
	}
	*s = SignedInvoke{
		Sender:    j.Sender,
		Calls:     j.Calls,
		Nonce:     j.Nonce,
		MaxFee:    j.MaxFee,
		Version:   j.Version,
		Signature: sig,
		PubKey:    pub,
	}
	return nil
}
