package tx

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/Klingon-tech/klingnet-walletd/pkg/crypto"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// DeployAccount is the payload of a DEPLOY_ACCOUNT action. Account contracts
// must be deployed on chain before they can send invoke transactions.
type DeployAccount struct {
	Address types.Address `json:"address"`
}

// ActionType tags the deployment for the action queue.
func (d *DeployAccount) ActionType() types.ActionType {
	return types.ActionDeployAccount
}

// SigningBytes returns the bytes signed when deploying the account with pubKey.
// Format: tag_len(4) | "deploy" | address(20) | pubkey_len(4) | pubkey | max_fee_len(4) | max_fee
func (d *DeployAccount) SigningBytes(pubKey []byte, maxFee *big.Int) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 6)
	buf = append(buf, "deploy"...)
	buf = append(buf, d.Address[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pubKey)))
	buf = append(buf, pubKey...)
	return appendBig(buf, maxFee)
}

// Hash computes the deployment transaction hash.
func (d *DeployAccount) Hash(pubKey []byte, maxFee *big.Int) types.Hash {
	return crypto.Hash(d.SigningBytes(pubKey, maxFee))
}

// SignedDeploy is the envelope submitted to the chain node for a DEPLOY_ACCOUNT action.
type SignedDeploy struct {
	Address   types.Address `json:"address"`
	PubKey    string        `json:"pubkey"`
	MaxFee    string        `json:"max_fee"`
	Signature string        `json:"signature"`
}

// NewSignedDeploy builds the envelope with hex-encoded key material.
func NewSignedDeploy(addr types.Address, pubKey []byte, maxFee string, sig []byte) *SignedDeploy {
	return &SignedDeploy{
		Address:   addr,
		PubKey:    hex.EncodeToString(pubKey),
		MaxFee:    maxFee,
		Signature: hex.EncodeToString(sig),
	}
}
