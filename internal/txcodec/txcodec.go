// Package txcodec builds and encodes legacy (pre-EIP-1559) Ethereum
// transactions: the EIP-155 signing hash, the final signed RLP payload,
// and ERC-20 transfer calldata.
package txcodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/passwallet/engine/internal/cryptoutil"
)

// LegacyTransaction is an unsigned legacy Ethereum transaction. To is
// empty for contract-creation transactions (not used by this engine, but
// kept for fidelity with the upstream format).
type LegacyTransaction struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       []byte // 20-byte address, or nil for contract creation
	Value    *big.Int
	Data     []byte
}

// rlpLegacyTx mirrors the 9-element legacy list: the 6 transaction fields
// followed by V, R, S. The pre-signature (EIP-155) encoding fills V, R, S
// with chainId, 0, 0, so both encodings reuse the same field list via
// go-ethereum's rlp package.
type rlpLegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       []byte
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// SigningHash computes the EIP-155 transaction hash to be signed:
// Keccak256(RLP([nonce, gasPrice, gasLimit, to, value, data, chainId, 0, 0])).
func SigningHash(tx LegacyTransaction, chainID uint64) [32]byte {
	payload := rlpLegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: orZero(tx.GasPrice),
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    orZero(tx.Value),
		Data:     tx.Data,
		V:        new(big.Int).SetUint64(chainID),
		R:        big.NewInt(0),
		S:        big.NewInt(0),
	}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		// rlp.EncodeToBytes only fails on unsupported Go types; every
		// field above is RLP-encodable, so this is unreachable in
		// practice.
		panic(fmt.Sprintf("txcodec: encode signing payload: %v", err))
	}
	return cryptoutil.Keccak256(encoded)
}

// EncodeSigned RLP-encodes the final signed transaction given the
// EIP-155 v value and the r, s signature components.
func EncodeSigned(tx LegacyTransaction, v uint64, r, s []byte) ([]byte, error) {
	payload := rlpLegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: orZero(tx.GasPrice),
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    orZero(tx.Value),
		Data:     tx.Data,
		V:        new(big.Int).SetUint64(v),
		R:        new(big.Int).SetBytes(r),
		S:        new(big.Int).SetBytes(s),
	}
	return rlp.EncodeToBytes(payload)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// erc20TransferSelector is the 4-byte function selector for
// transfer(address,uint256).
var erc20TransferSelector = [4]byte{0xa9, 0x05, 0x9c, 0xbb}

// ERC20TransferData builds calldata for transfer(address,uint256):
// selector || pad32(recipient) || pad32(amount).
func ERC20TransferData(recipient [20]byte, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector[:]...)
	data = append(data, pad32Left(recipient[:])...)
	data = append(data, pad32Left(orZero(amount).Bytes())...)
	return data
}

func pad32Left(b []byte) []byte {
	out := make([]byte, 32)
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}
