// Package keystore holds the engine's private key material, encrypted at
// rest in memory under a secret derived from the engine's launch
// configuration, and exposes message/transaction signing without ever
// returning key material after generation.
package keystore

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/passwallet/engine/internal/cryptoutil"
	"github.com/passwallet/engine/internal/txcodec"
	"github.com/passwallet/engine/internal/walleterr"
	"github.com/passwallet/engine/pkg/models"
)

// encryptedKey is the at-rest representation of one managed private key.
type encryptedKey struct {
	sealed []byte
}

// Keystore generates, encrypts, and exercises secp256k1 key material.
// Keys never leave in decrypted form except as the direct return value of
// Keygen/KeygenFromMnemonic, matching the enclave's original contract.
type Keystore struct {
	mu       sync.RWMutex
	aesKey   [32]byte
	byAddr   map[string]encryptedKey
}

// New builds a Keystore whose at-rest encryption key is derived from the
// engine secret via Keccak256, mirroring EnclaveKMS::new.
func New(engineSecret []byte) *Keystore {
	return &Keystore{
		aesKey: cryptoutil.DeriveEncryptionKey(engineSecret),
		byAddr: make(map[string]encryptedKey),
	}
}

// Keygen generates a fresh secp256k1 key pair, encrypts and stores the
// private key, and returns the plaintext private key once — the caller is
// responsible for not leaking it further.
func (k *Keystore) Keygen() (models.Account, error) {
	priv, err := cryptoutil.GenerateKey()
	if err != nil {
		return models.Account{}, walleterr.New(walleterr.KindInternal, "generate key: %v", err)
	}
	address := cryptoutil.AddressFromPublicKey(&priv.PublicKey)
	privHex := cryptoutil.PrivateKeyToHex(priv)

	if err := k.store(address, privHex); err != nil {
		return models.Account{}, err
	}
	return models.Account{Address: address, PrivateKey: privHex}, nil
}

// KeygenFromMnemonic derives an Ethereum key deterministically from a
// BIP-39 mnemonic using the standard BIP-44 Ethereum path
// m/44'/60'/0'/0/{index}, then stores it exactly as Keygen does. This
// supplements random Keygen for callers that need reproducible addresses
// (e.g. recovery flows, test fixtures).
func (k *Keystore) KeygenFromMnemonic(mnemonic string, index uint32) (models.Account, error) {
	seed := bip39.NewSeed(mnemonic, "")
	keyBytes, err := deriveEthereumKey(seed, index)
	if err != nil {
		return models.Account{}, walleterr.New(walleterr.KindInternal, "derive key: %v", err)
	}
	priv, err := cryptoutil.PrivateKeyFromHex(hex.EncodeToString(keyBytes))
	if err != nil {
		return models.Account{}, walleterr.New(walleterr.KindInternal, "parse derived key: %v", err)
	}
	address := cryptoutil.AddressFromPublicKey(&priv.PublicKey)
	privHex := cryptoutil.PrivateKeyToHex(priv)

	if err := k.store(address, privHex); err != nil {
		return models.Account{}, err
	}
	return models.Account{Address: address, PrivateKey: privHex}, nil
}

func (k *Keystore) store(address, privateKeyHex string) error {
	sealed, err := cryptoutil.EncryptGCM(k.aesKey, mustDecodeHex(privateKeyHex))
	if err != nil {
		return walleterr.New(walleterr.KindInternal, "encrypt key: %v", err)
	}
	k.mu.Lock()
	k.byAddr[strings.ToLower(address)] = encryptedKey{sealed: sealed}
	k.mu.Unlock()
	return nil
}

func (k *Keystore) decrypt(address string) ([]byte, error) {
	k.mu.RLock()
	ek, ok := k.byAddr[strings.ToLower(address)]
	k.mu.RUnlock()
	if !ok {
		return nil, walleterr.New(walleterr.KindKeyNotFound, "no key for address %s", address)
	}
	plain, err := cryptoutil.DecryptGCM(k.aesKey, ek.sealed)
	if err != nil {
		return nil, walleterr.New(walleterr.KindInternal, "decrypt key: %v", err)
	}
	return plain, nil
}

// ListAddresses returns every managed address, lowercase, in no
// particular order.
func (k *Keystore) ListAddresses() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.byAddr))
	for addr := range k.byAddr {
		out = append(out, addr)
	}
	return out
}

// SignMessage signs an arbitrary message under the EIP-191 personal-sign
// scheme using the stored key for address, returning a 0x-prefixed
// 65-byte signature.
func (k *Keystore) SignMessage(address, message string) (string, error) {
	rawKey, err := k.decrypt(address)
	if err != nil {
		return "", err
	}
	priv, err := cryptoutil.PrivateKeyFromHex(hex.EncodeToString(rawKey))
	if err != nil {
		return "", walleterr.New(walleterr.KindInternal, "parse stored key: %v", err)
	}
	digest := cryptoutil.PersonalSignHash([]byte(message))
	sig, err := cryptoutil.SignPrehash(digest, priv)
	if err != nil {
		return "", walleterr.New(walleterr.KindInternal, "sign message: %v", err)
	}
	return "0x" + hex.EncodeToString(sig[:]), nil
}

// VerifyMessage reports whether signature is a valid EIP-191 signature of
// message by address.
func VerifyMessage(address, message, signature string) (bool, error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return false, walleterr.New(walleterr.KindSignatureInvalid, "malformed signature hex: %v", err)
	}
	if len(sigBytes) != 65 {
		return false, nil
	}
	var sig [65]byte
	copy(sig[:], sigBytes)

	digest := cryptoutil.PersonalSignHash([]byte(message))
	recovered, err := cryptoutil.RecoverAddress(digest, sig)
	if err != nil {
		return false, walleterr.New(walleterr.KindSignatureInvalid, "recover address: %v", err)
	}
	return strings.EqualFold(recovered, address), nil
}

// SignTransaction signs a legacy transaction for wallet address under the
// given EIP-155 chain ID and returns the final signed RLP payload,
// 0x-prefixed.
func (k *Keystore) SignTransaction(address string, tx txcodec.LegacyTransaction, chainID uint64) (string, error) {
	rawKey, err := k.decrypt(address)
	if err != nil {
		return "", err
	}
	priv, err := cryptoutil.PrivateKeyFromHex(hex.EncodeToString(rawKey))
	if err != nil {
		return "", walleterr.New(walleterr.KindInternal, "parse stored key: %v", err)
	}

	digest := txcodec.SigningHash(tx, chainID)
	sig, err := cryptoutil.SignPrehash(digest, priv)
	if err != nil {
		return "", walleterr.New(walleterr.KindInternal, "sign transaction: %v", err)
	}
	recoveryID := uint64(sig[64] - 27)
	v := recoveryID + 35 + 2*chainID

	encoded, err := txcodec.EncodeSigned(tx, v, sig[:32], sig[32:64])
	if err != nil {
		return "", walleterr.New(walleterr.KindInternal, "encode signed transaction: %v", err)
	}
	return "0x" + hex.EncodeToString(encoded), nil
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil
	}
	return b
}

// deriveEthereumKey walks the BIP-44 Ethereum path m/44'/60'/0'/0/{index}
// from a BIP-39 seed, the same derivation the teacher's ETH generator
// used for its multi-chain HD wallet.
func deriveEthereumKey(seed []byte, index uint32) ([]byte, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	purpose, err := masterKey.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, err
	}
	coin, err := purpose.NewChildKey(bip32.FirstHardenedChild + 60)
	if err != nil {
		return nil, err
	}
	account, err := coin.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, err
	}
	change, err := account.NewChildKey(0)
	if err != nil {
		return nil, err
	}
	child, err := change.NewChildKey(index)
	if err != nil {
		return nil, err
	}
	return child.Key, nil
}
