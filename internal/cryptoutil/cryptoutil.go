// Package cryptoutil provides the low-level secp256k1/Keccak-256/AES-GCM
// primitives shared by the keystore and txcodec packages.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// AddressFromPublicKey derives the lowercase, 0x-prefixed Ethereum address
// for an uncompressed secp256k1 public key — Keccak256 of the 64-byte
// point, last 20 bytes.
func AddressFromPublicKey(pub *ecdsa.PublicKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
}

// GenerateKey produces a fresh secp256k1 key pair.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// PrivateKeyToHex returns the 0x-prefixed hex encoding of a private key's
// raw scalar bytes.
func PrivateKeyToHex(priv *ecdsa.PrivateKey) string {
	return "0x" + hex.EncodeToString(crypto.FromECDSA(priv))
}

// PrivateKeyFromHex parses a 0x-prefixed or bare hex private key.
func PrivateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	clean := trimHexPrefix(hexKey)
	return crypto.HexToECDSA(clean)
}

// PersonalSignHash computes the EIP-191 "Ethereum Signed Message" digest
// for an arbitrary message: Keccak256("\x19Ethereum Signed
// Message:\n{len(message)}" || message).
func PersonalSignHash(message []byte) [32]byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return [32]byte(crypto.Keccak256([]byte(prefix), message))
}

// SignPrehash signs a 32-byte digest and returns a 65-byte Ethereum
// signature (r || s || v) with v in {27, 28}.
func SignPrehash(digest [32]byte, priv *ecdsa.PrivateKey) ([65]byte, error) {
	sig, err := crypto.Sign(digest[:], priv)
	if err != nil {
		return [65]byte{}, fmt.Errorf("sign prehash: %w", err)
	}
	var out [65]byte
	copy(out[:], sig)
	out[64] = sig[64] + 27
	return out, nil
}

// RecoverAddress recovers the signing address from a digest and a
// 65-byte Ethereum-formatted signature.
func RecoverAddress(digest [32]byte, sig [65]byte) (string, error) {
	raw := make([]byte, 65)
	copy(raw, sig[:])
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// Keccak256 hashes data using the Ethereum flavor of Keccak (not
// NIST SHA3-256).
func Keccak256(data ...[]byte) [32]byte {
	return [32]byte(crypto.Keccak256(data...))
}

// EncryptGCM seals plaintext with AES-256-GCM under key, prefixing the
// output with a freshly generated 12-byte nonce.
func EncryptGCM(key [32]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// DecryptGCM opens a ciphertext produced by EncryptGCM.
func DecryptGCM(key [32]byte, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// DeriveEncryptionKey folds an arbitrary-length engine secret down to the
// 32-byte AES-256 key via Keccak256, mirroring the enclave's own
// secret-to-key derivation.
func DeriveEncryptionKey(secret []byte) [32]byte {
	return Keccak256(secret)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
