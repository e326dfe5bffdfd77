package cryptoutil

import (
	"strings"
	"testing"
)

func TestGenerateKey_AddressFormat(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := AddressFromPublicKey(&priv.PublicKey)
	if !strings.HasPrefix(addr, "0x") {
		t.Errorf("address should start with 0x, got %s", addr)
	}
	if len(addr) != 42 {
		t.Errorf("address should be 42 chars, got %d: %s", len(addr), addr)
	}
	if addr != strings.ToLower(addr) {
		t.Errorf("address should be rendered all-lowercase, got %s", addr)
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	priv1, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	priv2, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr1 := AddressFromPublicKey(&priv1.PublicKey)
	addr2 := AddressFromPublicKey(&priv2.PublicKey)
	if addr1 == addr2 {
		t.Error("two independently generated keys produced the same address")
	}
}

func TestPrivateKeyHexRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hexKey := PrivateKeyToHex(priv)
	if !strings.HasPrefix(hexKey, "0x") {
		t.Errorf("private key hex should start with 0x, got %s", hexKey)
	}
	parsed, err := PrivateKeyFromHex(hexKey)
	if err != nil {
		t.Fatal(err)
	}
	wantAddr := AddressFromPublicKey(&priv.PublicKey)
	gotAddr := AddressFromPublicKey(&parsed.PublicKey)
	if wantAddr != gotAddr {
		t.Errorf("round-tripped key produced different address: %s vs %s", gotAddr, wantAddr)
	}
}

func TestSignAndRecover(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := AddressFromPublicKey(&priv.PublicKey)

	digest := PersonalSignHash([]byte("hello pass wallet"))
	sig, err := SignPrehash(digest, priv)
	if err != nil {
		t.Fatal(err)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Errorf("v byte should be 27 or 28, got %d", sig[64])
	}

	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		t.Fatal(err)
	}
	if recovered != addr {
		t.Errorf("recovered address %s does not match signer %s", recovered, addr)
	}
	if recovered != strings.ToLower(recovered) {
		t.Errorf("recovered address should be rendered all-lowercase, got %s", recovered)
	}
}

func TestRecoverAddress_WrongDigestFails(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	addr := AddressFromPublicKey(&priv.PublicKey)

	digest := PersonalSignHash([]byte("message one"))
	sig, err := SignPrehash(digest, priv)
	if err != nil {
		t.Fatal(err)
	}

	otherDigest := PersonalSignHash([]byte("message two"))
	recovered, err := RecoverAddress(otherDigest, sig)
	if err != nil {
		t.Fatal(err)
	}
	if strings.EqualFold(recovered, addr) {
		t.Error("recovering against a different digest should not match the original signer")
	}
}

func TestEncryptDecryptGCM_RoundTrip(t *testing.T) {
	key := Keccak256([]byte("engine secret"))
	plaintext := []byte("super secret private key bytes!")

	sealed, err := EncryptGCM(key, plaintext)
	if err != nil {
		t.Fatal(err)
	}
	if len(sealed) <= len(plaintext) {
		t.Error("sealed output should include nonce and auth tag overhead")
	}

	opened, err := DecryptGCM(key, sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(opened) != string(plaintext) {
		t.Errorf("decrypted plaintext mismatch: got %q want %q", opened, plaintext)
	}
}

func TestDecryptGCM_WrongKeyFails(t *testing.T) {
	key := Keccak256([]byte("engine secret"))
	wrongKey := Keccak256([]byte("different secret"))
	sealed, err := EncryptGCM(key, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptGCM(wrongKey, sealed); err == nil {
		t.Error("decrypting with the wrong key should fail authentication")
	}
}

func TestKeccak256_KnownVector(t *testing.T) {
	// Keccak256("") per the Ethereum flavor (not NIST SHA3-256).
	got := Keccak256([]byte{})
	want := "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"[:64]
	if hexEncode(got[:]) != want {
		t.Errorf("Keccak256(\"\") = %s, want %s", hexEncode(got[:]), want)
	}
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}
