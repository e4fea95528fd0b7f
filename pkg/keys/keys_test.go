package keys

import (
	"crypto/sha256"
	"testing"
)

const (
	secp256k1PrivateKeySize = 32 // secp256k1 private key is 32 bytes
	secp256k1PublicKeySize  = 33 // Compressed secp256k1 public key is 33 bytes
)

func testSeed() []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestGenerateKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}

	if len(kp.PublicKey) != secp256k1PublicKeySize {
		t.Errorf("Expected public key size %d, got %d", secp256k1PublicKeySize, len(kp.PublicKey))
	}
	if len(kp.PrivateKey) != secp256k1PrivateKeySize {
		t.Errorf("Expected private key size %d, got %d", secp256k1PrivateKeySize, len(kp.PrivateKey))
	}

	hash := sha256.Sum256([]byte("test message"))
	signature, err := kp.SignHash(hash[:])
	if err != nil {
		t.Fatalf("SignHash failed: %v", err)
	}
	if !kp.Verify(hash[:], signature) {
		t.Error("Signature verification failed")
	}
	if !VerifyHex(kp.PublicKeyHex(), hash[:], signature) {
		t.Error("Hex signature verification failed")
	}
}

func TestDeriveKeyPair(t *testing.T) {
	seed := testSeed()

	kp1, err := DeriveKeyPair("Bank A", seed)
	if err != nil {
		t.Fatalf("DeriveKeyPair failed: %v", err)
	}
	kp2, err := DeriveKeyPair("Bank A", seed)
	if err != nil {
		t.Fatalf("DeriveKeyPair (2nd call) failed: %v", err)
	}
	if kp1.PublicKeyHex() != kp2.PublicKeyHex() {
		t.Error("Derived public keys don't match")
	}

	kp3, err := DeriveKeyPair("Bank B", seed)
	if err != nil {
		t.Fatalf("DeriveKeyPair (different label) failed: %v", err)
	}
	if kp1.PublicKeyHex() == kp3.PublicKeyHex() {
		t.Error("Different labels produced same key")
	}
}

func TestDeriveKeyPairShortSeed(t *testing.T) {
	if _, err := DeriveKeyPair("Bank A", make([]byte, 16)); err == nil {
		t.Error("Expected error for short seed, got nil")
	}
}

func TestVerifyRejectsWrongKeyAndTamperedHash(t *testing.T) {
	seed := testSeed()
	signer, _ := DeriveKeyPair("signer", seed)
	other, _ := DeriveKeyPair("other", seed)

	hash := sha256.Sum256([]byte("payload"))
	sig, err := signer.SignHash(hash[:])
	if err != nil {
		t.Fatalf("SignHash failed: %v", err)
	}

	if other.Verify(hash[:], sig) {
		t.Error("signature verified against the wrong key")
	}

	tampered := sha256.Sum256([]byte("payload!"))
	if signer.Verify(tampered[:], sig) {
		t.Error("signature verified against a different hash")
	}

	if VerifyHex("not-hex", hash[:], sig) {
		t.Error("invalid public key hex accepted")
	}
}

func TestSignHashRejectsWrongLength(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	if _, err := kp.SignHash([]byte("short")); err == nil {
		t.Error("expected error for non 32-byte hash")
	}
}
