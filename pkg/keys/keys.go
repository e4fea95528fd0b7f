// Package keys provides the secp256k1 signing keys nodes use to sign transactions
// and p2p envelopes. Uses the same curve and encoding as Ethereum.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const (
	privateKeySize = 32
	hashSize       = 32
	signatureSize  = 64

	minSeedSize = 32
)

// KeyPair is a secp256k1 signing keypair
type KeyPair struct {
	PublicKey  []byte // 33-byte compressed secp256k1 public key
	PrivateKey []byte // 32-byte secp256k1 private key
}

// GenerateKeyPair generates a new random keypair
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 keypair: %w", err)
	}

	return &KeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// DeriveKeyPair deterministically derives the keypair for label (a node name) from the
// network seed. Every node sharing the seed derives the same public keys, so a static
// network map only needs names and addresses.
// Uses HKDF with SHA-256 for key derivation.
func DeriveKeyPair(label string, seed []byte) (*KeyPair, error) {
	if len(seed) < minSeedSize {
		return nil, fmt.Errorf("seed must be at least %d bytes", minSeedSize)
	}

	info := []byte("trader-node-key-" + label)
	hkdfReader := hkdf.New(sha256.New, seed, nil, info)

	privateKeyBytes := make([]byte, privateKeySize)
	if _, err := io.ReadFull(hkdfReader, privateKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to derive key seed: %w", err)
	}

	return KeyPairFromPrivateKey(privateKeyBytes)
}

// KeyPairFromPrivateKey rebuilds a keypair from raw private key bytes
func KeyPairFromPrivateKey(privateKeyBytes []byte) (*KeyPair, error) {
	privateKey, err := crypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create private key: %w", err)
	}

	return &KeyPair{
		PublicKey:  crypto.CompressPubkey(&privateKey.PublicKey),
		PrivateKey: crypto.FromECDSA(privateKey),
	}, nil
}

// PublicKeyHex returns the public key as a hex string
func (kp *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.PublicKey)
}

// SignHash signs a 32-byte digest and returns the 64-byte [R || S] signature
func (kp *KeyPair) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != hashSize {
		return nil, fmt.Errorf("hash must be %d bytes", hashSize)
	}

	privateKey, err := crypto.ToECDSA(kp.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key: %w", err)
	}

	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Drop the recovery id, verifiers always know the public key.
	return signature[:signatureSize], nil
}

// Verify checks a signature produced by SignHash against this keypair
func (kp *KeyPair) Verify(hash, signature []byte) bool {
	return verify(kp.PublicKey, hash, signature)
}

// VerifyHex checks signature over hash against a hex encoded compressed public key
func VerifyHex(publicKeyHex string, hash, signature []byte) bool {
	pub, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return false
	}
	return verify(pub, hash, signature)
}

func verify(publicKey, hash, signature []byte) bool {
	if len(hash) != hashSize || len(signature) != signatureSize {
		return false
	}
	return crypto.VerifySignature(publicKey, hash, signature)
}
