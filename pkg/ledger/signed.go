package ledger

import (
	"errors"
	"fmt"

	"github.com/chainsafe/trader-flows/pkg/keys"
)

var (
	// ErrMissingSignature is returned when a required signer has not signed.
	ErrMissingSignature = errors.New("missing signature")
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("invalid signature")
)

// Signature is a signature by Party over a transaction ID.
type Signature struct {
	By    Party  `json:"by"`
	Bytes []byte `json:"bytes"`
}

// Verify checks the signature over id against the signer's public key.
func (s Signature) Verify(id SecureHash) bool {
	return keys.VerifyHex(s.By.Key, id[:], s.Bytes)
}

// Signer signs transaction IDs on behalf of a party.
type Signer interface {
	Party() Party
	Sign(id SecureHash) (Signature, error)
}

type keySigner struct {
	party Party
	kp    *keys.KeyPair
}

// NewSigner binds a keypair to a party name.
func NewSigner(name string, kp *keys.KeyPair) Signer {
	return &keySigner{party: Party{Name: name, Key: kp.PublicKeyHex()}, kp: kp}
}

func (s *keySigner) Party() Party { return s.party }

func (s *keySigner) Sign(id SecureHash) (Signature, error) {
	sig, err := s.kp.SignHash(id[:])
	if err != nil {
		return Signature{}, fmt.Errorf("sign %s: %w", id.Short(), err)
	}
	return Signature{By: s.party, Bytes: sig}, nil
}

// SignedTransaction is a sealed transaction plus the signatures collected so far.
// Values are never mutated; WithSignature returns a copy.
type SignedTransaction struct {
	Tx   *WireTransaction `json:"tx"`
	Sigs []Signature      `json:"sigs"`
}

// NewSignedTransaction signs wtx with signer.
func NewSignedTransaction(wtx *WireTransaction, signer Signer) (*SignedTransaction, error) {
	sig, err := signer.Sign(wtx.ID())
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{Tx: wtx, Sigs: []Signature{sig}}, nil
}

// ID returns the ID of the underlying transaction.
func (stx *SignedTransaction) ID() SecureHash {
	return stx.Tx.ID()
}

// WithSignature returns a copy of stx carrying sig as well. A second signature
// by the same party replaces the first.
func (stx *SignedTransaction) WithSignature(sig Signature) *SignedTransaction {
	sigs := make([]Signature, 0, len(stx.Sigs)+1)
	for _, s := range stx.Sigs {
		if s.By != sig.By {
			sigs = append(sigs, s)
		}
	}
	return &SignedTransaction{Tx: stx.Tx, Sigs: append(sigs, sig)}
}

// SignatureBy returns the signature made by p, if any.
func (stx *SignedTransaction) SignatureBy(p Party) (Signature, bool) {
	for _, s := range stx.Sigs {
		if s.By == p {
			return s, true
		}
	}
	return Signature{}, false
}

// VerifySignatures checks that every attached signature is valid and that every
// required signer has signed, except the parties in allowedMissing.
func (stx *SignedTransaction) VerifySignatures(allowedMissing ...Party) error {
	if stx == nil || stx.Tx == nil {
		return fmt.Errorf("%w: empty transaction", ErrBadSignature)
	}
	id := stx.ID()
	for _, s := range stx.Sigs {
		if !s.Verify(id) {
			return fmt.Errorf("%w: by %s on %s", ErrBadSignature, s.By, id.Short())
		}
	}

	skip := make(map[Party]struct{}, len(allowedMissing))
	for _, p := range allowedMissing {
		skip[p] = struct{}{}
	}
	for _, required := range stx.Tx.RequiredSigners() {
		if _, ok := skip[required]; ok {
			continue
		}
		if _, ok := stx.SignatureBy(required); !ok {
			return fmt.Errorf("%w: %s on %s", ErrMissingSignature, required, id.Short())
		}
	}
	return nil
}

// IsNotarized reports whether the transaction carries a valid signature from its notary.
func (stx *SignedTransaction) IsNotarized() bool {
	if stx == nil || stx.Tx == nil {
		return false
	}
	sig, ok := stx.SignatureBy(stx.Tx.Notary)
	return ok && sig.Verify(stx.ID())
}
