package prospectus

import (
	"testing"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

func TestDigestMatchesEmbeddedDocument(t *testing.T) {
	if got := ledger.HashOf(Document()); got != Digest {
		t.Fatalf("prospectus digest mismatch: constant %s, document %s", Digest, got)
	}
}

func TestDocumentReturnsCopy(t *testing.T) {
	doc := Document()
	doc[0] ^= 0xff
	if ledger.HashOf(Document()) != Digest {
		t.Fatal("mutating the returned document changed the embedded bytes")
	}
}
