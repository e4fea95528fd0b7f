package node

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/flows/trade"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/keys"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// TradeSettings converts the trader config section.
func TradeSettings(cfg config.TraderConfig) (trade.Settings, error) {
	face, err := decimal.NewFromString(cfg.PaperFaceValue)
	if err != nil {
		return trade.Settings{}, fmt.Errorf("trader.paper_face_value: %w", err)
	}
	maxPrice := decimal.Zero
	if cfg.MaxPrice != "" {
		if maxPrice, err = decimal.NewFromString(cfg.MaxPrice); err != nil {
			return trade.Settings{}, fmt.Errorf("trader.max_price: %w", err)
		}
	}
	return trade.Settings{
		Notary:            cfg.NotaryName,
		FaceValueQuantity: face,
		Maturity:          cfg.PaperMaturity,
		Issuer:            cfg.IssuerName,
		IssuanceReference: cfg.IssuanceReference,
		MaxPrice:          maxPrice,
	}, nil
}

// IssuerPolicy converts the issuer config section.
func IssuerPolicy(cfg config.IssuerConfig) (issuance.Policy, error) {
	policy := issuance.Policy{Currencies: cfg.Currencies}
	if cfg.MaxAmount != "" {
		maxAmount, err := decimal.NewFromString(cfg.MaxAmount)
		if err != nil {
			return issuance.Policy{}, fmt.Errorf("issuer.max_amount: %w", err)
		}
		policy.MaxAmount = maxAmount
	}
	return policy, nil
}

// DirectoryFromConfig builds the network map. Peers without a configured public key
// get the key derived from the shared network seed, unless peer keys are required.
func DirectoryFromConfig(cfg config.NetworkConfig, seed []byte) (*identity.Directory, error) {
	d := identity.NewDirectory()
	for _, p := range cfg.Peers {
		key := p.PublicKey
		if key == "" {
			if cfg.RequirePeerKeys {
				return nil, fmt.Errorf("peer %s: public_key is required", p.Name)
			}
			kp, err := keys.DeriveKeyPair(p.Name, seed)
			if err != nil {
				return nil, fmt.Errorf("derive key for %s: %w", p.Name, err)
			}
			key = kp.PublicKeyHex()
		}
		d.Register(identity.NodeInfo{
			Party:   ledger.Party{Name: p.Name, Key: key},
			Address: p.Address,
			Notary:  p.Notary,
		})
	}
	return d, nil
}

// NodeSigner derives this node's signing key from the network seed.
func NodeSigner(name string, seed []byte) (ledger.Signer, error) {
	kp, err := keys.DeriveKeyPair(name, seed)
	if err != nil {
		return nil, fmt.Errorf("derive node key: %w", err)
	}
	return ledger.NewSigner(name, kp), nil
}
