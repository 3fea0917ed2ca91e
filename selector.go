package x402

import (
	"math/big"
	"sort"
	"strings"
)

// PaymentSelector selects a payment offer and a signer able to satisfy it.
type PaymentSelector interface {
	// SelectAndSign chooses one offer from a tiered challenge and the best
	// signer for it, then produces the signed payment.
	SelectAndSign(accepts []PaymentRequirements, signers []Signer) (*PaymentPayload, error)
}

// DefaultPaymentSelector implements the standard selection algorithm:
// offers are considered in the order the merchant listed them (tiered
// pricing, first offer preferred), and within an offer signers are ranked by
// signer priority then token priority, lower numbers first.
type DefaultPaymentSelector struct{}

// NewDefaultPaymentSelector creates a DefaultPaymentSelector.
func NewDefaultPaymentSelector() *DefaultPaymentSelector {
	return &DefaultPaymentSelector{}
}

// SelectAndSign implements PaymentSelector.
func (s *DefaultPaymentSelector) SelectAndSign(accepts []PaymentRequirements, signers []Signer) (*PaymentPayload, error) {
	if len(signers) == 0 {
		return nil, NewPaymentError(ErrCodeNoValidSigner, "no signers configured", ErrNoValidSigner)
	}
	if len(accepts) == 0 {
		return nil, NewPaymentError(ErrCodeInvalidInput, "challenge carries no offers", ErrInvalidRequirements)
	}

	for i := range accepts {
		requirements := &accepts[i]

		requiredAmount := new(big.Int)
		if _, ok := requiredAmount.SetString(requirements.MaxAmountRequired, 10); !ok {
			continue
		}

		candidates := rankCandidates(requirements, requiredAmount, signers)
		if len(candidates) == 0 {
			continue
		}

		payment, err := candidates[0].signer.Sign(requirements)
		if err != nil {
			return nil, NewPaymentError(ErrCodeSigningFailed, "failed to sign payment", err)
		}
		return payment, nil
	}

	return nil, NewPaymentError(ErrCodeNoValidSigner, "no signer can satisfy any offer", ErrNoValidSigner).
		WithDetails("offers", len(accepts))
}

// signerCandidate represents a signer able to satisfy a payment offer.
type signerCandidate struct {
	signer         Signer
	signerPriority int
	tokenPriority  int
}

func rankCandidates(requirements *PaymentRequirements, requiredAmount *big.Int, signers []Signer) []signerCandidate {
	var candidates []signerCandidate
	for _, signer := range signers {
		if !signer.CanSign(requirements) {
			continue
		}

		maxAmount := signer.GetMaxAmount()
		if maxAmount != nil && requiredAmount.Cmp(maxAmount) > 0 {
			continue
		}

		tokenPriority := 0
		for _, token := range signer.GetTokens() {
			if strings.EqualFold(token.Address, requirements.Asset) {
				tokenPriority = token.Priority
				break
			}
		}

		candidates = append(candidates, signerCandidate{
			signer:         signer,
			signerPriority: signer.GetPriority(),
			tokenPriority:  tokenPriority,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].signerPriority != candidates[j].signerPriority {
			return candidates[i].signerPriority < candidates[j].signerPriority
		}
		return candidates[i].tokenPriority < candidates[j].tokenPriority
	})

	return candidates
}
