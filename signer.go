package x402

import "math/big"

// Signer represents a payment signer for one blockchain network.
// Implementations handle chain-specific signing for the EVM family
// (EIP-712/EIP-3009 transfer authorizations) and the Algorand family
// (signed ASA transfer envelopes).
type Signer interface {
	// Network returns the blockchain network identifier (e.g., "base", "algorand").
	Network() string

	// Scheme returns the payment scheme identifier (currently "exact").
	Scheme() string

	// Address returns the signer's chain-native address.
	Address() string

	// CanSign checks whether this signer can satisfy the given payment
	// requirements (network, scheme, and asset match).
	CanSign(requirements *PaymentRequirements) bool

	// Sign creates a signed payment payload for the given requirements.
	// Signing fails with ErrAmountExceeded when the required amount exceeds
	// the signer's configured per-call ceiling.
	Sign(requirements *PaymentRequirements) (*PaymentPayload, error)

	// GetPriority returns the signer's priority level.
	// Lower numbers indicate higher priority.
	GetPriority() int

	// GetTokens returns the tokens this signer can pay with.
	GetTokens() []TokenConfig

	// GetMaxAmount returns the per-call spending limit, or nil if unlimited.
	GetMaxAmount() *big.Int
}
