// Package validation checks payment requirements and payloads before they
// cross a trust boundary: before a challenge is published, and before a
// received payment is handed to the verifier.
package validation

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	x402 "github.com/a2apay/x402-go"
)

var validate = validator.New()

var (
	// evmAddressRegex matches Ethereum-style addresses.
	evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

	// algorandAddressRegex matches the 58-character base32 form of an
	// Algorand address.
	algorandAddressRegex = regexp.MustCompile(`^[A-Z2-7]{58}$`)
)

// ValidateAmount validates that an amount string is a positive decimal
// integer.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("%w: amount cannot be empty", x402.ErrInvalidAmount)
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("%w: %q is not a decimal integer", x402.ErrInvalidAmount, amount)
	}

	if amt.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0, got %s", x402.ErrInvalidAmount, amount)
	}

	return nil
}

// ValidateAddress validates an address against the network's family rules.
func ValidateAddress(address string, network string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch x402.NetworkFamilyOf(network) {
	case x402.FamilyEVM:
		if !evmAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
		}
		return nil

	case x402.FamilyAlgorand:
		if !algorandAddressRegex.MatchString(address) {
			return fmt.Errorf("invalid Algorand address format: %s (expected 58 base32 characters)", address)
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", x402.ErrUnsupportedNetwork, network)
	}
}

// ValidatePaymentRequirements performs comprehensive validation of a payment
// requirements entry: struct-level required fields, then amount, network,
// addresses, scheme, and chain-specific extras.
func ValidatePaymentRequirements(req x402.PaymentRequirements) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", x402.ErrInvalidRequirements, err)
	}

	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return fmt.Errorf("invalid requirements: %w", err)
	}

	cfg, err := x402.LookupNetwork(req.Network)
	if err != nil {
		return fmt.Errorf("invalid requirements: %w", err)
	}

	if err := ValidateAddress(req.PayTo, req.Network); err != nil {
		return fmt.Errorf("invalid requirements: payTo %w", err)
	}

	switch cfg.Family {
	case x402.FamilyEVM:
		if !evmAddressRegex.MatchString(req.Asset) {
			return fmt.Errorf("invalid requirements: asset %q is not a contract address", req.Asset)
		}
	case x402.FamilyAlgorand:
		if _, err := strconv.ParseUint(req.Asset, 10, 64); err != nil {
			return fmt.Errorf("invalid requirements: asset %q is not a decimal asset index", req.Asset)
		}
	}

	if req.Scheme != x402.SchemeExact {
		return fmt.Errorf("%w: %q", x402.ErrUnsupportedScheme, req.Scheme)
	}

	if cfg.Family == x402.FamilyEVM && req.Extra != nil {
		if name, ok := req.Extra["name"].(string); ok && name == "" {
			return fmt.Errorf("invalid requirements: EIP-712 domain name cannot be empty")
		}
		if version, ok := req.Extra["version"].(string); ok && version == "" {
			return fmt.Errorf("invalid requirements: EIP-712 domain version cannot be empty")
		}
	}

	return nil
}

// ValidatePaymentPayload validates the outer payment payload structure. The
// chain-specific inner payload is checked by the verifier.
func ValidatePaymentPayload(payment x402.PaymentPayload) error {
	if payment.X402Version != x402.Version {
		return fmt.Errorf("%w: %d", x402.ErrUnsupportedVersion, payment.X402Version)
	}

	if payment.Scheme != x402.SchemeExact {
		return fmt.Errorf("%w: %q", x402.ErrUnsupportedScheme, payment.Scheme)
	}

	if _, err := x402.LookupNetwork(payment.Network); err != nil {
		return err
	}

	if payment.Payload == nil {
		return fmt.Errorf("%w: payload cannot be nil", x402.ErrMalformedPayload)
	}

	return nil
}
