// Package encoding provides utilities for encoding and decoding x402 payment
// data. It handles the base64 JSON form used by the X-PAYMENT and
// X-PAYMENT-RESPONSE HTTP headers and by task metadata.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/a2apay/x402-go"
)

// EncodePayment converts a PaymentPayload to a base64-encoded JSON string,
// the form carried in the X-PAYMENT header.
func EncodePayment(payment x402.PaymentPayload) (string, error) {
	paymentJSON, err := json.Marshal(payment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(paymentJSON), nil
}

// DecodePayment converts a base64-encoded JSON string to a PaymentPayload.
// Malformed input fails with x402.ErrMalformedHeader.
func DecodePayment(encoded string) (x402.PaymentPayload, error) {
	var payment x402.PaymentPayload

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return payment, fmt.Errorf("%w: not base64: %v", x402.ErrMalformedHeader, err)
	}

	if err := json.Unmarshal(decoded, &payment); err != nil {
		return payment, fmt.Errorf("%w: not a payment payload: %v", x402.ErrMalformedHeader, err)
	}

	return payment, nil
}

// EncodeSettlement converts a SettleResponse to a base64-encoded JSON
// string, the form carried in the X-PAYMENT-RESPONSE header.
func EncodeSettlement(settlement x402.SettleResponse) (string, error) {
	settlementJSON, err := json.Marshal(settlement)
	if err != nil {
		return "", fmt.Errorf("failed to marshal settlement: %w", err)
	}
	return base64.StdEncoding.EncodeToString(settlementJSON), nil
}

// DecodeSettlement converts a base64-encoded JSON string to a SettleResponse.
func DecodeSettlement(encoded string) (x402.SettleResponse, error) {
	var settlement x402.SettleResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return settlement, fmt.Errorf("%w: not base64: %v", x402.ErrMalformedHeader, err)
	}

	if err := json.Unmarshal(decoded, &settlement); err != nil {
		return settlement, fmt.Errorf("%w: not a settlement response: %v", x402.ErrMalformedHeader, err)
	}

	return settlement, nil
}

// EncodeRequirements converts a PaymentRequirementsResponse to base64-encoded
// JSON.
func EncodeRequirements(requirements x402.PaymentRequirementsResponse) (string, error) {
	reqJSON, err := json.Marshal(requirements)
	if err != nil {
		return "", fmt.Errorf("failed to marshal requirements: %w", err)
	}
	return base64.StdEncoding.EncodeToString(reqJSON), nil
}

// DecodeRequirements converts base64-encoded JSON to a
// PaymentRequirementsResponse.
func DecodeRequirements(encoded string) (x402.PaymentRequirementsResponse, error) {
	var requirements x402.PaymentRequirementsResponse

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return requirements, fmt.Errorf("%w: not base64: %v", x402.ErrMalformedHeader, err)
	}

	if err := json.Unmarshal(decoded, &requirements); err != nil {
		return requirements, fmt.Errorf("%w: not a requirements response: %v", x402.ErrMalformedHeader, err)
	}

	return requirements, nil
}
