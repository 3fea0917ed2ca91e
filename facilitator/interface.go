// Package facilitator speaks the x402 facilitator wire contract: a remote
// service that verifies and settles payments on behalf of resource servers
// that do not run their own chain infrastructure.
package facilitator

import (
	"context"

	x402 "github.com/a2apay/x402-go"
)

// Interface defines the standard facilitator contract for payment
// verification and settlement.
type Interface interface {
	// Verify checks a payment authorization without executing it.
	Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error)

	// Settle executes a verified payment on the blockchain.
	Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error)

	// Supported queries the facilitator for supported payment kinds.
	Supported(ctx context.Context) (*SupportedResponse, error)
}

// Request is the body of facilitator verify and settle calls.
type Request struct {
	X402Version         int                      `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirements `json:"paymentRequirements"`
}

// SupportedKind describes a supported payment kind with its configuration.
type SupportedKind struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// SupportedResponse lists all payment kinds supported by the facilitator.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}
