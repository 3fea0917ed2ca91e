package x402

import "errors"

// PaymentRequiredError is the signal a resource provider raises instead of a
// bare HTTP 402: a typed error carrying one or more acceptable payment
// options (tiered pricing). It is an explicit return path, not control flow
// by stack unwinding: callers branch on it with AsPaymentRequired.
type PaymentRequiredError struct {
	// Message is the human-readable reason payment is required.
	Message string

	// Accepts is the ordered list of acceptable payment options. The caller
	// must satisfy exactly one; the first is the conventional choice.
	Accepts []PaymentRequirements
}

// NewPaymentRequired creates a challenge offering the given payment options.
func NewPaymentRequired(message string, accepts ...PaymentRequirements) *PaymentRequiredError {
	return &PaymentRequiredError{Message: message, Accepts: accepts}
}

// Error implements the error interface.
func (e *PaymentRequiredError) Error() string {
	if e.Message != "" {
		return "payment required: " + e.Message
	}
	return "payment required"
}

// Response serializes the challenge into its canonical wire form.
func (e *PaymentRequiredError) Response() *PaymentRequirementsResponse {
	return &PaymentRequirementsResponse{
		X402Version: Version,
		Error:       e.Message,
		Accepts:     e.Accepts,
	}
}

// AsPaymentRequired extracts a PaymentRequiredError from an error chain.
// It returns nil when err does not carry a payment challenge.
func AsPaymentRequired(err error) *PaymentRequiredError {
	var pr *PaymentRequiredError
	if errors.As(err, &pr) {
		return pr
	}
	return nil
}
