package x402

import "errors"

// Sentinel errors for x402 payment operations.
var (
	// ErrUnsupportedNetwork indicates a network identifier outside the configured set.
	ErrUnsupportedNetwork = errors.New("x402: unsupported network")

	// ErrUnsupportedScheme indicates an unsupported payment scheme.
	ErrUnsupportedScheme = errors.New("x402: unsupported payment scheme")

	// ErrUnsupportedVersion indicates an unsupported x402 protocol version.
	ErrUnsupportedVersion = errors.New("x402: unsupported protocol version")

	// ErrInvalidPrice indicates a negative or non-numeric price.
	ErrInvalidPrice = errors.New("x402: invalid price")

	// ErrInvalidAmount indicates an invalid atomic-unit amount string.
	ErrInvalidAmount = errors.New("x402: invalid amount")

	// ErrAmountExceeded indicates the required amount exceeds the signer's
	// caller-supplied per-call ceiling.
	ErrAmountExceeded = errors.New("x402: payment amount exceeds per-call limit")

	// ErrMalformedPayload indicates a payment payload that cannot be decoded.
	ErrMalformedPayload = errors.New("x402: malformed payment payload")

	// ErrMalformedHeader indicates a malformed X-PAYMENT header.
	ErrMalformedHeader = errors.New("x402: malformed payment header")

	// ErrInvalidKey indicates invalid signing material.
	ErrInvalidKey = errors.New("x402: invalid private key")

	// ErrInvalidKeystore indicates an invalid or corrupted keystore file.
	ErrInvalidKeystore = errors.New("x402: invalid keystore file")

	// ErrInvalidMnemonic indicates an invalid mnemonic phrase.
	ErrInvalidMnemonic = errors.New("x402: invalid mnemonic phrase")

	// ErrNoTokens indicates no tokens are configured for a signer.
	ErrNoTokens = errors.New("x402: no tokens configured")

	// ErrNoValidSigner indicates no signer can satisfy the payment requirements.
	ErrNoValidSigner = errors.New("x402: no signer can satisfy payment requirements")

	// ErrInvalidRequirements indicates structurally invalid payment requirements.
	ErrInvalidRequirements = errors.New("x402: invalid payment requirements")

	// ErrAddressResolution indicates a human-readable name could not be
	// resolved to a chain-native address.
	ErrAddressResolution = errors.New("x402: address resolution failed")

	// ErrConfirmationTimeout indicates on-chain confirmation did not occur
	// within the allotted window.
	ErrConfirmationTimeout = errors.New("x402: confirmation timeout")

	// ErrFacilitatorUnavailable indicates the facilitator service could not
	// be reached. Transport failures like this one are retryable; protocol
	// invalidity is not.
	ErrFacilitatorUnavailable = errors.New("x402: facilitator unavailable")

	// ErrInvalidTransition indicates an illegal payment-status transition.
	ErrInvalidTransition = errors.New("x402: invalid payment status transition")

	// ErrTerminalState indicates an attempt to overwrite a recorded terminal
	// payment outcome with a different one.
	ErrTerminalState = errors.New("x402: payment already in terminal state")
)

// ErrorCode classifies payment errors for programmatic handling. Callers
// branch on codes, never on message text.
type ErrorCode string

const (
	// ErrCodeUnsupportedNetwork indicates configuration outside the network set.
	ErrCodeUnsupportedNetwork ErrorCode = "UNSUPPORTED_NETWORK"

	// ErrCodeInvalidInput indicates input the caller can correct and retry.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeAmountExceeded indicates payment exceeds the configured ceiling.
	ErrCodeAmountExceeded ErrorCode = "AMOUNT_EXCEEDED"

	// ErrCodeSigningFailed indicates the signing operation failed.
	ErrCodeSigningFailed ErrorCode = "SIGNING_FAILED"

	// ErrCodeNoValidSigner indicates no signer can satisfy requirements.
	ErrCodeNoValidSigner ErrorCode = "NO_VALID_SIGNER"

	// ErrCodeTransport indicates a transport-level failure (node or
	// facilitator unreachable). Retryable.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"

	// ErrCodeVerification indicates the payment failed verification. Not
	// retryable with the same payload.
	ErrCodeVerification ErrorCode = "VERIFICATION_FAILED"

	// ErrCodeSettlement indicates on-chain settlement failed.
	ErrCodeSettlement ErrorCode = "SETTLEMENT_FAILED"
)

// PaymentError provides structured error information: a machine-checkable
// code, a diagnostic message, and optional context.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransportError reports whether err belongs to the retryable transport
// category, as opposed to protocol-level invalidity.
func IsTransportError(err error) bool {
	if errors.Is(err, ErrFacilitatorUnavailable) {
		return true
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeTransport
	}
	return false
}
