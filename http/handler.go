package http

import (
	"encoding/json"
	"net/http"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/encoding"
)

// AcceptsForRequest copies the configured payment options and fills the
// resource field with the absolute URL of the incoming request.
func AcceptsForRequest(accepts []x402.PaymentRequirements, r *http.Request) []x402.PaymentRequirements {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	resourceURL := scheme + "://" + r.Host + r.RequestURI

	out := make([]x402.PaymentRequirements, len(accepts))
	for i, req := range accepts {
		out[i] = req
		out[i].Resource = resourceURL
		if out[i].Description == "" {
			out[i].Description = "Payment required for " + r.URL.Path
		}
	}
	return out
}

// SendPaymentRequired writes a 402 Payment Required response carrying the
// payment options as JSON.
func SendPaymentRequired(w http.ResponseWriter, accepts []x402.PaymentRequirements) {
	challenge := x402.NewPaymentRequired("Payment required for this resource", accepts...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	// Encoding errors are unrecoverable here; the status is already sent.
	_ = json.NewEncoder(w).Encode(challenge.Response())
}

// SendError writes a JSON error response carrying the protocol version.
func SendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"x402Version": x402.Version,
		"error":       message,
	})
}

// ParsePaymentHeader parses the X-PAYMENT header into a payment payload.
// A missing or undecodable header fails with x402.ErrMalformedHeader; a
// wrong protocol version fails with x402.ErrUnsupportedVersion.
func ParsePaymentHeader(r *http.Request) (x402.PaymentPayload, error) {
	var payment x402.PaymentPayload

	headerValue := r.Header.Get("X-PAYMENT")
	if headerValue == "" {
		return payment, x402.ErrMalformedHeader
	}

	payment, err := encoding.DecodePayment(headerValue)
	if err != nil {
		return payment, err
	}

	if payment.X402Version != x402.Version {
		return payment, x402.ErrUnsupportedVersion
	}

	return payment, nil
}

// AddPaymentResponseHeader sets the X-PAYMENT-RESPONSE header with the
// base64-encoded settlement result.
func AddPaymentResponseHeader(w http.ResponseWriter, settlement *x402.SettleResponse) error {
	encoded, err := encoding.EncodeSettlement(*settlement)
	if err != nil {
		return err
	}

	w.Header().Set("X-PAYMENT-RESPONSE", encoded)
	return nil
}
