package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/encoding"
)

// X402Transport is a RoundTripper that handles x402 payment flows. It wraps
// an existing http.RoundTripper and automatically answers 402 Payment
// Required responses with a signed payment.
type X402Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Signers is the list of available payment signers.
	Signers []x402.Signer

	// Selector chooses the signer and produces the payment.
	Selector x402.PaymentSelector

	// OnPaymentAttempt is called when a payment attempt is made.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a payment succeeds.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment fails.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper. On a 402 response it signs a
// payment for one of the offered options and retries the request once with
// the X-PAYMENT header set.
func (t *X402Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Base == nil {
		t.Base = http.DefaultTransport
	}

	reqCopy := req.Clone(req.Context())

	resp, err := t.Base.RoundTrip(reqCopy)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	accepts, err := parseChallenge(resp)
	if err != nil {
		resp.Body.Close()
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidInput, "failed to parse payment requirements", err)
	}
	resp.Body.Close()

	payment, err := t.Selector.SelectAndSign(accepts, t.Signers)
	if err != nil {
		return nil, err
	}

	selected, _ := x402.FindMatchingRequirements(*payment, accepts)

	startTime := time.Now()

	if t.OnPaymentAttempt != nil && selected != nil {
		t.OnPaymentAttempt(x402.PaymentEvent{
			Type:      x402.PaymentEventAttempt,
			Timestamp: startTime,
			Method:    "HTTP",
			URL:       req.URL.String(),
			Network:   payment.Network,
			Scheme:    payment.Scheme,
			Amount:    selected.MaxAmountRequired,
			Asset:     selected.Asset,
			Recipient: selected.PayTo,
		})
	}

	paymentHeader, err := encoding.EncodePayment(*payment)
	if err != nil {
		t.emitFailure(req, err, time.Since(startTime))
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build payment header", err)
	}

	reqRetry := req.Clone(req.Context())
	reqRetry.Header.Set("X-PAYMENT", paymentHeader)

	respRetry, err := t.Base.RoundTrip(reqRetry)
	duration := time.Since(startTime)
	if err != nil {
		t.emitFailure(req, err, duration)
		return nil, err
	}

	settlement := GetSettlement(respRetry)
	if settlement != nil && settlement.Success && t.OnPaymentSuccess != nil {
		event := x402.PaymentEvent{
			Type:        x402.PaymentEventSuccess,
			Timestamp:   time.Now(),
			Method:      "HTTP",
			URL:         req.URL.String(),
			Transaction: settlement.Transaction,
			Payer:       settlement.Payer,
			Duration:    duration,
		}
		if selected != nil {
			event.Network = selected.Network
			event.Scheme = selected.Scheme
			event.Amount = selected.MaxAmountRequired
			event.Asset = selected.Asset
			event.Recipient = selected.PayTo
		}
		t.OnPaymentSuccess(event)
	}

	return respRetry, nil
}

func (t *X402Transport) emitFailure(req *http.Request, err error, duration time.Duration) {
	if t.OnPaymentFailure == nil {
		return
	}
	t.OnPaymentFailure(x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		Method:    "HTTP",
		URL:       req.URL.String(),
		Error:     err,
		Duration:  duration,
	})
}

// parseChallenge extracts the payment options from a 402 response body.
func parseChallenge(resp *http.Response) ([]x402.PaymentRequirements, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse payment requirements JSON: %w", err)
	}

	if len(challenge.Accepts) == 0 {
		return nil, fmt.Errorf("no payment requirements in response")
	}

	return challenge.Accepts, nil
}

// GetSettlement extracts the settlement result from an HTTP response, or nil
// when the X-PAYMENT-RESPONSE header is absent or undecodable.
func GetSettlement(resp *http.Response) *x402.SettleResponse {
	settlementHeader := resp.Header.Get("X-PAYMENT-RESPONSE")
	if settlementHeader == "" {
		return nil
	}

	settlement, err := encoding.DecodeSettlement(settlementHeader)
	if err != nil {
		return nil
	}

	return &settlement
}
