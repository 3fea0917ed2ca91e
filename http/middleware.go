// Package http provides HTTP middleware and client transport for x402
// payment gating. The middleware verifies an X-PAYMENT header before letting
// the request through and settles the payment at the moment the handler
// commits to a successful response.
package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/facilitator"
)

// Verifier checks a payment against requirements. Both the local
// verification service and the facilitator client satisfy this.
type Verifier interface {
	Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error)
}

// Settler settles a verified payment. Both the local settlement service and
// the facilitator client satisfy this.
type Settler interface {
	Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error)
}

// Config holds the configuration for the x402 middleware.
type Config struct {
	// FacilitatorURL is a convenience: when set and no Verifier/Settler are
	// configured, a facilitator client is built for both roles.
	FacilitatorURL string

	// Verifier checks incoming payments. Required unless FacilitatorURL is set.
	Verifier Verifier

	// Settler settles verified payments. Required unless FacilitatorURL is
	// set or VerifyOnly is true.
	Settler Settler

	// Accepts defines the payment options offered to unpaid requests.
	Accepts []x402.PaymentRequirements

	// VerifyOnly skips settlement when true.
	VerifyOnly bool
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key for the verified payment information,
// a *x402.VerifyResponse.
const PaymentContextKey = contextKey("x402_payment")

// NewX402Middleware creates a payment-gating middleware for stdlib handlers.
func NewX402Middleware(config *Config) func(http.Handler) http.Handler {
	verifier := config.Verifier
	settler := config.Settler
	if verifier == nil && config.FacilitatorURL != "" {
		client := facilitator.NewClient(config.FacilitatorURL)
		verifier = client
		if settler == nil {
			settler = client
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := slog.Default()

			accepts := AcceptsForRequest(config.Accepts, r)

			paymentHeader := r.Header.Get("X-PAYMENT")
			if paymentHeader == "" {
				logger.Info("no payment header provided", "path", r.URL.Path)
				SendPaymentRequired(w, accepts)
				return
			}

			payment, err := ParsePaymentHeader(r)
			if err != nil {
				logger.Warn("invalid payment header", "error", err)
				SendError(w, http.StatusBadRequest, "Invalid payment header")
				return
			}

			requirements, err := x402.FindMatchingRequirements(payment, accepts)
			if err != nil {
				logger.Warn("no matching payment option", "network", payment.Network, "scheme", payment.Scheme)
				SendPaymentRequired(w, accepts)
				return
			}

			verifyResp, err := verifier.Verify(r.Context(), &payment, requirements)
			if err != nil {
				logger.Error("payment verification errored", "error", err)
				SendError(w, http.StatusServiceUnavailable, "Payment verification failed")
				return
			}

			if !verifyResp.IsValid {
				logger.Warn("payment rejected", "reason", verifyResp.InvalidReason)
				SendPaymentRequired(w, accepts)
				return
			}

			logger.Info("payment verified", "payer", verifyResp.Payer)

			ctx := context.WithValue(r.Context(), PaymentContextKey, verifyResp)
			r = r.WithContext(ctx)

			interceptor := &settlementInterceptor{
				w: w,
				settleFunc: func() bool {
					if config.VerifyOnly {
						return true
					}
					if settler == nil {
						logger.Error("no settler configured")
						SendError(w, http.StatusServiceUnavailable, "Payment settlement failed")
						return false
					}

					settleResp, err := settler.Settle(r.Context(), &payment, requirements)
					if err != nil {
						logger.Error("settlement errored", "error", err)
						SendError(w, http.StatusServiceUnavailable, "Payment settlement failed")
						return false
					}

					if !settleResp.Success {
						logger.Warn("settlement unsuccessful", "reason", settleResp.ErrorReason)
						SendPaymentRequired(w, accepts)
						return false
					}

					logger.Info("payment settled", "transaction", settleResp.Transaction)

					if err := AddPaymentResponseHeader(w, settleResp); err != nil {
						logger.Warn("failed to add payment response header", "error", err)
					}
					return true
				},
				onFailure: func(statusCode int) {
					logger.Warn("handler returned non-success, skipping settlement", "status", statusCode)
				},
			}
			next.ServeHTTP(interceptor, r)
		})
	}
}

// settlementInterceptor wraps the ResponseWriter to intercept the moment the
// handler commits to a response. Settlement runs only when the handler is
// about to succeed; error responses pass through unpaid.
type settlementInterceptor struct {
	w          http.ResponseWriter
	settleFunc func() bool
	onFailure  func(statusCode int)
	committed  bool
	hijacked   bool
}

func (i *settlementInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *settlementInterceptor) Write(b []byte) (int, error) {
	// Write without WriteHeader implies 200 OK.
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}

	// After a failed settlement the error response is already written; the
	// handler's payload is discarded to avoid a mixed response.
	if i.hijacked {
		return len(b), nil
	}

	return i.w.Write(b)
}

func (i *settlementInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	// Handler errors pass through without settlement.
	if statusCode >= 400 {
		if i.onFailure != nil {
			i.onFailure(statusCode)
		}
		i.w.WriteHeader(statusCode)
		return
	}

	if !i.settleFunc() {
		i.hijacked = true
		return
	}

	i.w.WriteHeader(statusCode)
}

// Flush implements http.Flusher to support streaming responses.
func (i *settlementInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker to support connection hijacking.
func (i *settlementInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

// Push implements http.Pusher to support HTTP/2 server push.
func (i *settlementInterceptor) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := i.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}
