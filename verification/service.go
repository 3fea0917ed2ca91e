// Package verification checks signed payment payloads against the
// requirements they claim to satisfy. Verification never mutates chain
// state; an invalid payment is reported through VerifyResponse.IsValid with
// a diagnostic reason, while errors are reserved for the machinery failing.
package verification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/chain"
	"github.com/a2apay/x402-go/logger"
	"github.com/a2apay/x402-go/metrics"
)

// Verifier is the contract for payment verification.
type Verifier interface {
	Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error)
}

// FacilitatorVerifier delegates verification to a remote facilitator. The
// facilitator package's Client satisfies this.
type FacilitatorVerifier interface {
	Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error)
}

// Service dispatches verification by network family. Algorand payments are
// verified locally against the node; EVM payments go to the configured
// facilitator, or are verified locally when no facilitator is set and an
// adapter registry carries the network.
type Service struct {
	adapters    *chain.Registry
	facilitator FacilitatorVerifier
	logger      logger.Logger
	metrics     metrics.Recorder
	timeout     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithTimeout bounds each verification call.
func WithTimeout(t time.Duration) Option {
	return func(s *Service) { s.timeout = t }
}

// WithFacilitator sets the facilitator EVM payments are delegated to.
func WithFacilitator(f FacilitatorVerifier) Option {
	return func(s *Service) { s.facilitator = f }
}

// NewService creates a verification service over the given adapters.
func NewService(adapters *chain.Registry, opts ...Option) *Service {
	s := &Service{
		adapters: adapters,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify implements Verifier.
func (s *Service) Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	labels := map[string]string{"network": requirements.Network}
	defer func() {
		s.metrics.ObserveLatency("verify", time.Since(start), labels)
	}()

	if resp := checkEnvelope(payload, requirements); resp != nil {
		s.metrics.IncCounter("verify_invalid", labels)
		return resp, nil
	}

	var (
		resp *x402.VerifyResponse
		err  error
	)
	switch x402.NetworkFamilyOf(payload.Network) {
	case x402.FamilyAlgorand:
		resp, err = s.verifyAlgorand(verifyCtx, payload, requirements)
	case x402.FamilyEVM:
		resp, err = s.verifyEVM(verifyCtx, payload, requirements)
	default:
		return nil, fmt.Errorf("%w: %q", x402.ErrUnsupportedNetwork, payload.Network)
	}
	if err != nil {
		s.metrics.IncCounter("verify_error", labels)
		return nil, err
	}

	if resp.IsValid {
		s.metrics.IncCounter("verify_valid", labels)
		s.logger.Debug("payment verified", map[string]any{
			"network": payload.Network,
			"payer":   resp.Payer,
		})
	} else {
		s.metrics.IncCounter("verify_invalid", labels)
		s.logger.Info("payment rejected", map[string]any{
			"network": payload.Network,
			"reason":  resp.InvalidReason,
		})
	}
	return resp, nil
}

func (s *Service) verifyEVM(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	if s.facilitator != nil {
		return s.facilitator.Verify(ctx, payload, requirements)
	}
	return verifyEVMLocal(payload, requirements)
}

func (s *Service) verifyAlgorand(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	adapter, err := s.adapters.Algorand(payload.Network)
	if err != nil {
		return nil, err
	}
	currentRound, err := adapter.CurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	return verifyAlgorandLocal(payload, requirements, currentRound)
}

// checkEnvelope validates the outer payload fields shared by all families.
// It returns a rejection response, or nil when the envelope is acceptable.
func checkEnvelope(payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) *x402.VerifyResponse {
	if payload.X402Version != x402.Version {
		return invalid("Unsupported protocol version: got %d, want %d", payload.X402Version, x402.Version)
	}
	if payload.Scheme != requirements.Scheme {
		return invalid("Scheme mismatch: payload %q, requirements %q", payload.Scheme, requirements.Scheme)
	}
	if payload.Network != requirements.Network {
		return invalid("Network mismatch: payload %q, requirements %q", payload.Network, requirements.Network)
	}
	return nil
}

func invalid(format string, args ...interface{}) *x402.VerifyResponse {
	return &x402.VerifyResponse{
		IsValid:       false,
		InvalidReason: fmt.Sprintf(format, args...),
	}
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal integer", x402.ErrInvalidRequirements, s)
	}
	return v, nil
}
