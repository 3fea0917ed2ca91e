// Package settlement redeems verified payments on-chain. Settlement always
// re-verifies the payment first; a payload that no longer verifies is never
// submitted. On-chain failures are reported through SettleResponse, while
// errors are reserved for the machinery failing.
package settlement

import (
	"context"
	"fmt"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/chain"
	"github.com/a2apay/x402-go/logger"
	"github.com/a2apay/x402-go/metrics"
	"github.com/a2apay/x402-go/verification"
)

// Settler is the contract for payment settlement.
type Settler interface {
	Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error)
}

// FacilitatorSettler delegates settlement to a remote facilitator. The
// facilitator package's Client satisfies this.
type FacilitatorSettler interface {
	Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error)
}

// Service dispatches settlement by network family. Algorand envelopes are
// submitted to the node directly; EVM authorizations go to the facilitator,
// which relays the transferWithAuthorization call on-chain.
type Service struct {
	adapters    *chain.Registry
	verifier    verification.Verifier
	facilitator FacilitatorSettler
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

// WithTimeout bounds each settlement call, confirmation wait included.
func WithTimeout(t time.Duration) Option {
	return func(s *Service) { s.timeout = t }
}

// WithFacilitator sets the facilitator EVM settlements are delegated to.
func WithFacilitator(f FacilitatorSettler) Option {
	return func(s *Service) { s.facilitator = f }
}

// NewService creates a settlement service. The verifier runs before every
// submission.
func NewService(adapters *chain.Registry, verifier verification.Verifier, opts ...Option) *Service {
	s := &Service{
		adapters: adapters,
		verifier: verifier,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		timeout:  2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle implements Settler.
func (s *Service) Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error) {
	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	labels := map[string]string{"network": requirements.Network}
	defer func() {
		s.metrics.ObserveLatency("settle", time.Since(start), labels)
	}()

	verifyResp, err := s.verifier.Verify(settleCtx, payload, requirements)
	if err != nil {
		s.metrics.IncCounter("settle_error", labels)
		return nil, err
	}
	if !verifyResp.IsValid {
		s.metrics.IncCounter("settle_rejected", labels)
		return &x402.SettleResponse{
			Success:     false,
			Network:     requirements.Network,
			Payer:       verifyResp.Payer,
			ErrorReason: fmt.Sprintf("verification failed: %s", verifyResp.InvalidReason),
		}, nil
	}

	var resp *x402.SettleResponse
	switch x402.NetworkFamilyOf(payload.Network) {
	case x402.FamilyAlgorand:
		resp, err = s.settleAlgorand(settleCtx, payload, requirements, verifyResp.Payer)
	case x402.FamilyEVM:
		resp, err = s.settleEVM(settleCtx, payload, requirements)
	default:
		return nil, fmt.Errorf("%w: %q", x402.ErrUnsupportedNetwork, payload.Network)
	}
	if err != nil {
		s.metrics.IncCounter("settle_error", labels)
		return nil, err
	}

	if resp.Success {
		s.metrics.IncCounter("settle_success", labels)
		s.logger.Info("payment settled", map[string]any{
			"network":     resp.Network,
			"transaction": resp.Transaction,
			"payer":       resp.Payer,
		})
	} else {
		s.metrics.IncCounter("settle_failed", labels)
		s.logger.Warn("settlement failed", map[string]any{
			"network": resp.Network,
			"reason":  resp.ErrorReason,
		})
	}
	return resp, nil
}

func (s *Service) settleEVM(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error) {
	if s.facilitator == nil {
		return nil, fmt.Errorf("%w: no facilitator configured for EVM settlement", x402.ErrFacilitatorUnavailable)
	}
	return s.facilitator.Settle(ctx, payload, requirements)
}
