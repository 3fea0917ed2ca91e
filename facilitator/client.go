package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/retry"
)

// Client is an HTTP client for a remote x402 facilitator. A verify failure
// is a structured response, not an error; errors mean the facilitator could
// not be reached or returned a non-JSON failure.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	verifyTimeout time.Duration
	settleTimeout time.Duration
	retryConfig   retry.Config
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(f *Client) { f.httpClient = c }
}

// WithVerifyTimeout sets the timeout for verify and supported calls.
func WithVerifyTimeout(t time.Duration) ClientOption {
	return func(f *Client) { f.verifyTimeout = t }
}

// WithSettleTimeout sets the timeout for settle calls, which include an
// on-chain transaction and therefore run much longer.
func WithSettleTimeout(t time.Duration) ClientOption {
	return func(f *Client) { f.settleTimeout = t }
}

// WithRetryConfig overrides the transport retry policy.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(f *Client) { f.retryConfig = cfg }
}

// NewClient creates a facilitator client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    &http.Client{},
		verifyTimeout: 30 * time.Second,
		settleTimeout: 2 * time.Minute,
		retryConfig:   retry.DefaultConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify implements Interface.
func (c *Client) Verify(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	return retry.WithRetry(verifyCtx, c.retryConfig, x402.IsTransportError, func() (*x402.VerifyResponse, error) {
		var resp x402.VerifyResponse
		if err := c.post(verifyCtx, "/verify", payload, requirements, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// Settle implements Interface.
func (c *Client) Settle(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.SettleResponse, error) {
	settleCtx, cancel := context.WithTimeout(ctx, c.settleTimeout)
	defer cancel()

	// Settlement is not retried at the transport level: a submission whose
	// response was lost may still have landed on-chain, and resubmission
	// idempotence belongs to the settler, not this client.
	var resp x402.SettleResponse
	if err := c.post(settleCtx, "/settle", payload, requirements, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Supported implements Interface.
func (c *Client) Supported(ctx context.Context) (*SupportedResponse, error) {
	supportedCtx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	return retry.WithRetry(supportedCtx, c.retryConfig, x402.IsTransportError, func() (*SupportedResponse, error) {
		req, err := http.NewRequestWithContext(supportedCtx, http.MethodGet, c.baseURL+"/supported", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: supported returned status %d", x402.ErrFacilitatorUnavailable, httpResp.StatusCode)
		}

		var resp SupportedResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("failed to decode supported response: %w", err)
		}
		return &resp, nil
	})
}

// EnrichRequirements merges facilitator-provided extra data into the given
// requirements. User-specified values take precedence over the
// facilitator's.
func (c *Client) EnrichRequirements(ctx context.Context, requirements []x402.PaymentRequirements) ([]x402.PaymentRequirements, error) {
	supported, err := c.Supported(ctx)
	if err != nil {
		return requirements, fmt.Errorf("failed to fetch supported payment kinds: %w", err)
	}

	supportedMap := make(map[string]SupportedKind)
	for _, kind := range supported.Kinds {
		supportedMap[kind.Network+"-"+kind.Scheme] = kind
	}

	enriched := make([]x402.PaymentRequirements, len(requirements))
	for i, req := range requirements {
		enriched[i] = req
		kind, ok := supportedMap[req.Network+"-"+req.Scheme]
		if !ok || kind.Extra == nil {
			continue
		}
		if enriched[i].Extra == nil {
			enriched[i].Extra = make(map[string]interface{})
		}
		for k, v := range kind.Extra {
			if _, exists := enriched[i].Extra[k]; !exists {
				enriched[i].Extra[k] = v
			}
		}
	}

	return enriched, nil
}

func (c *Client) post(ctx context.Context, path string, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements, out interface{}) error {
	body := Request{
		X402Version:         x402.Version,
		PaymentPayload:      *payload,
		PaymentRequirements: *requirements,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned status %d: %s",
			x402.ErrFacilitatorUnavailable, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
