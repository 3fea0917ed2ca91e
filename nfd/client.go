// Package nfd resolves NFDomains names (e.g. "merchant.algo") to Algorand
// deposit addresses, so payment requirements can be built against a
// human-readable recipient. It implements the x402.AddressResolver
// interface.
package nfd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/retry"
)

// API base URLs per network.
const (
	MainnetAPIURL = "https://api.nf.domains"
	TestnetAPIURL = "https://api.testnet.nf.domains"
)

// ErrNameNotFound indicates the name is not registered.
var ErrNameNotFound = errors.New("nfd: name not found")

// ErrNoDepositAccount indicates the name exists but has no deposit account
// to receive funds at.
var ErrNoDepositAccount = errors.New("nfd: name has no deposit account")

// Client resolves names through the NFDomains REST API.
type Client struct {
	httpClient  *http.Client
	retryConfig retry.Config
	baseURLs    map[string]string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(n *Client) { n.httpClient = c }
}

// WithBaseURL overrides the API base URL for a network.
func WithBaseURL(network, baseURL string) ClientOption {
	return func(n *Client) { n.baseURLs[network] = strings.TrimSuffix(baseURL, "/") }
}

// WithRetryConfig overrides the transport retry policy.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(n *Client) { n.retryConfig = cfg }
}

// NewClient creates an NFDomains resolver.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retry.DefaultConfig,
		baseURLs: map[string]string{
			"algorand":         MainnetAPIURL,
			"algorand-testnet": TestnetAPIURL,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// record is the subset of the NFD view this client reads.
type record struct {
	Name           string `json:"name"`
	Owner          string `json:"owner"`
	DepositAccount string `json:"depositAccount"`
}

// Resolve implements x402.AddressResolver. It returns the deposit account
// registered for the name on the given network.
func (c *Client) Resolve(ctx context.Context, name, network string) (string, error) {
	baseURL, ok := c.baseURLs[network]
	if !ok {
		return "", fmt.Errorf("%w: no NFD registry for %q", x402.ErrUnsupportedNetwork, network)
	}

	rec, err := retry.WithRetry(ctx, c.retryConfig, x402.IsTransportError, func() (*record, error) {
		return c.fetch(ctx, baseURL+"/nfd/"+url.PathEscape(strings.ToLower(name))+"?view=tiny")
	})
	if err != nil {
		return "", err
	}

	if rec.DepositAccount == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDepositAccount, name)
	}
	return rec.DepositAccount, nil
}

// ReverseResolve returns the primary name registered for an address, or
// ErrNameNotFound when the address has none.
func (c *Client) ReverseResolve(ctx context.Context, address, network string) (string, error) {
	baseURL, ok := c.baseURLs[network]
	if !ok {
		return "", fmt.Errorf("%w: no NFD registry for %q", x402.ErrUnsupportedNetwork, network)
	}

	result, err := retry.WithRetry(ctx, c.retryConfig, x402.IsTransportError, func() (map[string]record, error) {
		endpoint := baseURL + "/nfd/lookup?address=" + url.QueryEscape(address) + "&view=tiny"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: address %s", ErrNameNotFound, address)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: lookup returned status %d", x402.ErrFacilitatorUnavailable, resp.StatusCode)
		}

		var out map[string]record
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode lookup response: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	rec, ok := result[address]
	if !ok || rec.Name == "" {
		return "", fmt.Errorf("%w: address %s", ErrNameNotFound, address)
	}
	return rec.Name, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) (*record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNameNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: registry returned status %d", x402.ErrFacilitatorUnavailable, resp.StatusCode)
	}

	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode NFD response: %w", err)
	}
	return &rec, nil
}
