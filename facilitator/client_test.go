package facilitator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/retry"
)

func testPayment() *x402.PaymentPayload {
	return &x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     "base-sepolia",
		Payload: x402.EVMPayload{
			Signature: "0xsig",
			Authorization: x402.EVMAuthorization{
				From:  "0x1111111111111111111111111111111111111111",
				To:    "0x2222222222222222222222222222222222222222",
				Value: "1500000",
			},
		},
	}
}

func testRequirements() *x402.PaymentRequirements {
	return &x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           "base-sepolia",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             "0x2222222222222222222222222222222222222222",
		MaxAmountRequired: "1500000",
		Resource:          "https://api.example.com/data",
	}
}

func TestVerifyRequestShape(t *testing.T) {
	var body map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/verify" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: true, Payer: "0x1111111111111111111111111111111111111111"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Verify(context.Background(), testPayment(), testRequirements())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !resp.IsValid {
		t.Errorf("response = %+v", resp)
	}

	for _, field := range []string{"x402Version", "paymentPayload", "paymentRequirements"} {
		if _, ok := body[field]; !ok {
			t.Errorf("request body missing %q", field)
		}
	}
	var version int
	if err := json.Unmarshal(body["x402Version"], &version); err != nil || version != x402.Version {
		t.Errorf("x402Version = %s", body["x402Version"])
	}
}

func TestVerifyInvalidIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: false, InvalidReason: "Amount mismatch"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Verify(context.Background(), testPayment(), testRequirements())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if resp.IsValid || resp.InvalidReason != "Amount mismatch" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSettle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(x402.SettleResponse{
			Success:     true,
			Transaction: "0xhash",
			Network:     "base-sepolia",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Settle(context.Background(), testPayment(), testRequirements())
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !resp.Success || resp.Transaction != "0xhash" {
		t.Errorf("response = %+v", resp)
	}
}

func TestNon200IsFacilitatorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryConfig(retry.Config{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}))

	_, err := client.Verify(context.Background(), testPayment(), testRequirements())
	if !errors.Is(err, x402.ErrFacilitatorUnavailable) {
		t.Errorf("error = %v, want ErrFacilitatorUnavailable", err)
	}
	if !x402.IsTransportError(err) {
		t.Errorf("expected a transport error, got %v", err)
	}
}

func TestVerifyRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(x402.VerifyResponse{IsValid: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRetryConfig(retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2,
	}))

	resp, err := client.Verify(context.Background(), testPayment(), testRequirements())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !resp.IsValid {
		t.Errorf("response = %+v", resp)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestSettleIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Settle(context.Background(), testPayment(), testRequirements())
	if !errors.Is(err, x402.ErrFacilitatorUnavailable) {
		t.Errorf("error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want exactly 1", got)
	}
}

func TestSupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/supported" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(SupportedResponse{Kinds: []SupportedKind{
			{X402Version: x402.Version, Scheme: "exact", Network: "base-sepolia", Extra: map[string]interface{}{"name": "USDC", "version": "2"}},
			{X402Version: x402.Version, Scheme: "exact", Network: "algorand-testnet"},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	resp, err := client.Supported(context.Background())
	if err != nil {
		t.Fatalf("Supported: %v", err)
	}
	if len(resp.Kinds) != 2 {
		t.Fatalf("kinds = %+v", resp.Kinds)
	}
}

func TestEnrichRequirements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SupportedResponse{Kinds: []SupportedKind{
			{Scheme: "exact", Network: "base-sepolia", Extra: map[string]interface{}{"name": "USDC", "version": "2"}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	reqs := []x402.PaymentRequirements{
		{
			Scheme:  "exact",
			Network: "base-sepolia",
			Extra:   map[string]interface{}{"name": "EURC"},
		},
		{Scheme: "exact", Network: "algorand-testnet"},
	}

	enriched, err := client.EnrichRequirements(context.Background(), reqs)
	if err != nil {
		t.Fatalf("EnrichRequirements: %v", err)
	}

	// User values win; missing keys are filled from the facilitator.
	if enriched[0].Extra["name"] != "EURC" {
		t.Errorf("name = %v, want the user's value", enriched[0].Extra["name"])
	}
	if enriched[0].Extra["version"] != "2" {
		t.Errorf("version = %v, want the facilitator's value", enriched[0].Extra["version"])
	}

	// Kinds the facilitator does not list pass through untouched.
	if enriched[1].Extra != nil {
		t.Errorf("extra = %v, want nil", enriched[1].Extra)
	}
}
