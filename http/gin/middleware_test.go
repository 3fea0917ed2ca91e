package gin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/encoding"
	httpx402 "github.com/a2apay/x402-go/http"
)

type stubVerifier struct{ resp *x402.VerifyResponse }

func (v *stubVerifier) Verify(context.Context, *x402.PaymentPayload, *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	return v.resp, nil
}

type stubSettler struct {
	resp   *x402.SettleResponse
	called int
}

func (s *stubSettler) Settle(context.Context, *x402.PaymentPayload, *x402.PaymentRequirements) (*x402.SettleResponse, error) {
	s.called++
	return s.resp, nil
}

func testConfig() (*httpx402.Config, *stubSettler) {
	settler := &stubSettler{resp: &x402.SettleResponse{Success: true, Transaction: "TXID", Network: "algorand-testnet"}}
	return &httpx402.Config{
		Verifier: &stubVerifier{resp: &x402.VerifyResponse{IsValid: true, Payer: "PAYER"}},
		Settler:  settler,
		Accepts: []x402.PaymentRequirements{{
			Scheme:            x402.SchemeExact,
			Network:           "algorand-testnet",
			Asset:             "10458941",
			PayTo:             "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A",
			MaxAmountRequired: "10000",
		}},
	}, settler
}

func testEngine(config *httpx402.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewGinX402Middleware(config))
	r.GET("/premium", func(c *gin.Context) {
		payment := c.MustGet(PaymentContextKey).(*x402.VerifyResponse)
		c.String(http.StatusOK, "payer: "+payment.Payer)
	})
	return r
}

func paidRequest(t *testing.T) *http.Request {
	t.Helper()
	header, err := encoding.EncodePayment(x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     "algorand-testnet",
		Payload:     x402.AlgorandPayload{Signature: "c2ln", TxnID: "TXID"},
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req.Header.Set("X-PAYMENT", header)
	return req
}

func TestGinMiddlewareChallenge(t *testing.T) {
	config, _ := testConfig()
	rec := httptest.NewRecorder()
	testEngine(config).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/premium", nil))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
}

func TestGinMiddlewarePaidRequest(t *testing.T) {
	config, settler := testConfig()
	rec := httptest.NewRecorder()
	testEngine(config).ServeHTTP(rec, paidRequest(t))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "payer: PAYER" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if settler.called != 1 {
		t.Errorf("settle called %d times, want 1", settler.called)
	}
	if rec.Header().Get("X-PAYMENT-RESPONSE") == "" {
		t.Error("settlement header missing")
	}
}

func TestGinMiddlewareInvalidPayment(t *testing.T) {
	config, settler := testConfig()
	config.Verifier = &stubVerifier{resp: &x402.VerifyResponse{IsValid: false, InvalidReason: "Amount mismatch"}}

	rec := httptest.NewRecorder()
	testEngine(config).ServeHTTP(rec, paidRequest(t))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	if settler.called != 0 {
		t.Errorf("settle called for an invalid payment")
	}
}

func TestGinMiddlewareVerifyOnly(t *testing.T) {
	config, settler := testConfig()
	config.VerifyOnly = true

	rec := httptest.NewRecorder()
	testEngine(config).ServeHTTP(rec, paidRequest(t))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if settler.called != 0 {
		t.Errorf("settle called %d times in verify-only mode", settler.called)
	}
}
