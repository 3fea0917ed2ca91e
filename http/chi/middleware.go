// Package chi provides Chi-compatible middleware for x402 payment gating.
// Chi middleware uses the stdlib http.Handler signature, so this package is
// a thin adapter over the core middleware with router conveniences.
package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx402 "github.com/a2apay/x402-go/http"
)

// NewChiX402Middleware creates an x402 payment middleware for Chi routers.
// OPTIONS requests bypass payment gating so CORS preflight keeps working.
//
// Example usage:
//
//	config := &httpx402.Config{
//	    FacilitatorURL: "https://x402.org/facilitator",
//	    Accepts: []x402.PaymentRequirements{{
//	        Scheme:            "exact",
//	        Network:           "base-sepolia",
//	        MaxAmountRequired: "10000",
//	        Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
//	        PayTo:             "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//	        MaxTimeoutSeconds: 300,
//	    }},
//	}
//	r := chi.NewRouter()
//	r.Use(NewChiX402Middleware(config))
func NewChiX402Middleware(config *httpx402.Config) func(http.Handler) http.Handler {
	core := httpx402.NewX402Middleware(config)

	return func(next http.Handler) http.Handler {
		gated := core(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}

// RequirePayment mounts the middleware on a Chi router.
func RequirePayment(r chi.Router, config *httpx402.Config) {
	r.Use(NewChiX402Middleware(config))
}
