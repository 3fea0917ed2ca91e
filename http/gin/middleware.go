// Package gin provides Gin-compatible middleware for x402 payment gating.
// Unlike the stdlib middleware, settlement runs before the handler: Gin's
// context does not expose the commit moment the response interceptor needs.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/facilitator"
	httpx402 "github.com/a2apay/x402-go/http"
)

// PaymentContextKey is the Gin context key for the verified payment
// information, a *x402.VerifyResponse.
const PaymentContextKey = "x402_payment"

// NewGinX402Middleware creates an x402 payment middleware for Gin.
//
// Example usage:
//
//	r := gin.Default()
//	r.Use(NewGinX402Middleware(config))
//	r.GET("/protected", func(c *gin.Context) {
//	    payment := c.MustGet(PaymentContextKey).(*x402.VerifyResponse)
//	    c.String(http.StatusOK, "Access granted! Payer: "+payment.Payer)
//	})
func NewGinX402Middleware(config *httpx402.Config) gin.HandlerFunc {
	verifier := config.Verifier
	settler := config.Settler
	if verifier == nil && config.FacilitatorURL != "" {
		client := facilitator.NewClient(config.FacilitatorURL)
		verifier = client
		if settler == nil {
			settler = client
		}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		accepts := httpx402.AcceptsForRequest(config.Accepts, c.Request)

		if c.GetHeader("X-PAYMENT") == "" {
			sendPaymentRequired(c, accepts)
			return
		}

		payment, err := httpx402.ParsePaymentHeader(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"x402Version": x402.Version,
				"error":       "Invalid payment header",
			})
			return
		}

		requirements, err := x402.FindMatchingRequirements(payment, accepts)
		if err != nil {
			sendPaymentRequired(c, accepts)
			return
		}

		verifyResp, err := verifier.Verify(c.Request.Context(), &payment, requirements)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"x402Version": x402.Version,
				"error":       "Payment verification failed",
			})
			return
		}

		if !verifyResp.IsValid {
			sendPaymentRequired(c, accepts)
			return
		}

		if !config.VerifyOnly {
			if settler == nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"x402Version": x402.Version,
					"error":       "Payment settlement failed",
				})
				return
			}

			settleResp, err := settler.Settle(c.Request.Context(), &payment, requirements)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"x402Version": x402.Version,
					"error":       "Payment settlement failed",
				})
				return
			}

			if !settleResp.Success {
				sendPaymentRequired(c, accepts)
				return
			}

			// Best effort; the payment itself already succeeded.
			_ = httpx402.AddPaymentResponseHeader(c.Writer, settleResp)
		}

		c.Set(PaymentContextKey, verifyResp)
		c.Next()
	}
}

func sendPaymentRequired(c *gin.Context, accepts []x402.PaymentRequirements) {
	challenge := x402.NewPaymentRequired("Payment required for this resource", accepts...)
	c.AbortWithStatusJSON(http.StatusPaymentRequired, challenge.Response())
}
