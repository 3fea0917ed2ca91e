package x402

import (
	"errors"
	"fmt"
	"testing"
)

func TestPaymentRequiredError(t *testing.T) {
	offer := PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "algorand-testnet",
		Asset:             "10458941",
		PayTo:             testAlgorandAddress,
		MaxAmountRequired: "10000",
	}

	challenge := NewPaymentRequired("premium tier", offer)
	if challenge.Error() != "payment required: premium tier" {
		t.Errorf("Error() = %q", challenge.Error())
	}

	resp := challenge.Response()
	if resp.X402Version != Version {
		t.Errorf("version = %d, want %d", resp.X402Version, Version)
	}
	if len(resp.Accepts) != 1 || resp.Accepts[0].Asset != "10458941" {
		t.Errorf("accepts = %+v", resp.Accepts)
	}

	empty := NewPaymentRequired("")
	if empty.Error() != "payment required" {
		t.Errorf("Error() = %q", empty.Error())
	}
}

func TestAsPaymentRequired(t *testing.T) {
	challenge := NewPaymentRequired("pay up", PaymentRequirements{Network: "base"})

	wrapped := fmt.Errorf("calling tool: %w", challenge)
	got := AsPaymentRequired(wrapped)
	if got == nil {
		t.Fatal("AsPaymentRequired returned nil for a wrapped challenge")
	}
	if got.Message != "pay up" {
		t.Errorf("message = %q", got.Message)
	}

	if AsPaymentRequired(errors.New("plain error")) != nil {
		t.Error("AsPaymentRequired matched a plain error")
	}
	if AsPaymentRequired(nil) != nil {
		t.Error("AsPaymentRequired matched nil")
	}
}
