package x402

import (
	"errors"
	"testing"
)

func testOffer() PaymentRequirements {
	return PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "algorand-testnet",
		Asset:             "10458941",
		PayTo:             testAlgorandAddress,
		MaxAmountRequired: "10000",
		Resource:          "https://api.example.com/data",
	}
}

func testSubmission() *PaymentPayload {
	return &PaymentPayload{
		X402Version: Version,
		Scheme:      SchemeExact,
		Network:     "algorand-testnet",
		Payload:     AlgorandPayload{Signature: "c2lnbmVk"},
	}
}

func TestTaskHappyPath(t *testing.T) {
	task := NewTask()
	if task.Status() != StatusNoPayment {
		t.Fatalf("new task status = %s", task.Status())
	}

	if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); err != nil {
		t.Fatalf("RequirePayment: %v", err)
	}
	if task.Status() != StatusPaymentRequired {
		t.Fatalf("status = %s, want %s", task.Status(), StatusPaymentRequired)
	}
	if offers := task.Offers(); len(offers) != 1 || offers[0].Asset != "10458941" {
		t.Fatalf("offers = %+v", offers)
	}

	if err := task.SubmitPayment(testSubmission()); err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if task.Status() != StatusPaymentSubmitted {
		t.Fatalf("status = %s, want %s", task.Status(), StatusPaymentSubmitted)
	}
	if task.Payload() == nil {
		t.Fatal("payload not recorded")
	}

	if err := task.RecordVerification(&VerifyResponse{IsValid: true, Payer: testAlgorandAddress}); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}
	if task.Status() != StatusPaymentVerified {
		t.Fatalf("status = %s, want %s", task.Status(), StatusPaymentVerified)
	}

	receipt := &SettleResponse{
		Success:     true,
		Transaction: "TXID",
		Network:     "algorand-testnet",
		Payer:       testAlgorandAddress,
	}
	if err := task.RecordSettlement(receipt); err != nil {
		t.Fatalf("RecordSettlement: %v", err)
	}
	if task.Status() != StatusPaymentSettled {
		t.Fatalf("status = %s, want %s", task.Status(), StatusPaymentSettled)
	}
	if got := task.Receipt(); got == nil || got.Transaction != "TXID" {
		t.Fatalf("receipt = %+v", got)
	}
}

func TestTaskVerificationFailureIsTerminal(t *testing.T) {
	task := NewTask()
	if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); err != nil {
		t.Fatal(err)
	}
	if err := task.SubmitPayment(testSubmission()); err != nil {
		t.Fatal(err)
	}

	if err := task.RecordVerification(&VerifyResponse{IsValid: false, InvalidReason: "Amount mismatch"}); err != nil {
		t.Fatalf("RecordVerification: %v", err)
	}
	if task.Status() != StatusPaymentFailed {
		t.Fatalf("status = %s, want %s", task.Status(), StatusPaymentFailed)
	}
	receipt := task.Receipt()
	if receipt == nil || receipt.Success || receipt.ErrorReason != "Amount mismatch" {
		t.Fatalf("failure receipt = %+v", receipt)
	}

	if err := task.RecordSettlement(&SettleResponse{Success: true}); !errors.Is(err, ErrTerminalState) {
		t.Errorf("settle after failure = %v, want ErrTerminalState", err)
	}
}

func TestTaskIdempotentSettlement(t *testing.T) {
	task := NewTask()
	if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); err != nil {
		t.Fatal(err)
	}
	if err := task.SubmitPayment(testSubmission()); err != nil {
		t.Fatal(err)
	}
	if err := task.RecordVerification(&VerifyResponse{IsValid: true}); err != nil {
		t.Fatal(err)
	}

	receipt := &SettleResponse{Success: true, Transaction: "TXID", Network: "algorand-testnet"}
	if err := task.RecordSettlement(receipt); err != nil {
		t.Fatal(err)
	}

	// Re-recording the same outcome is a no-op.
	same := *receipt
	if err := task.RecordSettlement(&same); err != nil {
		t.Errorf("identical settle = %v, want nil", err)
	}

	different := &SettleResponse{Success: true, Transaction: "OTHER", Network: "algorand-testnet"}
	if err := task.RecordSettlement(different); !errors.Is(err, ErrTerminalState) {
		t.Errorf("conflicting settle = %v, want ErrTerminalState", err)
	}
	if got := task.Receipt(); got.Transaction != "TXID" {
		t.Errorf("receipt overwritten: %+v", got)
	}
}

func TestTaskIllegalTransitions(t *testing.T) {
	t.Run("submit before challenge", func(t *testing.T) {
		task := NewTask()
		if err := task.SubmitPayment(testSubmission()); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("verify before submit", func(t *testing.T) {
		task := NewTask()
		if err := task.RecordVerification(&VerifyResponse{IsValid: true}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("settle before verify", func(t *testing.T) {
		task := NewTask()
		if err := task.RecordSettlement(&SettleResponse{Success: true}); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("double challenge", func(t *testing.T) {
		task := NewTask()
		if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); err != nil {
			t.Fatal(err)
		}
		if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("challenge without offers", func(t *testing.T) {
		task := NewTask()
		if err := task.RequirePayment(NewPaymentRequired("pay")); !errors.Is(err, ErrInvalidRequirements) {
			t.Errorf("error = %v, want ErrInvalidRequirements", err)
		}
	})
}

func TestTaskSubmitMustMatchOffer(t *testing.T) {
	task := NewTask()
	if err := task.RequirePayment(NewPaymentRequired("pay", testOffer())); err != nil {
		t.Fatal(err)
	}

	wrongNetwork := testSubmission()
	wrongNetwork.Network = "base"
	if err := task.SubmitPayment(wrongNetwork); !errors.Is(err, ErrInvalidRequirements) {
		t.Errorf("error = %v, want ErrInvalidRequirements", err)
	}
	if task.Status() != StatusPaymentRequired {
		t.Errorf("status advanced on rejected submission: %s", task.Status())
	}
}

func TestTaskFromMetadata(t *testing.T) {
	task := TaskFromMetadata(nil)
	if task.Status() != StatusNoPayment {
		t.Errorf("status = %s, want %s", task.Status(), StatusNoPayment)
	}

	// Metadata round-tripped through JSON stores offers as generic values.
	md := map[string]interface{}{
		MetadataStatusKey: string(StatusPaymentRequired),
		MetadataRequiredKey: []interface{}{
			map[string]interface{}{
				"scheme":            "exact",
				"network":           "algorand-testnet",
				"asset":             "10458941",
				"payTo":             testAlgorandAddress,
				"maxAmountRequired": "10000",
				"resource":          "https://api.example.com/data",
			},
		},
	}
	task = TaskFromMetadata(md)
	if task.Status() != StatusPaymentRequired {
		t.Fatalf("status = %s", task.Status())
	}
	offers := task.Offers()
	if len(offers) != 1 || offers[0].Asset != "10458941" || offers[0].Network != "algorand-testnet" {
		t.Fatalf("offers = %+v", offers)
	}

	if err := task.SubmitPayment(testSubmission()); err != nil {
		t.Fatalf("SubmitPayment on restored task: %v", err)
	}
}
