package encoding

import (
	"errors"
	"testing"

	x402 "github.com/a2apay/x402-go"
)

func TestPaymentHeaderRoundTrip(t *testing.T) {
	payment := x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     "algorand-testnet",
		Payload: x402.AlgorandPayload{
			Signature: "c2lnbmVk",
			Authorization: x402.AlgorandAuthorization{
				From:    "SENDER",
				Amount:  "10000",
				AssetID: "10458941",
			},
			TxnID: "TXID",
		},
	}

	encoded, err := EncodePayment(payment)
	if err != nil {
		t.Fatalf("EncodePayment: %v", err)
	}

	decoded, err := DecodePayment(encoded)
	if err != nil {
		t.Fatalf("DecodePayment: %v", err)
	}
	if decoded.Network != "algorand-testnet" || decoded.X402Version != x402.Version {
		t.Errorf("decoded = %+v", decoded)
	}

	algoPayload, err := decoded.AlgorandPayload()
	if err != nil {
		t.Fatalf("AlgorandPayload: %v", err)
	}
	if algoPayload.TxnID != "TXID" || algoPayload.Authorization.AssetID != "10458941" {
		t.Errorf("inner payload = %+v", algoPayload)
	}
}

func TestDecodePaymentMalformed(t *testing.T) {
	if _, err := DecodePayment("%%%"); !errors.Is(err, x402.ErrMalformedHeader) {
		t.Errorf("non-base64 error = %v, want ErrMalformedHeader", err)
	}
	// Valid base64, invalid JSON.
	if _, err := DecodePayment("bm90LWpzb24"); !errors.Is(err, x402.ErrMalformedHeader) {
		t.Errorf("non-JSON error = %v, want ErrMalformedHeader", err)
	}
}

func TestSettlementHeaderRoundTrip(t *testing.T) {
	settlement := x402.SettleResponse{
		Success:     true,
		Transaction: "TXID",
		Network:     "algorand-testnet",
		Payer:       "SENDER",
	}

	encoded, err := EncodeSettlement(settlement)
	if err != nil {
		t.Fatalf("EncodeSettlement: %v", err)
	}
	decoded, err := DecodeSettlement(encoded)
	if err != nil {
		t.Fatalf("DecodeSettlement: %v", err)
	}
	if decoded != settlement {
		t.Errorf("decoded = %+v, want %+v", decoded, settlement)
	}

	if _, err := DecodeSettlement("%%%"); !errors.Is(err, x402.ErrMalformedHeader) {
		t.Errorf("error = %v, want ErrMalformedHeader", err)
	}
}

func TestRequirementsRoundTrip(t *testing.T) {
	resp := x402.PaymentRequirementsResponse{
		X402Version: x402.Version,
		Accepts: []x402.PaymentRequirements{{
			Scheme:            x402.SchemeExact,
			Network:           "base",
			Asset:             "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			MaxAmountRequired: "1500000",
		}},
	}

	encoded, err := EncodeRequirements(resp)
	if err != nil {
		t.Fatalf("EncodeRequirements: %v", err)
	}
	decoded, err := DecodeRequirements(encoded)
	if err != nil {
		t.Fatalf("DecodeRequirements: %v", err)
	}
	if len(decoded.Accepts) != 1 || decoded.Accepts[0].MaxAmountRequired != "1500000" {
		t.Errorf("decoded = %+v", decoded)
	}
}
