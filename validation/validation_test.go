package validation

import (
	"errors"
	"testing"

	x402 "github.com/a2apay/x402-go"
)

const (
	evmAddress      = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"
	algorandAddress = "GD64YIY3TWGDMCNPP553DZPPR6LDUSFQOIJVFDPPXWEG3FVOJCCDBBHU5A"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount  string
		wantErr bool
	}{
		{amount: "10000"},
		{amount: "1"},
		{amount: "0", wantErr: true},
		{amount: "-1", wantErr: true},
		{amount: "1.5", wantErr: true},
		{amount: "abc", wantErr: true},
		{amount: "", wantErr: true},
	}
	for _, tt := range tests {
		err := ValidateAmount(tt.amount)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAmount(%q) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, x402.ErrInvalidAmount) {
			t.Errorf("ValidateAmount(%q) error = %v, want ErrInvalidAmount", tt.amount, err)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		network string
		wantErr bool
	}{
		{name: "evm ok", address: evmAddress, network: "base"},
		{name: "evm short", address: "0x742d35", network: "base", wantErr: true},
		{name: "evm no prefix", address: evmAddress[2:], network: "base", wantErr: true},
		{name: "algorand ok", address: algorandAddress, network: "algorand-testnet"},
		{name: "algorand lowercase", address: "gd64yiy3twgdmcnpp553dzppr6ldusfqoijvfdppxweg3fvojccdbbhu5a", network: "algorand", wantErr: true},
		{name: "cross-family", address: evmAddress, network: "algorand", wantErr: true},
		{name: "empty", address: "", network: "base", wantErr: true},
		{name: "unknown network", address: evmAddress, network: "solana", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address, tt.network)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validRequirements() x402.PaymentRequirements {
	return x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           "algorand-testnet",
		Asset:             "10458941",
		PayTo:             algorandAddress,
		MaxAmountRequired: "10000",
		Resource:          "https://api.example.com/data",
		MaxTimeoutSeconds: 300,
	}
}

func TestValidatePaymentRequirements(t *testing.T) {
	if err := ValidatePaymentRequirements(validRequirements()); err != nil {
		t.Fatalf("valid requirements rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *x402.PaymentRequirements)
	}{
		{name: "missing resource", mutate: func(r *x402.PaymentRequirements) { r.Resource = "" }},
		{name: "zero amount", mutate: func(r *x402.PaymentRequirements) { r.MaxAmountRequired = "0" }},
		{name: "unknown network", mutate: func(r *x402.PaymentRequirements) { r.Network = "solana" }},
		{name: "wrong family payTo", mutate: func(r *x402.PaymentRequirements) { r.PayTo = evmAddress }},
		{name: "hex asset on algorand", mutate: func(r *x402.PaymentRequirements) { r.Asset = evmAddress }},
		{name: "unsupported scheme", mutate: func(r *x402.PaymentRequirements) { r.Scheme = "upto" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reqs := validRequirements()
			tt.mutate(&reqs)
			if err := ValidatePaymentRequirements(reqs); err == nil {
				t.Error("invalid requirements accepted")
			}
		})
	}
}

func TestValidatePaymentRequirementsEVM(t *testing.T) {
	reqs := x402.PaymentRequirements{
		Scheme:            x402.SchemeExact,
		Network:           "base-sepolia",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             evmAddress,
		MaxAmountRequired: "1500000",
		Resource:          "https://api.example.com/data",
		Extra:             map[string]interface{}{"name": "USDC", "version": "2"},
	}
	if err := ValidatePaymentRequirements(reqs); err != nil {
		t.Fatalf("valid EVM requirements rejected: %v", err)
	}

	reqs.Extra = map[string]interface{}{"name": ""}
	if err := ValidatePaymentRequirements(reqs); err == nil {
		t.Error("empty EIP-712 domain name accepted")
	}

	reqs.Extra = nil
	reqs.Asset = "10458941"
	if err := ValidatePaymentRequirements(reqs); err == nil {
		t.Error("asset index accepted on an EVM network")
	}
}

func TestValidatePaymentPayload(t *testing.T) {
	valid := x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     "algorand-testnet",
		Payload:     x402.AlgorandPayload{Signature: "c2ln"},
	}
	if err := ValidatePaymentPayload(valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(p *x402.PaymentPayload)
		wantErr error
	}{
		{
			name:    "wrong version",
			mutate:  func(p *x402.PaymentPayload) { p.X402Version = 2 },
			wantErr: x402.ErrUnsupportedVersion,
		},
		{
			name:    "wrong scheme",
			mutate:  func(p *x402.PaymentPayload) { p.Scheme = "upto" },
			wantErr: x402.ErrUnsupportedScheme,
		},
		{
			name:    "unknown network",
			mutate:  func(p *x402.PaymentPayload) { p.Network = "solana" },
			wantErr: x402.ErrUnsupportedNetwork,
		},
		{
			name:    "nil payload",
			mutate:  func(p *x402.PaymentPayload) { p.Payload = nil },
			wantErr: x402.ErrMalformedPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := valid
			tt.mutate(&payment)
			if err := ValidatePaymentPayload(payment); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
