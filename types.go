package x402

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Version is the x402 protocol version carried in every payload and challenge.
const Version = 1

// SchemeExact is the only payment scheme currently defined: pay exactly the
// stated amount.
const SchemeExact = "exact"

// PaymentRequirements represents a single payment option a resource server
// will accept for one resource.
type PaymentRequirements struct {
	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network is the blockchain network identifier (e.g., "base", "algorand-testnet").
	Network string `json:"network" validate:"required"`

	// Asset is the token contract address (EVM) or decimal asset index (Algorand).
	Asset string `json:"asset" validate:"required"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo" validate:"required"`

	// MaxAmountRequired is the payment amount in atomic units, as a decimal
	// integer string.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`

	// Resource is the URL or identifier of the protected resource.
	Resource string `json:"resource" validate:"required"`

	// Description is an optional human-readable payment description.
	Description string `json:"description"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType"`

	// MaxTimeoutSeconds is the validity window for the payment instrument.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds" validate:"gte=0"`

	// OutputSchema describes the expected response structure, if any.
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`

	// Extra contains scheme- and chain-specific additional data. For the
	// "exact" scheme on EVM chains this carries the EIP-712 domain "name"
	// and "version" of the asset contract.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// PaymentRequirementsResponse is the serialized payment-required challenge:
// the protocol version plus the ordered list of acceptable payment options.
type PaymentRequirementsResponse struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Error is a human-readable message describing why payment is required.
	Error string `json:"error"`

	// Accepts is the ordered list of payment options the server will accept.
	// Any member satisfies the challenge; callers conventionally pick the first.
	Accepts []PaymentRequirements `json:"accepts"`
}

// PaymentPayload is a signed payment instrument, tagged with the scheme and
// network it was produced for.
type PaymentPayload struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`

	// Payload contains the chain-specific signed payment data:
	// EVMPayload for EVM chains, AlgorandPayload for Algorand chains.
	// After JSON decoding it holds a map[string]interface{}; use EVMPayload
	// or AlgorandPayload to obtain the typed form.
	Payload interface{} `json:"payload"`
}

// EVMPayload represents an EVM payment: an EIP-3009 transfer authorization
// and its EIP-712 signature.
type EVMPayload struct {
	// Signature is the hex-encoded 65-byte ECDSA signature.
	Signature string `json:"signature"`

	// Authorization contains the transferWithAuthorization parameters.
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization represents EIP-3009 transferWithAuthorization parameters.
type EVMAuthorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units.
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte hex string preventing replay.
	Nonce string `json:"nonce"`
}

// AlgorandPayload represents an Algorand payment: a fully signed ASA transfer
// transaction envelope plus an authorization mirror for auditability without
// decoding the envelope.
type AlgorandPayload struct {
	// Signature is the base64-encoded signed transaction envelope.
	Signature string `json:"signature"`

	// Authorization mirrors the transfer fields embedded in the envelope.
	Authorization AlgorandAuthorization `json:"authorization"`

	// TxnID is the chain-computed transaction identifier.
	TxnID string `json:"txnId"`
}

// AlgorandAuthorization mirrors the fields of a signed ASA transfer.
type AlgorandAuthorization struct {
	// From is the payer's address (58-character Algorand address).
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Amount is the transfer amount in atomic units.
	Amount string `json:"amount"`

	// AssetID is the decimal ASA index being transferred.
	AssetID string `json:"assetId"`

	// ValidRounds is the width of the transaction's validity window in rounds.
	ValidRounds uint64 `json:"validRounds"`

	// Note is the optional transaction note.
	Note string `json:"note,omitempty"`
}

// VerifyResponse is the structured result of payment verification.
// An invalid payment is an expected outcome, not an error: the reason string
// is diagnostic and callers must branch on IsValid, never on the text.
type VerifyResponse struct {
	// IsValid indicates whether the payment satisfies the requirements.
	IsValid bool `json:"isValid"`

	// Payer is the recovered payer address. It may be populated even for
	// invalid payments once the signature has been structurally decoded.
	Payer string `json:"payer,omitempty"`

	// InvalidReason names the failed check and both values when IsValid is false.
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the structured result of payment settlement.
type SettleResponse struct {
	// Success indicates whether the payment was settled on-chain.
	Success bool `json:"success"`

	// Transaction is the chain transaction identifier, when known.
	Transaction string `json:"transaction,omitempty"`

	// Network is the blockchain network the settlement targeted.
	Network string `json:"network"`

	// Payer is the address that made the payment.
	Payer string `json:"payer,omitempty"`

	// ErrorReason describes the failure when Success is false.
	ErrorReason string `json:"errorReason,omitempty"`
}

// TokenConfig represents a token a signer is able to pay with.
type TokenConfig struct {
	// Address is the token contract address (EVM) or asset index (Algorand).
	Address string

	// Symbol is the token symbol (e.g., "USDC").
	Symbol string

	// Decimals is the number of decimal places for the token.
	Decimals int

	// Priority is the token's priority within the signer.
	// Lower numbers indicate higher priority; default 0.
	Priority int

	// Name is an optional human-readable token name.
	Name string
}

// EVMPayload returns the typed EVM payload. It handles both payloads built
// in-process (already typed) and payloads decoded from JSON, where the
// payload field holds a generic map.
func (p *PaymentPayload) EVMPayload() (*EVMPayload, error) {
	switch v := p.Payload.(type) {
	case EVMPayload:
		return &v, nil
	case *EVMPayload:
		return v, nil
	default:
		var out EVMPayload
		if err := remarshal(p.Payload, &out); err != nil {
			return nil, fmt.Errorf("%w: not an EVM payload: %v", ErrMalformedPayload, err)
		}
		if out.Signature == "" {
			return nil, fmt.Errorf("%w: missing signature", ErrMalformedPayload)
		}
		return &out, nil
	}
}

// AlgorandPayload returns the typed Algorand payload, converting from the
// generic JSON form when necessary.
func (p *PaymentPayload) AlgorandPayload() (*AlgorandPayload, error) {
	switch v := p.Payload.(type) {
	case AlgorandPayload:
		return &v, nil
	case *AlgorandPayload:
		return v, nil
	default:
		var out AlgorandPayload
		if err := remarshal(p.Payload, &out); err != nil {
			return nil, fmt.Errorf("%w: not an Algorand payload: %v", ErrMalformedPayload, err)
		}
		if out.Signature == "" {
			return nil, fmt.Errorf("%w: missing signature", ErrMalformedPayload)
		}
		return &out, nil
	}
}

func remarshal(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// AmountToBigInt converts a decimal amount string to *big.Int in atomic units.
// For example, "1.5" with 6 decimals becomes 1500000.
func AmountToBigInt(amount string, decimals int) (*big.Int, error) {
	value := new(big.Float)
	if _, ok := value.SetString(amount); !ok {
		return nil, ErrInvalidAmount
	}

	multiplier := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value.Mul(value, multiplier)

	result, accuracy := value.Int(nil)
	if accuracy != big.Exact {
		return nil, ErrInvalidAmount
	}
	return result, nil
}

// BigIntToAmount converts a *big.Int in atomic units to a decimal string.
// For example, 1500000 with 6 decimals becomes "1.5".
func BigIntToAmount(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}

	f := new(big.Float).SetInt(value)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, divisor)

	return f.Text('f', decimals)
}
