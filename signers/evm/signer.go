// Package evm implements the x402 signer for EVM-compatible chains. Payments
// are EIP-3009 transfer authorizations signed as EIP-712 typed data; nothing
// touches the chain until a settler redeems the authorization.
package evm

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/a2apay/x402-go"
)

// Signer implements the x402.Signer interface for EVM-compatible chains.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	network    string
	chainID    *big.Int
	tokens     []x402.TokenConfig
	priority   int
	maxAmount  *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new EVM signer with the given options. A key source
// (WithPrivateKey, WithKeystore, or WithMnemonic), a network, and at least
// one token are required.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{
		priority: 0,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, x402.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402.ErrUnsupportedNetwork
	}
	cfg, err := x402.LookupNetwork(s.network)
	if err != nil {
		return nil, err
	}
	if cfg.Family != x402.FamilyEVM {
		return nil, x402.ErrUnsupportedNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	s.chainID = big.NewInt(cfg.ChainID)

	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")

		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return x402.ErrInvalidKey
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithECDSAKey sets the private key directly.
func WithECDSAKey(key *ecdsa.PrivateKey) SignerOption {
	return func(s *Signer) error {
		if key == nil {
			return x402.ErrInvalidKey
		}
		s.privateKey = key
		return nil
	}
}

// WithNetwork sets the blockchain network.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithToken adds a token configuration.
func WithToken(address, symbol string, decimals int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: 0,
		})
		return nil
	}
}

// WithTokenPriority adds a token configuration with a priority.
func WithTokenPriority(address, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: priority,
		})
		return nil
	}
}

// WithPriority sets the signer priority. Lower numbers are preferred.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmountPerCall sets the maximum amount per payment call, in atomic
// units.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		maxAmount, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402.ErrInvalidAmount
		}
		s.maxAmount = maxAmount
		return nil
	}
}

// Network implements x402.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402.Signer.
func (s *Signer) Scheme() string {
	return x402.SchemeExact
}

// Address implements x402.Signer.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// CanSign implements x402.Signer.
func (s *Signer) CanSign(requirements *x402.PaymentRequirements) bool {
	if requirements.Network != s.network {
		return false
	}
	if requirements.Scheme != x402.SchemeExact {
		return false
	}

	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirements.Asset) {
			return true
		}
	}

	return false
}

// Sign implements x402.Signer. It builds an EIP-3009 authorization whose
// validity window spans the requirements' timeout and signs it with the
// asset's EIP-712 domain.
func (s *Signer) Sign(requirements *x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	if !s.CanSign(requirements) {
		return nil, x402.ErrNoValidSigner
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(requirements.MaxAmountRequired, 10); !ok {
		return nil, x402.ErrInvalidAmount
	}

	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402.ErrAmountExceeded
	}

	var tokenAddress common.Address
	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirements.Asset) {
			tokenAddress = common.HexToAddress(token.Address)
			break
		}
	}

	auth, err := CreateAuthorization(
		s.address,
		common.HexToAddress(requirements.PayTo),
		amount,
		requirements.MaxTimeoutSeconds,
	)
	if err != nil {
		return nil, err
	}

	name, version := DomainFromRequirements(requirements)
	signature, err := SignTransferAuthorization(s.privateKey, tokenAddress, s.chainID, auth, name, version)
	if err != nil {
		return nil, err
	}

	payload := &x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     s.network,
		Payload: x402.EVMPayload{
			Signature: signature,
			Authorization: x402.EVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       auth.Nonce.Hex(),
			},
		},
	}

	return payload, nil
}

// GetPriority implements x402.Signer.
func (s *Signer) GetPriority() int {
	return s.priority
}

// GetTokens implements x402.Signer.
func (s *Signer) GetTokens() []x402.TokenConfig {
	return s.tokens
}

// GetMaxAmount implements x402.Signer.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}
