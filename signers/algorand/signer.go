// Package algorand implements the x402 signer for Algorand networks. Unlike
// the EVM family, an Algorand payment is a fully signed ASA transfer
// transaction; the settler submits the envelope as-is, so the validity
// window is expressed in rounds rather than wall-clock seconds.
package algorand

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/chain"
)

// Signer implements the x402.Signer interface for Algorand networks.
type Signer struct {
	account   crypto.Account
	network   string
	adapter   chain.AlgorandAdapter
	tokens    []x402.TokenConfig
	priority  int
	maxAmount *big.Int
	ctx       context.Context
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new Algorand signer with the given options. A key
// source (WithAccount or WithMnemonic), an adapter, and at least one token
// are required. The network is taken from the adapter.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{
		priority: 0,
		ctx:      context.Background(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if len(s.account.PrivateKey) == 0 {
		return nil, x402.ErrInvalidKey
	}
	if s.adapter == nil {
		return nil, fmt.Errorf("%w: signer requires an Algorand adapter", x402.ErrUnsupportedNetwork)
	}
	s.network = s.adapter.Network()
	cfg, err := x402.LookupNetwork(s.network)
	if err != nil {
		return nil, err
	}
	if cfg.Family != x402.FamilyAlgorand {
		return nil, x402.ErrUnsupportedNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402.ErrNoTokens
	}

	return s, nil
}

// WithAccount sets the signing account directly.
func WithAccount(account crypto.Account) SignerOption {
	return func(s *Signer) error {
		if len(account.PrivateKey) == 0 {
			return x402.ErrInvalidKey
		}
		s.account = account
		return nil
	}
}

// WithMnemonic derives the signing account from a 25-word Algorand mnemonic.
func WithMnemonic(phrase string) SignerOption {
	return func(s *Signer) error {
		sk, err := mnemonic.ToPrivateKey(phrase)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}
		account, err := crypto.AccountFromPrivateKey(sk)
		if err != nil {
			return fmt.Errorf("%w: %v", x402.ErrInvalidMnemonic, err)
		}
		s.account = account
		return nil
	}
}

// WithAdapter sets the node adapter used to fetch suggested parameters.
func WithAdapter(adapter chain.AlgorandAdapter) SignerOption {
	return func(s *Signer) error {
		s.adapter = adapter
		return nil
	}
}

// WithToken adds an ASA the signer can pay with. The address is the decimal
// asset index.
func WithToken(assetID, symbol string, decimals int) SignerOption {
	return func(s *Signer) error {
		if _, err := strconv.ParseUint(assetID, 10, 64); err != nil {
			return fmt.Errorf("%w: asset id %q is not a decimal index", x402.ErrInvalidRequirements, assetID)
		}
		s.tokens = append(s.tokens, x402.TokenConfig{
			Address:  assetID,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: 0,
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

// WithContext sets the context used for node calls during signing.
func WithContext(ctx context.Context) SignerOption {
	return func(s *Signer) error {
		s.ctx = ctx
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
	return s.account.Address.String()
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
		if token.Address == requirements.Asset {
			return true
		}
	}

	return false
}

// Sign implements x402.Signer. It builds an ASA transfer whose last valid
// round is the first valid round plus the requirements' timeout converted to
// rounds, signs it, and wraps the envelope with an authorization mirror.
func (s *Signer) Sign(requirements *x402.PaymentRequirements) (*x402.PaymentPayload, error) {
	if !s.CanSign(requirements) {
		return nil, x402.ErrNoValidSigner
	}

	amount, err := strconv.ParseUint(requirements.MaxAmountRequired, 10, 64)
	if err != nil {
		return nil, x402.ErrInvalidAmount
	}

	if s.maxAmount != nil && new(big.Int).SetUint64(amount).Cmp(s.maxAmount) > 0 {
		return nil, x402.ErrAmountExceeded
	}

	assetID, err := strconv.ParseUint(requirements.Asset, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: asset %q is not a decimal index", x402.ErrInvalidRequirements, requirements.Asset)
	}

	if _, err := algotypes.DecodeAddress(requirements.PayTo); err != nil {
		return nil, fmt.Errorf("%w: payTo %q: %v", x402.ErrInvalidRequirements, requirements.PayTo, err)
	}

	params, err := s.adapter.SuggestedParams(s.ctx)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeTransport, "failed to fetch suggested params", err)
	}

	validRounds := TimeoutToRounds(requirements.MaxTimeoutSeconds, s.network)
	params.LastRoundValid = params.FirstRoundValid + algotypes.Round(validRounds)

	var note []byte
	if requirements.Description != "" {
		note = []byte(requirements.Description)
	}

	txn, err := transaction.MakeAssetTransferTxn(
		s.account.Address.String(),
		requirements.PayTo,
		amount,
		note,
		params,
		"",
		assetID,
	)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to build asset transfer", err)
	}

	txid, stxBytes, err := crypto.SignTransaction(s.account.PrivateKey, txn)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to sign transaction", err)
	}

	payload := &x402.PaymentPayload{
		X402Version: x402.Version,
		Scheme:      x402.SchemeExact,
		Network:     s.network,
		Payload: x402.AlgorandPayload{
			Signature: base64.StdEncoding.EncodeToString(stxBytes),
			Authorization: x402.AlgorandAuthorization{
				From:        s.account.Address.String(),
				To:          requirements.PayTo,
				Amount:      strconv.FormatUint(amount, 10),
				AssetID:     requirements.Asset,
				ValidRounds: validRounds,
				Note:        requirements.Description,
			},
			TxnID: txid,
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

// TimeoutToRounds converts a wall-clock timeout to a round count using the
// network's average block time, rounding up so the window never undershoots
// the requested timeout.
func TimeoutToRounds(timeoutSeconds int, network string) uint64 {
	avg := 4.5
	if cfg, err := x402.LookupNetwork(network); err == nil && cfg.AvgBlockSeconds > 0 {
		avg = cfg.AvgBlockSeconds
	}
	if timeoutSeconds <= 0 {
		return 1
	}
	return uint64(math.Ceil(float64(timeoutSeconds) / avg))
}
