// Package chain maps network identifiers to node access: suggested fee
// parameters, raw transaction submission, and bounded confirmation polling.
// Each adapter call is a fresh request; no adapter maintains long-lived
// state beyond its client handle.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	x402 "github.com/a2apay/x402-go"
)

// ErrAlreadyInLedger indicates a submission the chain has already recorded.
// Callers treat this as success-path idempotence and reuse the original
// transaction id when it is derivable from the payload.
var ErrAlreadyInLedger = errors.New("chain: transaction already in ledger")

// ErrTransactionRejected indicates the pending pool rejected the transaction
// outright, for example on overspend or an expired validity window. The
// transaction will never confirm; this is a settlement result, not a node
// access problem.
var ErrTransactionRejected = errors.New("chain: transaction rejected")

// Confirmation describes an observed on-chain confirmation.
type Confirmation struct {
	// TxID is the confirmed transaction identifier.
	TxID string

	// Round is the round or block the transaction was confirmed in.
	Round uint64
}

// AlgorandAdapter exposes the node operations the Algorand signer, verifier,
// and settler need. Implementations must be safe to call from a single
// logical driver; they hold no mutable state of their own.
type AlgorandAdapter interface {
	// Network returns the network identifier this adapter serves.
	Network() string

	// SuggestedParams fetches suggested transaction parameters from the node.
	SuggestedParams(ctx context.Context) (algotypes.SuggestedParams, error)

	// CurrentRound returns the node's last committed round.
	CurrentRound(ctx context.Context) (uint64, error)

	// SubmitRawTransaction submits a signed transaction envelope and returns
	// the transaction id. A duplicate submission fails with
	// ErrAlreadyInLedger rather than a generic error.
	SubmitRawTransaction(ctx context.Context, raw []byte) (string, error)

	// WaitForConfirmation polls for confirmation of txid for at most
	// waitRounds rounds. It fails with x402.ErrConfirmationTimeout when the
	// round budget is exhausted and with ErrTransactionRejected when the
	// pending pool rejects the transaction.
	WaitForConfirmation(ctx context.Context, txid string, waitRounds uint64) (*Confirmation, error)

	// IsOptedIn reports whether the account holds an opt-in for the asset.
	// Wallet layers must satisfy this capability before asking the signer
	// to pay with the asset.
	IsOptedIn(ctx context.Context, address string, assetID uint64) (bool, error)
}

// EVMAdapter exposes the node operations embedders need to self-settle on
// EVM chains instead of delegating to a facilitator.
type EVMAdapter interface {
	// Network returns the network identifier this adapter serves.
	Network() string

	// SuggestedGasPrice fetches the node's suggested gas price.
	SuggestedGasPrice(ctx context.Context) (*big.Int, error)

	// SubmitRawTransaction submits an RLP-encoded signed transaction and
	// returns its hash. Duplicates fail with ErrAlreadyInLedger.
	SubmitRawTransaction(ctx context.Context, raw []byte) (string, error)

	// WaitForConfirmation polls for a receipt until the timeout elapses.
	WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*Confirmation, error)
}

// Registry holds the configured adapters, keyed by network identifier.
// It is immutable after construction; all lookups are pure reads.
type Registry struct {
	algorand map[string]AlgorandAdapter
	evm      map[string]EVMAdapter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAlgorandAdapter registers an Algorand-family adapter.
func WithAlgorandAdapter(a AlgorandAdapter) RegistryOption {
	return func(r *Registry) { r.algorand[a.Network()] = a }
}

// WithEVMAdapter registers an EVM-family adapter.
func WithEVMAdapter(a EVMAdapter) RegistryOption {
	return func(r *Registry) { r.evm[a.Network()] = a }
}

// NewRegistry creates a registry with the given adapters.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		algorand: make(map[string]AlgorandAdapter),
		evm:      make(map[string]EVMAdapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Algorand returns the adapter for an Algorand network identifier.
func (r *Registry) Algorand(network string) (AlgorandAdapter, error) {
	a, ok := r.algorand[network]
	if !ok {
		return nil, fmt.Errorf("%w: no Algorand adapter for %q", x402.ErrUnsupportedNetwork, network)
	}
	return a, nil
}

// EVM returns the adapter for an EVM network identifier.
func (r *Registry) EVM(network string) (EVMAdapter, error) {
	a, ok := r.evm[network]
	if !ok {
		return nil, fmt.Errorf("%w: no EVM adapter for %q", x402.ErrUnsupportedNetwork, network)
	}
	return a, nil
}

// IsFamily reports whether the network identifier belongs to the family.
func IsFamily(network string, family x402.NetworkFamily) bool {
	return x402.NetworkFamilyOf(network) == family
}
