package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	x402 "github.com/a2apay/x402-go"
)

// AlgodAdapter implements AlgorandAdapter over an algod REST client.
type AlgodAdapter struct {
	network string
	client  *algod.Client
}

var _ AlgorandAdapter = (*AlgodAdapter)(nil)

// NewAlgodAdapter creates an adapter for the given Algorand network. When
// nodeURL is empty the network's default public endpoint is used.
func NewAlgodAdapter(network, nodeURL, apiToken string) (*AlgodAdapter, error) {
	cfg, err := x402.LookupNetwork(network)
	if err != nil {
		return nil, err
	}
	if cfg.Family != x402.FamilyAlgorand {
		return nil, fmt.Errorf("%w: %q is not an Algorand network", x402.ErrUnsupportedNetwork, network)
	}
	if nodeURL == "" {
		nodeURL = cfg.DefaultRPCURL
	}

	client, err := algod.MakeClient(strings.TrimSuffix(nodeURL, "/"), apiToken)
	if err != nil {
		return nil, fmt.Errorf("chain: algod client for %s: %w", network, err)
	}
	return &AlgodAdapter{network: network, client: client}, nil
}

// Network implements AlgorandAdapter.
func (a *AlgodAdapter) Network() string {
	return a.network
}

// SuggestedParams implements AlgorandAdapter.
func (a *AlgodAdapter) SuggestedParams(ctx context.Context) (algotypes.SuggestedParams, error) {
	params, err := a.client.SuggestedParams().Do(ctx)
	if err != nil {
		return algotypes.SuggestedParams{}, fmt.Errorf("chain: suggested params: %w", err)
	}
	return params, nil
}

// CurrentRound implements AlgorandAdapter.
func (a *AlgodAdapter) CurrentRound(ctx context.Context) (uint64, error) {
	status, err := a.client.Status().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: node status: %w", err)
	}
	return status.LastRound, nil
}

// SubmitRawTransaction implements AlgorandAdapter. Duplicate submissions are
// reported by algod as "transaction already in ledger"; they surface as
// ErrAlreadyInLedger so callers can reuse the payload's transaction id.
func (a *AlgodAdapter) SubmitRawTransaction(ctx context.Context, raw []byte) (string, error) {
	txid, err := a.client.SendRawTransaction(raw).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already in ledger") {
			return "", ErrAlreadyInLedger
		}
		return "", fmt.Errorf("chain: submit transaction: %w", err)
	}
	return txid, nil
}

// WaitForConfirmation implements AlgorandAdapter. It polls the pending pool
// at each new round until the transaction confirms, the pool rejects it, or
// the round budget is exhausted. The budget is a hard ceiling; there is no
// unbounded retry.
func (a *AlgodAdapter) WaitForConfirmation(ctx context.Context, txid string, waitRounds uint64) (*Confirmation, error) {
	start, err := a.CurrentRound(ctx)
	if err != nil {
		return nil, err
	}

	for round := start; round < start+waitRounds; round++ {
		info, _, err := a.client.PendingTransactionInformation(txid).Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain: pending transaction info: %w", err)
		}
		if info.PoolError != "" {
			return nil, fmt.Errorf("%w: transaction %s: %s", ErrTransactionRejected, txid, info.PoolError)
		}
		if info.ConfirmedRound > 0 {
			return &Confirmation{TxID: txid, Round: info.ConfirmedRound}, nil
		}

		if _, err := a.client.StatusAfterBlock(round).Do(ctx); err != nil {
			return nil, fmt.Errorf("chain: wait for round %d: %w", round+1, err)
		}
	}

	return nil, fmt.Errorf("%w: transaction %s not confirmed within %d rounds",
		x402.ErrConfirmationTimeout, txid, waitRounds)
}

// IsOptedIn implements AlgorandAdapter.
func (a *AlgodAdapter) IsOptedIn(ctx context.Context, address string, assetID uint64) (bool, error) {
	_, err := a.client.AccountAssetInformation(address, assetID).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "asset info not found") ||
			strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, fmt.Errorf("chain: account asset info: %w", err)
	}
	return true, nil
}
