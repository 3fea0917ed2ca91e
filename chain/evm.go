package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	x402 "github.com/a2apay/x402-go"
)

// receiptPollInterval is how often the EVM adapter polls for a receipt.
const receiptPollInterval = 2 * time.Second

// EthAdapter implements EVMAdapter over a JSON-RPC ethclient.
type EthAdapter struct {
	network string
	client  *ethclient.Client
}

var _ EVMAdapter = (*EthAdapter)(nil)

// NewEthAdapter creates an adapter for the given EVM network. When rpcURL is
// empty the network's default public endpoint is used.
func NewEthAdapter(network, rpcURL string) (*EthAdapter, error) {
	cfg, err := x402.LookupNetwork(network)
	if err != nil {
		return nil, err
	}
	if cfg.Family != x402.FamilyEVM {
		return nil, fmt.Errorf("%w: %q is not an EVM network", x402.ErrUnsupportedNetwork, network)
	}
	if rpcURL == "" {
		rpcURL = cfg.DefaultRPCURL
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: eth client for %s: %w", network, err)
	}
	return &EthAdapter{network: network, client: client}, nil
}

// Network implements EVMAdapter.
func (a *EthAdapter) Network() string {
	return a.network
}

// SuggestedGasPrice implements EVMAdapter.
func (a *EthAdapter) SuggestedGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggested gas price: %w", err)
	}
	return price, nil
}

// SubmitRawTransaction implements EVMAdapter. Nodes report resubmission of a
// known transaction as "already known"; that surfaces as ErrAlreadyInLedger
// since the hash is derivable from the raw bytes.
func (a *EthAdapter) SubmitRawTransaction(ctx context.Context, raw []byte) (string, error) {
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("chain: decode raw transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, tx); err != nil {
		if strings.Contains(err.Error(), "already known") {
			return tx.Hash().Hex(), ErrAlreadyInLedger
		}
		return "", fmt.Errorf("chain: submit transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// WaitForConfirmation implements EVMAdapter via receipt polling with a hard
// deadline.
func (a *EthAdapter) WaitForConfirmation(ctx context.Context, txHash string, timeout time.Duration) (*Confirmation, error) {
	hash := common.HexToHash(txHash)
	deadline := time.Now().Add(timeout)

	for {
		receipt, err := a.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return nil, fmt.Errorf("chain: transaction %s reverted", txHash)
			}
			return &Confirmation{TxID: txHash, Round: receipt.BlockNumber.Uint64()}, nil
		}
		if err != ethereum.NotFound {
			return nil, fmt.Errorf("chain: transaction receipt: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: transaction %s not confirmed within %s",
				x402.ErrConfirmationTimeout, txHash, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(receiptPollInterval):
		}
	}
}
