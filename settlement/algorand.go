package settlement

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	x402 "github.com/a2apay/x402-go"
	"github.com/a2apay/x402-go/chain"
	algosigner "github.com/a2apay/x402-go/signers/algorand"
)

// settleAlgorand submits the signed envelope and waits for confirmation.
// A node that already has the transaction in the ledger is treated as a
// success path: the envelope carries its own transaction id, so resubmitting
// the same payload settles to the same result.
//
// Settlement outcomes, including node-side submission failures, pool
// rejections, and confirmation timeouts, come back as unsuccessful responses
// with a reason. Errors are reserved for transport and machinery problems
// where the outcome on chain is unknown.
func (s *Service) settleAlgorand(ctx context.Context, payload *x402.PaymentPayload, requirements *x402.PaymentRequirements, payer string) (*x402.SettleResponse, error) {
	adapter, err := s.adapters.Algorand(payload.Network)
	if err != nil {
		return nil, err
	}

	algoPayload, err := payload.AlgorandPayload()
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(algoPayload.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not base64: %v", x402.ErrMalformedPayload, err)
	}

	txid, err := adapter.SubmitRawTransaction(ctx, raw)
	if errors.Is(err, chain.ErrAlreadyInLedger) {
		txid = algoPayload.TxnID
		s.logger.Debug("transaction already in ledger", map[string]any{
			"network": payload.Network,
			"txid":    txid,
		})
	} else if err != nil {
		return &x402.SettleResponse{
			Success:     false,
			Network:     payload.Network,
			Payer:       payer,
			ErrorReason: "submission failed: " + err.Error(),
		}, nil
	}

	waitRounds := algosigner.TimeoutToRounds(requirements.MaxTimeoutSeconds, payload.Network)
	confirmation, err := adapter.WaitForConfirmation(ctx, txid, waitRounds)
	if err != nil {
		if errors.Is(err, x402.ErrConfirmationTimeout) || errors.Is(err, chain.ErrTransactionRejected) {
			return &x402.SettleResponse{
				Success:     false,
				Transaction: txid,
				Network:     payload.Network,
				Payer:       payer,
				ErrorReason: err.Error(),
			}, nil
		}
		return nil, err
	}

	return &x402.SettleResponse{
		Success:     true,
		Transaction: confirmation.TxID,
		Network:     payload.Network,
		Payer:       payer,
	}, nil
}
