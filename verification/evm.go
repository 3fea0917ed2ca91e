package verification

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/a2apay/x402-go"
	evmsigner "github.com/a2apay/x402-go/signers/evm"
)

// verifyEVMLocal checks an EIP-3009 transfer authorization without a
// facilitator. The signature is recovered over the same EIP-712 digest the
// signer produced, so asset and chain binding come from the domain itself.
// Checks run in the same order as the Algorand verifier: signature,
// recipient, amount, then the validity window.
func verifyEVMLocal(payload *x402.PaymentPayload, requirements *x402.PaymentRequirements) (*x402.VerifyResponse, error) {
	evmPayload, err := payload.EVMPayload()
	if err != nil {
		return invalid("Malformed payload: %v", err), nil
	}

	auth, err := evmsigner.AuthorizationFromPayload(&evmPayload.Authorization)
	if err != nil {
		return invalid("Malformed payload: %v", err), nil
	}

	cfg, err := x402.LookupNetwork(requirements.Network)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(requirements.Asset) {
		return invalid("Malformed requirements: asset %q is not a contract address", requirements.Asset), nil
	}

	// 1. Signature: recover and match the claimed payer.
	name, version := evmsigner.DomainFromRequirements(requirements)
	recovered, err := evmsigner.RecoverSigner(
		evmPayload.Signature,
		common.HexToAddress(requirements.Asset),
		big.NewInt(cfg.ChainID),
		auth,
		name,
		version,
	)
	if err != nil {
		return invalid("Invalid signature: %v", err), nil
	}
	payer := recovered.Hex()
	if recovered != auth.From {
		return withPayer(invalid("Invalid signature: recovered %s, authorization claims %s", payer, auth.From.Hex()), payer), nil
	}

	// 2. Recipient.
	if !strings.EqualFold(auth.To.Hex(), requirements.PayTo) {
		return withPayer(invalid("Recipient mismatch: authorization pays %s, requirements specify %s", auth.To.Hex(), requirements.PayTo), payer), nil
	}

	// 3. Amount.
	required, ok := new(big.Int).SetString(requirements.MaxAmountRequired, 10)
	if !ok {
		return nil, x402.ErrInvalidRequirements
	}
	if auth.Value.Cmp(required) != 0 {
		return withPayer(invalid("Amount mismatch: authorization transfers %s, requirements specify %s", auth.Value, required), payer), nil
	}

	// 4. Validity window.
	now := big.NewInt(time.Now().Unix())
	if now.Cmp(auth.ValidAfter) < 0 {
		return withPayer(invalid("Authorization not yet valid: validAfter %s, now %s", auth.ValidAfter, now), payer), nil
	}
	if now.Cmp(auth.ValidBefore) >= 0 {
		return withPayer(invalid("Authorization expired: validBefore %s, now %s", auth.ValidBefore, now), payer), nil
	}

	return &x402.VerifyResponse{
		IsValid: true,
		Payer:   payer,
	}, nil
}
