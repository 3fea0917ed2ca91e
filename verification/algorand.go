package verification

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"

	x402 "github.com/a2apay/x402-go"
)

// txnSigningPrefix is the domain separation prefix Algorand prepends to the
// canonical transaction encoding before signing.
var txnSigningPrefix = []byte("TX")

// verifyAlgorandLocal checks a signed ASA transfer envelope against the
// requirements. The checks run in a fixed order so a payload failing several
// of them always reports the same reason: signature, recipient, amount,
// asset, expiration. All checks read the decoded envelope; the authorization
// mirror in the payload is advisory only.
func verifyAlgorandLocal(payload *x402.PaymentPayload, requirements *x402.PaymentRequirements, currentRound uint64) (*x402.VerifyResponse, error) {
	algoPayload, err := payload.AlgorandPayload()
	if err != nil {
		return invalid("Malformed payload: %v", err), nil
	}

	raw, err := base64.StdEncoding.DecodeString(algoPayload.Signature)
	if err != nil {
		return invalid("Malformed payload: signature is not base64: %v", err), nil
	}

	var stx algotypes.SignedTxn
	if err := msgpack.Decode(raw, &stx); err != nil {
		return invalid("Malformed payload: envelope is not a signed transaction: %v", err), nil
	}

	sender := stx.Txn.Sender.String()

	if stx.Txn.Type != algotypes.AssetTransferTx {
		return withPayer(invalid("Transaction type mismatch: got %q, want %q", stx.Txn.Type, algotypes.AssetTransferTx), sender), nil
	}

	// 1. Signature.
	signedBytes := append(txnSigningPrefix, msgpack.Encode(stx.Txn)...)
	if !ed25519.Verify(ed25519.PublicKey(stx.Txn.Sender[:]), signedBytes, stx.Sig[:]) {
		return withPayer(invalid("Invalid signature: envelope not signed by sender %s", sender), sender), nil
	}

	// 2. Recipient.
	receiver := stx.Txn.AssetReceiver.String()
	if receiver != requirements.PayTo {
		return withPayer(invalid("Recipient mismatch: transaction pays %s, requirements specify %s", receiver, requirements.PayTo), sender), nil
	}

	// 3. Amount.
	required, err := parseUint(requirements.MaxAmountRequired)
	if err != nil {
		return nil, err
	}
	if stx.Txn.AssetAmount != required {
		return withPayer(invalid("Amount mismatch: transaction transfers %d, requirements specify %d", stx.Txn.AssetAmount, required), sender), nil
	}

	// 4. Asset.
	requiredAsset, err := parseUint(requirements.Asset)
	if err != nil {
		return nil, err
	}
	if uint64(stx.Txn.XferAsset) != requiredAsset {
		return withPayer(invalid("Asset mismatch: transaction transfers asset %d, requirements specify %d", stx.Txn.XferAsset, requiredAsset), sender), nil
	}

	// 5. Expiration.
	if currentRound > uint64(stx.Txn.LastValid) {
		return withPayer(invalid("Transaction expired: last valid round %d, current round %d", stx.Txn.LastValid, currentRound), sender), nil
	}

	return &x402.VerifyResponse{
		IsValid: true,
		Payer:   sender,
	}, nil
}

func withPayer(resp *x402.VerifyResponse, payer string) *x402.VerifyResponse {
	resp.Payer = payer
	return resp
}
