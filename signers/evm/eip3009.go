package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	x402 "github.com/a2apay/x402-go"
)

// Default EIP-712 domain parameters for USDC contracts, used when the
// payment requirements carry no explicit name/version in Extra.
const (
	DefaultDomainName    = "USDC"
	DefaultDomainVersion = "2"
)

// clockDriftGuard is subtracted from validAfter so an authorization signed
// on a slightly fast clock is not rejected by the verifying party.
const clockDriftGuard = 10 * time.Second

// Authorization represents the parameters of an EIP-3009
// transferWithAuthorization call.
type Authorization struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	ValidAfter  *big.Int
	ValidBefore *big.Int
	Nonce       common.Hash
}

// CreateAuthorization creates an authorization with a fresh random nonce and
// a validity window of [now - drift guard, now + timeoutSeconds].
func CreateAuthorization(from, to common.Address, value *big.Int, timeoutSeconds int) (*Authorization, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	validAfter := big.NewInt(now.Add(-clockDriftGuard).Unix())
	validBefore := big.NewInt(now.Unix() + int64(timeoutSeconds))

	return &Authorization{
		From:        from,
		To:          to,
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
	}, nil
}

// DomainFromRequirements extracts the asset's EIP-712 domain name and version
// from the requirements' Extra field, falling back to the USDC defaults.
func DomainFromRequirements(requirements *x402.PaymentRequirements) (name, version string) {
	name, version = DefaultDomainName, DefaultDomainVersion
	if requirements.Extra == nil {
		return name, version
	}
	if v, ok := requirements.Extra["name"].(string); ok && v != "" {
		name = v
	}
	if v, ok := requirements.Extra["version"].(string); ok && v != "" {
		version = v
	}
	return name, version
}

// typedData builds the EIP-712 typed data for a transferWithAuthorization.
func typedData(tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(chainID),
			VerifyingContract: tokenAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From.Hex(),
			"to":          auth.To.Hex(),
			"value":       (*math.HexOrDecimal256)(auth.Value),
			"validAfter":  (*math.HexOrDecimal256)(auth.ValidAfter),
			"validBefore": (*math.HexOrDecimal256)(auth.ValidBefore),
			"nonce":       auth.Nonce.Hex(),
		},
	}
}

// Digest computes the EIP-712 signing digest for a transferWithAuthorization:
// keccak256("\x19\x01" || domainSeparator || structHash).
func Digest(tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) ([]byte, error) {
	td := typedData(tokenAddress, chainID, auth, name, version)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := td.HashStruct("TransferWithAuthorization", td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return crypto.Keccak256(rawData), nil
}

// SignTransferAuthorization signs an EIP-3009 transferWithAuthorization using
// EIP-712 and returns the hex-encoded 65-byte signature with v in {27, 28}.
func SignTransferAuthorization(privateKey *ecdsa.PrivateKey, tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) (string, error) {
	digest, err := Digest(tokenAddress, chainID, auth, name, version)
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return "", x402.NewPaymentError(x402.ErrCodeSigningFailed, "failed to sign authorization", err)
	}

	// go-ethereum yields v in {0, 1}; contracts expect {27, 28}.
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

// RecoverSigner recovers the address that produced the given hex signature
// over the authorization's EIP-712 digest. Both v conventions ({0, 1} and
// {27, 28}) are accepted.
func RecoverSigner(signatureHex string, tokenAddress common.Address, chainID *big.Int, auth *Authorization, name, version string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: signature is not hex: %v", x402.ErrMalformedPayload, err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: signature must be 65 bytes, got %d", x402.ErrMalformedPayload, len(sig))
	}

	digest, err := Digest(tokenAddress, chainID, auth, name, version)
	if err != nil {
		return common.Address{}, err
	}

	recoverSig := make([]byte, 65)
	copy(recoverSig, sig)
	if recoverSig[64] >= 27 {
		recoverSig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, recoverSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: signature recovery failed: %v", x402.ErrMalformedPayload, err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// AuthorizationFromPayload parses the wire-form authorization into typed
// values, validating the numeric fields.
func AuthorizationFromPayload(auth *x402.EVMAuthorization) (*Authorization, error) {
	value, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: value %q is not a decimal integer", x402.ErrMalformedPayload, auth.Value)
	}
	validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
	if !ok {
		return nil, fmt.Errorf("%w: validAfter %q is not a decimal integer", x402.ErrMalformedPayload, auth.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
	if !ok {
		return nil, fmt.Errorf("%w: validBefore %q is not a decimal integer", x402.ErrMalformedPayload, auth.ValidBefore)
	}
	if !common.IsHexAddress(auth.From) || !common.IsHexAddress(auth.To) {
		return nil, fmt.Errorf("%w: from/to must be hex addresses", x402.ErrMalformedPayload)
	}

	return &Authorization{
		From:        common.HexToAddress(auth.From),
		To:          common.HexToAddress(auth.To),
		Value:       value,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       common.HexToHash(auth.Nonce),
	}, nil
}

// generateNonce generates a cryptographically secure 32-byte random nonce.
func generateNonce() (common.Hash, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(nonce[:]), nil
}
