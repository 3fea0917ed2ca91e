// Package x402 implements the x402 payment-required protocol for
// agent-to-agent commerce: structured payment challenges, chain-native
// signed payment instruments, verification, settlement, and the payment
// lifecycle state machine. Chain-specific signing lives under signers/,
// node access under chain/, and local verification and settlement under
// verification/ and settlement/.
package x402

import (
	"fmt"
	"regexp"
	"strconv"
)

// NetworkFamily identifies the chain family a network belongs to.
// The family selects which signer, verifier, and settler variant applies.
type NetworkFamily int

const (
	// FamilyUnknown represents an unrecognized network.
	FamilyUnknown NetworkFamily = iota
	// FamilyEVM represents Ethereum Virtual Machine chains.
	FamilyEVM
	// FamilyAlgorand represents Algorand chains.
	FamilyAlgorand
)

func (f NetworkFamily) String() string {
	switch f {
	case FamilyEVM:
		return "evm"
	case FamilyAlgorand:
		return "algorand"
	default:
		return "unknown"
	}
}

// NetworkConfig describes one supported network. The table below is immutable
// configuration; all lookups are pure reads.
type NetworkConfig struct {
	// ID is the x402 network identifier (e.g., "base", "algorand-testnet").
	ID string

	// Family is the chain family the network belongs to.
	Family NetworkFamily

	// ChainID is the EVM chain identifier (zero for non-EVM networks).
	ChainID int64

	// GenesisID is the Algorand genesis identifier (empty for non-Algorand networks).
	GenesisID string

	// USDCAsset is the USDC contract address (EVM) or ASA index (Algorand).
	USDCAsset string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals uint8

	// EIP3009Name is the EIP-712 domain "name" of the USDC contract (EVM only).
	EIP3009Name string

	// EIP3009Version is the EIP-712 domain "version" of the USDC contract (EVM only).
	EIP3009Version string

	// AvgBlockSeconds is the network's average block/round time, used to
	// convert timeout seconds into validity rounds (Algorand only).
	AvgBlockSeconds float64

	// DefaultRPCURL is the public node endpoint used when none is configured.
	DefaultRPCURL string
}

var networks = map[string]NetworkConfig{
	"base": {
		ID:             "base",
		Family:         FamilyEVM,
		ChainID:        8453,
		USDCAsset:      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://mainnet.base.org",
	},
	"base-sepolia": {
		ID:             "base-sepolia",
		Family:         FamilyEVM,
		ChainID:        84532,
		USDCAsset:      "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://sepolia.base.org",
	},
	"polygon": {
		ID:             "polygon",
		Family:         FamilyEVM,
		ChainID:        137,
		USDCAsset:      "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://polygon-rpc.com",
	},
	"polygon-amoy": {
		ID:             "polygon-amoy",
		Family:         FamilyEVM,
		ChainID:        80002,
		USDCAsset:      "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://rpc-amoy.polygon.technology",
	},
	"avalanche": {
		ID:             "avalanche",
		Family:         FamilyEVM,
		ChainID:        43114,
		USDCAsset:      "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://api.avax.network/ext/bc/C/rpc",
	},
	"avalanche-fuji": {
		ID:             "avalanche-fuji",
		Family:         FamilyEVM,
		ChainID:        43113,
		USDCAsset:      "0x5425890298aed601595a70AB815c96711a31Bc65",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
		DefaultRPCURL:  "https://api.avax-test.network/ext/bc/C/rpc",
	},
	"algorand": {
		ID:              "algorand",
		Family:          FamilyAlgorand,
		GenesisID:       "mainnet-v1.0",
		USDCAsset:       "31566704",
		Decimals:        6,
		AvgBlockSeconds: 4.5,
		DefaultRPCURL:   "https://mainnet-api.algonode.cloud",
	},
	"algorand-testnet": {
		ID:              "algorand-testnet",
		Family:          FamilyAlgorand,
		GenesisID:       "testnet-v1.0",
		USDCAsset:       "10458941",
		Decimals:        6,
		AvgBlockSeconds: 4.5,
		DefaultRPCURL:   "https://testnet-api.algonode.cloud",
	},
}

var evmAssetRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// LookupNetwork returns the configuration for the given network identifier.
// Unknown identifiers fail with ErrUnsupportedNetwork.
func LookupNetwork(id string) (NetworkConfig, error) {
	cfg, ok := networks[id]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, id)
	}
	return cfg, nil
}

// NetworkFamilyOf returns the chain family of a network identifier, or
// FamilyUnknown if the network is not supported.
func NetworkFamilyOf(id string) NetworkFamily {
	cfg, ok := networks[id]
	if !ok {
		return FamilyUnknown
	}
	return cfg.Family
}

// ValidateNetwork validates a network identifier and returns its family.
func ValidateNetwork(id string) (NetworkFamily, error) {
	if id == "" {
		return FamilyUnknown, fmt.Errorf("%w: empty network identifier", ErrUnsupportedNetwork)
	}
	cfg, ok := networks[id]
	if !ok {
		return FamilyUnknown, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, id)
	}
	return cfg.Family, nil
}

// SupportedNetworks returns the identifiers of all configured networks.
func SupportedNetworks() []string {
	ids := make([]string, 0, len(networks))
	for id := range networks {
		ids = append(ids, id)
	}
	return ids
}

// ValidateAssetForNetwork checks that an asset identifier has the correct
// format for the given network: a 0x-prefixed contract address on EVM
// chains, a decimal ASA index on Algorand chains.
func ValidateAssetForNetwork(network, asset string) error {
	if asset == "" {
		return fmt.Errorf("asset cannot be empty")
	}

	family, err := ValidateNetwork(network)
	if err != nil {
		return err
	}

	switch family {
	case FamilyEVM:
		if !evmAssetRegex.MatchString(asset) {
			return fmt.Errorf("asset %q is invalid for EVM network %q, expected 0x-prefixed hex address", asset, network)
		}
	case FamilyAlgorand:
		if _, err := strconv.ParseUint(asset, 10, 64); err != nil {
			return fmt.Errorf("asset %q is invalid for Algorand network %q, expected decimal asset index", asset, network)
		}
	}

	return nil
}
