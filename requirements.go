package x402

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AddressResolver maps a human-readable name to a chain-native address for
// the given network. The NFD-style name service behind it is an external
// collaborator; the builder only needs this contract.
type AddressResolver interface {
	Resolve(ctx context.Context, name, network string) (string, error)
}

// TokenAmount is a price already expressed in atomic units of a specific
// asset. It passes through the builder unchanged.
type TokenAmount struct {
	// Value is the atomic-unit amount as a decimal integer string.
	Value string

	// Asset is the chain-native asset identifier.
	Asset string
}

// BuildOption configures BuildRequirements.
type BuildOption func(*builder)

type builder struct {
	description string
	mimeType    string
	timeout     int
	resolver    AddressResolver
	ctx         context.Context
}

// WithDescription sets the human-readable payment description.
func WithDescription(description string) BuildOption {
	return func(b *builder) { b.description = description }
}

// WithMimeType sets the content type of the protected resource.
func WithMimeType(mimeType string) BuildOption {
	return func(b *builder) { b.mimeType = mimeType }
}

// WithTimeout sets the validity window in seconds for the resulting payment
// instrument.
func WithTimeout(seconds int) BuildOption {
	return func(b *builder) { b.timeout = seconds }
}

// WithResolver supplies the address-resolution oracle used when payTo is a
// human-readable name rather than a chain-native address.
func WithResolver(r AddressResolver) BuildOption {
	return func(b *builder) { b.resolver = r }
}

// WithContext sets the context used for address resolution.
func WithContext(ctx context.Context) BuildOption {
	return func(b *builder) { b.ctx = ctx }
}

// BuildRequirements converts a human price plus a target network into a
// canonical PaymentRequirements record.
//
// price may be:
//   - a decimal currency string, optionally "$"-prefixed (e.g. "$1.50", "0.001")
//   - a float64 or int
//   - a TokenAmount, whose value and asset pass through unchanged
//
// Currency prices are converted to atomic units via
// floor(value * 10^decimals) using exact decimal arithmetic; all amount
// handling downstream is on integers. A price of zero is legal: free
// resources still traverse the protocol for uniformity.
func BuildRequirements(price interface{}, payTo, resource, network string, opts ...BuildOption) (*PaymentRequirements, error) {
	cfg, err := LookupNetwork(network)
	if err != nil {
		return nil, err
	}

	b := &builder{
		mimeType: "application/json",
		timeout:  300,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	amount, asset, err := atomicAmount(price, cfg)
	if err != nil {
		return nil, err
	}

	payTo, err = resolvePayTo(b, payTo, cfg)
	if err != nil {
		return nil, err
	}

	req := &PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           cfg.ID,
		Asset:             asset,
		PayTo:             payTo,
		MaxAmountRequired: amount,
		Resource:          resource,
		Description:       b.description,
		MimeType:          b.mimeType,
		MaxTimeoutSeconds: b.timeout,
	}

	if cfg.Family == FamilyEVM {
		req.Extra = map[string]interface{}{
			"name":    cfg.EIP3009Name,
			"version": cfg.EIP3009Version,
		}
	}

	return req, nil
}

func atomicAmount(price interface{}, cfg NetworkConfig) (value, asset string, err error) {
	switch p := price.(type) {
	case TokenAmount:
		d, err := decimal.NewFromString(p.Value)
		if err != nil {
			return "", "", fmt.Errorf("%w: token amount %q is not numeric", ErrInvalidPrice, p.Value)
		}
		if d.IsNegative() || !d.IsInteger() {
			return "", "", fmt.Errorf("%w: token amount %q is not a non-negative integer", ErrInvalidPrice, p.Value)
		}
		return p.Value, p.Asset, nil
	case string:
		return currencyToAtomic(strings.TrimPrefix(p, "$"), cfg)
	case float64:
		return currencyToAtomic(decimal.NewFromFloat(p).String(), cfg)
	case int:
		return currencyToAtomic(decimal.NewFromInt(int64(p)).String(), cfg)
	default:
		return "", "", fmt.Errorf("%w: unsupported price type %T", ErrInvalidPrice, price)
	}
}

func currencyToAtomic(s string, cfg NetworkConfig) (string, string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q is not numeric", ErrInvalidPrice, s)
	}
	if d.IsNegative() {
		return "", "", fmt.Errorf("%w: %q is negative", ErrInvalidPrice, s)
	}

	atomic := d.Shift(int32(cfg.Decimals)).Floor()
	return atomic.String(), cfg.USDCAsset, nil
}

func resolvePayTo(b *builder, payTo string, cfg NetworkConfig) (string, error) {
	if isNativeAddress(payTo, cfg.Family) {
		return payTo, nil
	}
	if b.resolver == nil {
		return "", fmt.Errorf("%w: %q is not a chain-native address and no resolver is configured", ErrAddressResolution, payTo)
	}

	resolved, err := b.resolver.Resolve(b.ctx, payTo, cfg.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrAddressResolution, payTo, err)
	}
	return resolved, nil
}

// isNativeAddress reports whether s already looks like a chain-native
// address for the family, as opposed to a human-readable name needing
// resolution.
func isNativeAddress(s string, family NetworkFamily) bool {
	switch family {
	case FamilyEVM:
		return evmAssetRegex.MatchString(s)
	case FamilyAlgorand:
		if len(s) != 58 {
			return false
		}
		for _, c := range s {
			if !((c >= 'A' && c <= 'Z') || (c >= '2' && c <= '7')) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
