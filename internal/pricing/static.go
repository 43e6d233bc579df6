package pricing

import "context"

// StaticConfig is a fixed-value Config for development and tests.
// Production uses the database-backed config in internal/repository.
type StaticConfig struct {
	RateBps        int64
	Rule           ShippingRule
	SurchargeCents int64
}

var _ Config = (*StaticConfig)(nil)

// NewStaticConfig creates a Config returning the given fixed values.
func NewStaticConfig(rateBps int64, rule ShippingRule, surchargeCents int64) *StaticConfig {
	return &StaticConfig{RateBps: rateBps, Rule: rule, SurchargeCents: surchargeCents}
}

func (c *StaticConfig) TaxRateBps(ctx context.Context) (int64, error) {
	return c.RateBps, nil
}

func (c *StaticConfig) Shipping(ctx context.Context) (ShippingRule, error) {
	return c.Rule, nil
}

func (c *StaticConfig) CustomizationSurchargeCents(ctx context.Context) (int64, error) {
	return c.SurchargeCents, nil
}
