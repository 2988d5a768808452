package ledger

import "github.com/shopspring/decimal"

// TaxPolicy computes the tax-inclusive total billed for a pre-tax base
// amount. The rate is injected at construction so the ledger never depends on
// hidden process-wide state.
type TaxPolicy struct {
	Rate decimal.Decimal
}

// DefaultTaxPolicy is the 5% rate of the hospital suite.
func DefaultTaxPolicy() TaxPolicy {
	return TaxPolicy{Rate: decimal.NewFromFloat(0.05)}
}

// Total returns base * (1 + rate) rounded to 2 decimal places.
func (p TaxPolicy) Total(base decimal.Decimal) decimal.Decimal {
	tax := base.Mul(p.Rate)
	return base.Add(tax).Round(2)
}
