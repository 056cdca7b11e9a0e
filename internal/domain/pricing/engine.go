package pricing

import (
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// ComputePrice applies a policy chain to a base price and returns the
// effective local price, rounded half-up to the currency's minor unit.
//
// Policies run in ascending priority order; each operates on the running
// price produced by the previous one. Clamp policies apply at their priority
// position, not at the end, so reordering a chain legitimately changes the
// result. The function is pure: same inputs always yield the same output.
//
// costPrice may be nil; it is only required by FIXED_MARGIN policies, which
// otherwise fail with ErrMissingCost.
func ComputePrice(basePrice decimal.Decimal, costPrice *decimal.Decimal, policies []PricePolicy) (decimal.Decimal, error) {
	price := basePrice
	for _, policy := range SortPolicies(policies) {
		if !policy.Active {
			continue
		}
		if err := policy.Validate(); err != nil {
			return decimal.Zero, err
		}

		switch policy.Type {
		case PolicyTypeMarkup:
			price = price.Add(price.Mul(policy.Value).Div(oneHundred))
		case PolicyTypeDiscount:
			price = price.Sub(price.Mul(policy.Value).Div(oneHundred))
		case PolicyTypeFixedMargin:
			if costPrice == nil {
				return decimal.Zero, ErrMissingCost
			}
			divisor := decimal.NewFromInt(1).Sub(policy.Value.Div(oneHundred))
			price = costPrice.Div(divisor)
		case PolicyTypeMinimumPrice:
			if price.LessThan(policy.Value) {
				price = policy.Value
			}
		case PolicyTypeMaximumPrice:
			if price.GreaterThan(policy.Value) {
				price = policy.Value
			}
		}
	}

	// Round half-up to cents. decimal.Round rounds half away from zero,
	// which is half-up for the non-negative prices this engine handles.
	return price.Round(2), nil
}
