// Package calculator computes and validates per-participant share amounts.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitPlaces is the rounding precision for share amounts. Both TON
// and USDT bills are displayed and split at two decimal places.
const minorUnitPlaces = 2

// sumEpsilon is the permitted shortfall when validating a custom split,
// one minor unit.
var sumEpsilon = decimal.NewFromFloat(0.01)

// ComputeEqualShares divides total into count equal parts, each rounded
// up to the next minor unit. Rounding up guarantees the sum of shares is
// never less than total; the small surplus this can produce is accepted
// policy, not a bug.
func ComputeEqualShares(total decimal.Decimal, count int) ([]decimal.Decimal, error) {
	if count <= 0 {
		return nil, fmt.Errorf("participant count must be positive, got %d", count)
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("total must not be negative, got %s", total)
	}

	share := total.Div(decimal.NewFromInt(int64(count))).RoundUp(minorUnitPlaces)
	shares := make([]decimal.Decimal, count)
	for i := range shares {
		shares[i] = share
	}
	return shares, nil
}

// ValidateCustomSplit checks caller-provided shares against the bill
// total. The split is rejected when the shares fall short of the total by
// more than one minor unit; a surplus is always allowed. The asymmetry
// mirrors ComputeEqualShares, which rounds every share up.
func ValidateCustomSplit(total decimal.Decimal, shares []decimal.Decimal) error {
	if len(shares) == 0 {
		return fmt.Errorf("must have at least one share")
	}

	sum := decimal.Zero
	for i, s := range shares {
		if s.IsNegative() {
			return fmt.Errorf("share %d must not be negative, got %s", i, s)
		}
		sum = sum.Add(s)
	}

	if sum.Cmp(total.Sub(sumEpsilon)) < 0 {
		return fmt.Errorf("shares sum to %s, short of total %s", sum, total)
	}
	return nil
}
