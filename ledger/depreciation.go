/*
depreciation.go - Value-decay formulas

PURPOSE:
  Computes how much book value an asset loses over a window, and the book
  value that results. Pure functions: no store access, no side effects.

PERIOD LENGTH:
  Whole calendar months, (end.year - start.year) * 12 + (end.month - start.month).
  The day of month is ignored. A zero or negative span is a silent no-op
  that returns (0, current book value).

METHODS:
  LINEAR:
    amount   = (initial - salvage) * months / useful_life
    newValue = max(salvage, book - amount)

  DECLINING_BALANCE:
    rate = multiplier / useful_life, applied once per month to the running
    value. When a step would cross salvage, the final step is
    (running - salvage) and iteration stops.
    newValue = max(salvage, book - total)

EXAMPLE:
  10,000 over 12 months, 6 months, no salvage:
    LINEAR            -> amount 5,000, newValue 5,000
    DECLINING_BALANCE -> amount ~6,651, newValue ~3,349

SEE ALSO:
  - lifecycle.go: Depreciate commits the result
  - period.go: MonthsBetween
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultRateMultiplier gives double-declining balance.
var DefaultRateMultiplier = decimal.NewFromInt(2)

// DepreciationResult is the outcome of one calculation.
type DepreciationResult struct {
	Amount   decimal.Decimal
	NewValue decimal.Decimal
	Months   int
}

// CalculateDepreciation computes the decrement and resulting book value for
// an asset over [start, end]. Returns ErrUnsupportedMethod for an unknown
// method, before looking at the dates.
func CalculateDepreciation(asset Asset, start, end time.Time, salvage, rateMultiplier decimal.Decimal) (DepreciationResult, error) {
	switch asset.DepreciationMethod {
	case MethodLinear:
		return linear(asset, start, end, salvage), nil
	case MethodDecliningBalance:
		return decliningBalance(asset, start, end, salvage, rateMultiplier), nil
	default:
		return DepreciationResult{}, &UnsupportedMethodError{Method: asset.DepreciationMethod}
	}
}

func linear(asset Asset, start, end time.Time, salvage decimal.Decimal) DepreciationResult {
	months := MonthsBetween(start, end)
	book := asset.BookValue()
	if months <= 0 {
		return DepreciationResult{Amount: decimal.Zero, NewValue: book}
	}

	base := asset.InitialValue.Sub(salvage)
	amount := base.Mul(decimal.NewFromInt(int64(months))).Div(decimal.NewFromInt(int64(asset.UsefulLifeMonths)))

	return DepreciationResult{
		Amount:   amount,
		NewValue: decimal.Max(salvage, book.Sub(amount)),
		Months:   months,
	}
}

func decliningBalance(asset Asset, start, end time.Time, salvage, multiplier decimal.Decimal) DepreciationResult {
	months := MonthsBetween(start, end)
	book := asset.BookValue()
	if months <= 0 || !book.GreaterThan(salvage) {
		return DepreciationResult{Amount: decimal.Zero, NewValue: book, Months: max(months, 0)}
	}

	rate := multiplier.Div(decimal.NewFromInt(int64(asset.UsefulLifeMonths)))
	running := book
	total := decimal.Zero

	for i := 0; i < months; i++ {
		step := running.Mul(rate)
		if running.Sub(step).LessThan(salvage) {
			// Floor at salvage for the final step.
			total = total.Add(running.Sub(salvage))
			break
		}
		total = total.Add(step)
		running = running.Sub(step)
	}

	return DepreciationResult{
		Amount:   total,
		NewValue: decimal.Max(salvage, book.Sub(total)),
		Months:   months,
	}
}
