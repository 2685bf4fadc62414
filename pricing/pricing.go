package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotComputable is returned when no break-even price exists for a cost.
	ErrNotComputable = errors.New("break-even not computable")
	// ErrInvalidAmount is returned when a money string cannot be parsed.
	ErrInvalidAmount = errors.New("invalid money amount")
	// ErrInvalidSchedule is returned by Schedule.Validate.
	ErrInvalidSchedule = errors.New("invalid fee schedule")
)

const centPlaces = 2

var (
	one  = decimal.NewFromInt(1)
	cent = decimal.New(1, -centPlaces)
)

// Schedule is a two-regime marketplace fee schedule: a flat fee below
// Threshold and a percentage of the sale price at or above it.
type Schedule struct {
	FlatFee   decimal.Decimal
	Percent   decimal.Decimal
	Threshold decimal.Decimal
}

// Poshmark is the US schedule: $2.95 under $15, 20% at $15 and above.
var Poshmark = Schedule{
	FlatFee:   decimal.RequireFromString("2.95"),
	Percent:   decimal.RequireFromString("0.20"),
	Threshold: decimal.RequireFromString("15.00"),
}

// Validate checks that the schedule yields a defined break-even.
func (s Schedule) Validate() error {
	if s.FlatFee.IsNegative() || s.Threshold.IsNegative() || s.Percent.IsNegative() {
		return fmt.Errorf("%w: negative values", ErrInvalidSchedule)
	}
	if s.Percent.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: percent %s must be below 1", ErrInvalidSchedule, s.Percent)
	}
	return nil
}

// Fee returns the marketplace fee charged on a sale.
func (s Schedule) Fee(sale decimal.Decimal) decimal.Decimal {
	if sale.LessThan(s.Threshold) {
		return s.FlatFee
	}
	return sale.Mul(s.Percent).Round(centPlaces)
}

// Payout is what the seller receives after the fee.
func (s Schedule) Payout(sale decimal.Decimal) decimal.Decimal {
	return sale.Sub(s.Fee(sale)).Round(centPlaces)
}

// Profit is the payout less cost.
func (s Schedule) Profit(sale, cost decimal.Decimal) decimal.Decimal {
	return s.Payout(sale).Sub(cost).Round(centPlaces)
}

// BreakEven returns the minimum listing price whose payout covers cost.
// The result is rounded up to the next cent so the seller never
// under-recovers; a non-positive cost is ErrNotComputable.
func (s Schedule) BreakEven(cost decimal.Decimal) (decimal.Decimal, error) {
	if !cost.IsPositive() {
		return decimal.Zero, ErrNotComputable
	}

	flat := cost.Add(s.FlatFee)
	if flat.LessThan(s.Threshold) {
		return flat.RoundCeil(centPlaces), nil
	}

	keep := one.Sub(s.Percent)
	if !keep.IsPositive() {
		return decimal.Zero, ErrNotComputable
	}
	pct := cost.DivRound(keep, 16)
	// The percentage regime only starts at the threshold.
	if pct.LessThan(s.Threshold) {
		return s.Threshold.RoundCeil(centPlaces), nil
	}
	price := pct.RoundCeil(centPlaces)
	// DivRound may have rounded a non-terminating quotient down onto a cent.
	if price.Mul(keep).LessThan(cost) {
		price = price.Add(cent)
	}
	return price, nil
}

// Quote bundles the fee breakdown of a sale.
type Quote struct {
	SalePrice decimal.Decimal     `json:"sale_price"`
	Fee       decimal.Decimal     `json:"fee"`
	Payout    decimal.Decimal     `json:"payout"`
	Profit    decimal.NullDecimal `json:"profit"`
}

// Quote computes the breakdown for sale; Profit is only set when cost is given.
func (s Schedule) Quote(sale decimal.Decimal, cost *decimal.Decimal) Quote {
	q := Quote{
		SalePrice: sale.Round(centPlaces),
		Fee:       s.Fee(sale),
		Payout:    s.Payout(sale),
	}
	if cost != nil {
		q.Profit = decimal.NewNullDecimal(s.Profit(sale, *cost))
	}
	return q
}

// Fee uses the Poshmark schedule.
func Fee(sale decimal.Decimal) decimal.Decimal { return Poshmark.Fee(sale) }

// Payout uses the Poshmark schedule.
func Payout(sale decimal.Decimal) decimal.Decimal { return Poshmark.Payout(sale) }

// Profit uses the Poshmark schedule.
func Profit(sale, cost decimal.Decimal) decimal.Decimal { return Poshmark.Profit(sale, cost) }

// BreakEven uses the Poshmark schedule.
func BreakEven(cost decimal.Decimal) (decimal.Decimal, error) { return Poshmark.BreakEven(cost) }

// ParseMoney parses a user-entered amount such as "12.50" or "$12.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseOptionalMoney returns an invalid NullDecimal for blank or malformed input.
func ParseOptionalMoney(s string) decimal.NullDecimal {
	d, err := ParseMoney(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
