package vagas

import "github.com/shopspring/decimal"

// QuantityFromDecimal converts a decoded JSON quantity into a slot count.
// Fractional values are rejected; sign is left for Validate and the
// course-change aggregation to judge.
func QuantityFromDecimal(course string, d decimal.Decimal) (int64, error) {
	if !d.IsInteger() || !d.Equal(decimal.NewFromInt(d.IntPart())) {
		return 0, &InvalidQuantityError{CourseRef: course, Quantity: d.String()}
	}
	return d.IntPart(), nil
}
