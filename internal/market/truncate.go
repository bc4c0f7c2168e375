package market

import "github.com/shopspring/decimal"

// Truncate rounds d to digits decimal places, half away from zero.
// 12.3456@2 -> 12.35, 1234.9@0 -> 1235.
func Truncate(d decimal.Decimal, digits int) decimal.Decimal {
	if digits < 0 {
		return d
	}
	return d.Round(int32(digits))
}
