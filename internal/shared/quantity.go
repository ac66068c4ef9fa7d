package shared

import "github.com/shopspring/decimal"

// NumericScale is the number of decimal places kept by the NUMERIC(18,4)
// quantity and price columns.
const NumericScale = 4

var numericLimit = decimal.New(1, 18-NumericScale)

// FitsNumeric reports whether d is stored by a NUMERIC(18,4) column without
// rounding or overflow.
func FitsNumeric(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(NumericScale)) && d.Abs().LessThan(numericLimit)
}
