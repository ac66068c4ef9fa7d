package purchasing

import (
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency.With("currency", code)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency.With("currency", code)
	}
	return unit.String(), nil
}
