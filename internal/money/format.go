package money

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var displayLocale = language.AmericanEnglish

// NormalizeCurrency returns the canonical ISO 4217 code for raw.
func NormalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", ErrInvalidCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", ErrInvalidCurrency
	}
	return unit.String(), nil
}

// Format renders amount as a monetary string in the given currency,
// e.g. 1234.56 USD -> "$1,234.56". Amounts always carry two decimals.
func Format(amount float64, code string) (string, error) {
	normalized, err := NormalizeCurrency(code)
	if err != nil {
		return "", err
	}
	unit := currency.MustParseISO(normalized)

	rounded, err := Round2(amount)
	if err != nil {
		return "", err
	}

	p := message.NewPrinter(displayLocale)
	symbol := p.Sprint(currency.NarrowSymbol(unit))
	digits := p.Sprintf("%.2f", math.Abs(rounded))

	if rounded < 0 {
		return "-" + symbol + digits, nil
	}
	return symbol + digits, nil
}
