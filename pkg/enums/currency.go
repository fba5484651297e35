package enums

import "strings"

// Currency is the ISO 4217 code attached to integer minor-unit amounts.
type Currency string

const (
	CurrencyNGN Currency = "NGN"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"

	// DefaultCurrency applies to products created without one.
	DefaultCurrency = CurrencyNGN
)

var currencies = []Currency{CurrencyNGN, CurrencyUSD, CurrencyEUR, CurrencyGBP}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool { return known(c, currencies) }

// ParseCurrency is case-insensitive.
func ParseCurrency(value string) (Currency, error) {
	return parse(strings.ToUpper(strings.TrimSpace(value)), "currency", currencies)
}
