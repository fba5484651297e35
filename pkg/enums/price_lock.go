package enums

import "strings"

// PriceLock selects which unit price a checkout charges.
type PriceLock string

const (
	// PriceLockCart charges the price captured when the item first entered the cart.
	PriceLockCart PriceLock = "cart"
	// PriceLockCheckout charges the live product price at checkout time.
	PriceLockCheckout PriceLock = "checkout"
)

var priceLocks = []PriceLock{PriceLockCart, PriceLockCheckout}

func (p PriceLock) IsValid() bool { return known(p, priceLocks) }

// ParsePriceLock is case-insensitive.
func ParsePriceLock(value string) (PriceLock, error) {
	return parse(strings.ToLower(strings.TrimSpace(value)), "price lock", priceLocks)
}
