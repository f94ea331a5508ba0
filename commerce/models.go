package commerce

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// derivePrice strips currency symbols and separators from a formatted price
// string ("$243.50") and parses the remainder as an exact decimal.
func derivePrice(formatted string) (decimal.Decimal, error) {
	cleaned := nonPriceChars.ReplaceAllString(formatted, "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, &PriceError{Raw: formatted}
	}
	return d, nil
}

// Product is a catalog entry. Instances are created fresh on every fetch and
// never persisted. FormattedPrice and Currency are empty when the upstream
// listing carries no display price; such a product is not yet orderable.
type Product struct {
	ID             string
	Type           string
	Name           string
	Description    string
	Slug           string
	SKU            string
	Currency       string
	FormattedPrice string
	MainImageID    string
}

// HasPrice reports whether the product carries a display price.
func (p Product) HasPrice() bool {
	return p.FormattedPrice != ""
}

// Price derives the numeric tax-inclusive price from FormattedPrice.
// It returns a *PriceError when the formatted string is malformed.
func (p Product) Price() (decimal.Decimal, error) {
	return derivePrice(p.FormattedPrice)
}

// File is a remotely hosted image referenced by a product's main image id.
type File struct {
	ID       string
	Type     string
	Link     string
	FileName string
}

// CartHeader is the summary view of a cart: its reference, formatted
// tax-inclusive total and creation time. CreatedAt is nil when the upstream
// timestamp did not match the expected layout; that is not an error.
type CartHeader struct {
	ID             string
	FormattedPrice string
	Currency       string
	CreatedAt      *time.Time
}

// Price derives the numeric cart total from FormattedPrice.
func (h CartHeader) Price() (decimal.Decimal, error) {
	return derivePrice(h.FormattedPrice)
}

// CartItem is one line of a cart. UnitPrice is the exact major-unit value
// converted from the upstream minor-unit amount. Items are transient: the
// upstream cart is the source of truth.
type CartItem struct {
	ID                 string
	CartID             string
	ProductID          string
	Name               string
	Description        string
	SKU                string
	Quantity           int
	UnitPrice          decimal.Decimal
	FormattedUnitPrice string
	FormattedLinePrice string
	Currency           string
}
