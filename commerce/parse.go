package commerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Parsing of raw data envelopes into domain entities. These functions are
// pure: no I/O, no client state. Missing optional keys (display price, main
// image, timestamps) yield absent fields, never errors; only an invalid
// document shape fails.

const productLiveStatus = "live"

// cartTimestampLayout is the strict layout for cart creation timestamps:
// ISO-8601 with an embedded UTC offset.
const cartTimestampLayout = "2006-01-02T15:04:05Z07:00"

type displayPrice struct {
	WithTax *struct {
		Formatted string `json:"formatted"`
		Currency  string `json:"currency"`
	} `json:"with_tax"`
}

type productPayload struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Slug          string `json:"slug"`
	SKU           string `json:"sku"`
	Status        string `json:"status"`
	Meta          struct {
		DisplayPrice *displayPrice `json:"display_price"`
	} `json:"meta"`
	Relationships struct {
		MainImage *struct {
			Data *struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

func (p *productPayload) toProduct() Product {
	out := Product{
		ID:          p.ID,
		Type:        p.Type,
		Name:        p.Name,
		Description: p.Description,
		Slug:        p.Slug,
		SKU:         p.SKU,
	}
	if dp := p.Meta.DisplayPrice; dp != nil && dp.WithTax != nil {
		out.FormattedPrice = dp.WithTax.Formatted
		out.Currency = dp.WithTax.Currency
	}
	if mi := p.Relationships.MainImage; mi != nil && mi.Data != nil {
		out.MainImageID = mi.Data.ID
	}
	return out
}

// ParseProduct converts a single product data object. A product whose status
// is not "live" yields (nil, nil): not orderable now, not a failure.
func ParseProduct(data []byte) (*Product, error) {
	var payload productPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedResponseError{Reason: "product: " + err.Error(), Body: truncateBody(data)}
	}
	if payload.Status != productLiveStatus {
		return nil, nil
	}
	product := payload.toProduct()
	return &product, nil
}

// ParseProducts converts a product list, silently dropping non-live entries.
func ParseProducts(data []byte) ([]Product, error) {
	var payloads []productPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, &MalformedResponseError{Reason: "product list: " + err.Error(), Body: truncateBody(data)}
	}
	products := make([]Product, 0, len(payloads))
	for i := range payloads {
		if payloads[i].Status != productLiveStatus {
			continue
		}
		products = append(products, payloads[i].toProduct())
	}
	return products, nil
}

// ParseFile converts a file data object.
func ParseFile(data []byte) (*File, error) {
	var payload struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		FileName string `json:"file_name"`
		Link     struct {
			HREF string `json:"href"`
		} `json:"link"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedResponseError{Reason: "file: " + err.Error(), Body: truncateBody(data)}
	}
	return &File{
		ID:       payload.ID,
		Type:     payload.Type,
		FileName: payload.FileName,
		Link:     payload.Link.HREF,
	}, nil
}

// ParseCartHeader converts a cart data object. A creation timestamp that does
// not match the strict layout yields a nil CreatedAt; price data is favoured
// over temporal metadata.
func ParseCartHeader(data []byte) (*CartHeader, error) {
	var payload struct {
		ID   string `json:"id"`
		Meta struct {
			DisplayPrice *displayPrice `json:"display_price"`
			Timestamps   *struct {
				CreatedAt string `json:"created_at"`
			} `json:"timestamps"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &MalformedResponseError{Reason: "cart: " + err.Error(), Body: truncateBody(data)}
	}
	header := &CartHeader{ID: payload.ID}
	if dp := payload.Meta.DisplayPrice; dp != nil && dp.WithTax != nil {
		header.FormattedPrice = dp.WithTax.Formatted
		header.Currency = dp.WithTax.Currency
	}
	if ts := payload.Meta.Timestamps; ts != nil && ts.CreatedAt != "" {
		if created, err := time.Parse(cartTimestampLayout, ts.CreatedAt); err == nil {
			header.CreatedAt = &created
		}
	}
	return header, nil
}

type cartItemPayload struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	UnitPrice   *struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"unit_price"`
	Meta struct {
		DisplayPrice *struct {
			WithTax *struct {
				Unit *struct {
					Formatted string `json:"formatted"`
				} `json:"unit"`
				Value *struct {
					Formatted string `json:"formatted"`
				} `json:"value"`
			} `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
}

func (p *cartItemPayload) toCartItem(cartID string) CartItem {
	item := CartItem{
		ID:          p.ID,
		CartID:      cartID,
		ProductID:   p.ProductID,
		Name:        p.Name,
		Description: p.Description,
		SKU:         p.SKU,
		Quantity:    p.Quantity,
	}
	if p.UnitPrice != nil {
		// Upstream amounts are minor units; divide by 100 exactly.
		item.UnitPrice = decimal.New(p.UnitPrice.Amount, -2)
		item.Currency = p.UnitPrice.Currency
	}
	if dp := p.Meta.DisplayPrice; dp != nil && dp.WithTax != nil {
		if dp.WithTax.Unit != nil {
			item.FormattedUnitPrice = dp.WithTax.Unit.Formatted
		}
		if dp.WithTax.Value != nil {
			item.FormattedLinePrice = dp.WithTax.Value.Formatted
		}
	}
	return item
}

// ParseCartItems converts a cart line-item list. The cart reference is not
// part of the upstream item payload and is carried in from the caller.
func ParseCartItems(cartID string, data []byte) ([]CartItem, error) {
	var payloads []cartItemPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, &MalformedResponseError{Reason: "cart items: " + err.Error(), Body: truncateBody(data)}
	}
	items := make([]CartItem, 0, len(payloads))
	for i := range payloads {
		items = append(items, payloads[i].toCartItem(cartID))
	}
	return items, nil
}
