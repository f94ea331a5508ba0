package commerce

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveProductJSON = `{
	"id": "prod-1",
	"type": "product",
	"name": "Blue mug",
	"description": "A mug, blue",
	"slug": "blue-mug",
	"sku": "MUG-001",
	"status": "live",
	"meta": {
		"display_price": {
			"with_tax": {"formatted": "$243.50", "currency": "USD"}
		}
	},
	"relationships": {
		"main_image": {"data": {"id": "file-9", "type": "main_image"}}
	}
}`

func TestParseProduct(t *testing.T) {
	product, err := ParseProduct([]byte(liveProductJSON))
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.Equal(t, "prod-1", product.ID)
	assert.Equal(t, "product", product.Type)
	assert.Equal(t, "Blue mug", product.Name)
	assert.Equal(t, "A mug, blue", product.Description)
	assert.Equal(t, "blue-mug", product.Slug)
	assert.Equal(t, "MUG-001", product.SKU)
	assert.Equal(t, "$243.50", product.FormattedPrice)
	assert.Equal(t, "USD", product.Currency)
	assert.Equal(t, "file-9", product.MainImageID)
}

func TestParseProductNotLive(t *testing.T) {
	product, err := ParseProduct([]byte(`{"id": "prod-2", "status": "draft", "meta": {}, "relationships": {}}`))
	require.NoError(t, err)
	assert.Nil(t, product, "non-live product must parse to absent, not error")
}

func TestParseProductMissingDisplayPrice(t *testing.T) {
	product, err := ParseProduct([]byte(`{
		"id": "prod-3", "type": "product", "name": "No price yet",
		"description": "", "slug": "no-price", "sku": "NP-1",
		"status": "live", "meta": {}, "relationships": {}
	}`))
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.False(t, product.HasPrice())
	assert.Empty(t, product.Currency)
	assert.Empty(t, product.MainImageID)
}

func TestParseProductInvalidShape(t *testing.T) {
	_, err := ParseProduct([]byte(`["not", "an", "object"]`))
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.NotEmpty(t, malformed.Body)
}

func TestParseProductsDropsNonLive(t *testing.T) {
	const n = 4
	list := "["
	for i := 0; i < n; i++ {
		status := "live"
		if i == 2 {
			status = "draft"
		}
		if i > 0 {
			list += ","
		}
		list += fmt.Sprintf(`{"id": "p%d", "type": "product", "name": "P%d", "description": "",
			"slug": "p%d", "sku": "p%d", "status": "%s", "meta": {}, "relationships": {}}`,
			i, i, i, i, status)
	}
	list += "]"

	products, err := ParseProducts([]byte(list))
	require.NoError(t, err)
	require.Len(t, products, n-1)
	for _, p := range products {
		assert.NotEqual(t, "p2", p.ID)
	}
}

func TestParseFile(t *testing.T) {
	file, err := ParseFile([]byte(`{
		"id": "file-9", "type": "file", "file_name": "mug.png",
		"link": {"href": "https://cdn.example.com/mug.png"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "file-9", file.ID)
	assert.Equal(t, "mug.png", file.FileName)
	assert.Equal(t, "https://cdn.example.com/mug.png", file.Link)
}

func TestParseCartHeader(t *testing.T) {
	header, err := ParseCartHeader([]byte(`{
		"id": "chat-42",
		"meta": {
			"display_price": {"with_tax": {"formatted": "$487.00", "currency": "USD"}},
			"timestamps": {"created_at": "2018-05-21T14:22:28+00:00"}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "chat-42", header.ID)
	assert.Equal(t, "$487.00", header.FormattedPrice)
	assert.Equal(t, "USD", header.Currency)
	require.NotNil(t, header.CreatedAt)
	want := time.Date(2018, 5, 21, 14, 22, 28, 0, time.UTC)
	assert.True(t, header.CreatedAt.Equal(want))
}

func TestParseCartHeaderBadTimestamp(t *testing.T) {
	header, err := ParseCartHeader([]byte(`{
		"id": "chat-42",
		"meta": {
			"display_price": {"with_tax": {"formatted": "$0.00", "currency": "USD"}},
			"timestamps": {"created_at": "yesterday"}
		}
	}`))
	require.NoError(t, err, "timestamp mismatch must not be an error")
	assert.Nil(t, header.CreatedAt)
	assert.Equal(t, "$0.00", header.FormattedPrice, "price data is kept")
}

func TestParseCartItemsMinorUnits(t *testing.T) {
	items, err := ParseCartItems("chat-42", []byte(`[{
		"id": "item-1",
		"product_id": "prod-1",
		"name": "Blue mug",
		"description": "A mug, blue",
		"sku": "MUG-001",
		"quantity": 2,
		"unit_price": {"amount": 24350, "currency": "USD"},
		"meta": {
			"display_price": {"with_tax": {
				"unit": {"formatted": "$243.50"},
				"value": {"formatted": "$487.00"}
			}}
		}
	}]`))
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "chat-42", item.CartID)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "prod-1", item.ProductID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "$243.50", item.FormattedUnitPrice)
	assert.Equal(t, "$487.00", item.FormattedLinePrice)
	assert.Equal(t, "USD", item.Currency)

	// 24350 minor units is exactly 243.50, no floating rounding.
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("243.50")),
		"got %s", item.UnitPrice)
	assert.Equal(t, "243.5", item.UnitPrice.String())
}

func TestParseCartItemsInvalidShape(t *testing.T) {
	_, err := ParseCartItems("chat-42", []byte(`{"not": "a list"}`))
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}
