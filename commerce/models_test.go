package commerce

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductPriceDerivation(t *testing.T) {
	cases := []struct {
		formatted string
		want      string
	}{
		{"$243.50", "243.50"},
		{"€19.99", "19.99"},
		{"£1,234.00", "1234.00"},
		{"100", "100"},
	}
	for _, tc := range cases {
		t.Run(tc.formatted, func(t *testing.T) {
			p := Product{FormattedPrice: tc.formatted}
			price, err := p.Price()
			require.NoError(t, err)
			want, err := decimal.NewFromString(tc.want)
			require.NoError(t, err)
			assert.True(t, price.Equal(want), "got %s, want %s", price, want)
		})
	}
}

func TestProductPriceMalformed(t *testing.T) {
	p := Product{FormattedPrice: "free!"}
	_, err := p.Price()
	var priceErr *PriceError
	require.ErrorAs(t, err, &priceErr)
	assert.Equal(t, "free!", priceErr.Raw)
}

func TestProductHasPrice(t *testing.T) {
	assert.False(t, Product{}.HasPrice())
	assert.True(t, Product{FormattedPrice: "$1.00"}.HasPrice())
}

func TestCartHeaderPrice(t *testing.T) {
	created := time.Date(2018, 5, 21, 14, 22, 28, 0, time.UTC)
	h := CartHeader{ID: "cart-1", FormattedPrice: "$487.00", Currency: "USD", CreatedAt: &created}
	price, err := h.Price()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("487.00")))
}
