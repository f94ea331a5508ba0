package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mux            *http.ServeMux
	tokenExchanges atomic.Int64
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{mux: http.NewServeMux()}
	b.mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		b.tokenExchanges.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires":      time.Now().Add(time.Hour).Unix(),
		})
	})
	return b
}

func (b *fakeBackend) client(t *testing.T) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(b.mux)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		APIURL:       srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
	}, srv.Client())
	return c, srv
}

func (b *fakeBackend) serveProducts(payload string) {
	b.mux.HandleFunc("GET /v2/products", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(payload))
	})
}

func TestFirstRequestTriggersExactlyOneTokenExchange(t *testing.T) {
	backend := newFakeBackend()
	backend.serveProducts(`{"data": []}`)
	c, _ := backend.client(t)

	_, err := c.ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.tokenExchanges.Load())

	_, err = c.ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.tokenExchanges.Load(), "fresh token must be reused")
}

func TestTokenInsideMarginIsRefreshed(t *testing.T) {
	backend := newFakeBackend()
	backend.serveProducts(`{"data": []}`)
	c, _ := backend.client(t)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.accessToken = "stale"
	c.tokenExpiry = now.Add(5 * time.Second)

	_, err := c.ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.tokenExchanges.Load(), "5s left is inside the 10s margin")
}

func TestTokenOutsideMarginIsKept(t *testing.T) {
	backend := newFakeBackend()
	backend.serveProducts(`{"data": []}`)
	c, _ := backend.client(t)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.accessToken = "tok-valid"
	c.tokenExpiry = now.Add(30 * time.Second)

	_, err := c.ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, backend.tokenExchanges.Load(), "30s left needs no refresh")
}

func TestRequestCarriesBearerToken(t *testing.T) {
	backend := newFakeBackend()
	var gotAuth string
	backend.mux.HandleFunc("GET /v2/products", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	c, _ := backend.client(t)

	_, err := c.ListProducts(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestListProductsPageLimit(t *testing.T) {
	backend := newFakeBackend()
	var gotLimit string
	backend.mux.HandleFunc("GET /v2/products", func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("page[limit]")
		_, _ = w.Write([]byte(`{"data": []}`))
	})
	c, _ := backend.client(t)

	_, err := c.ListProducts(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "7", gotLimit)

	_, err = c.ListProducts(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "100", gotLimit, "non-positive limit falls back to the default page size")
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	backend := newFakeBackend()
	c, srv := backend.client(t)
	srv.Close()

	_, err := c.ListProducts(context.Background(), 0)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUpstreamRejectionIsAPIError(t *testing.T) {
	backend := newFakeBackend()
	backend.mux.HandleFunc("POST /v2/carts/chat-42/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors": [{"status": 400, "title": "Insufficient stock", "detail": "only 1 left"}]}`))
	})
	c, _ := backend.client(t)

	_, err := c.AddToCart(context.Background(), "chat-42", "prod-1", 2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "Insufficient stock", apiErr.Title)
	assert.Equal(t, "only 1 left", apiErr.Detail)
	assert.Contains(t, apiErr.URL, "/v2/carts/chat-42/items")
}

func TestMalformedBodyIsTypedError(t *testing.T) {
	backend := newFakeBackend()
	backend.serveProducts(`<html>definitely not json</html>`)
	c, _ := backend.client(t)

	_, err := c.ListProducts(context.Background(), 0)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Body, "not json")
}

func TestMissingEnvelopeIsTypedError(t *testing.T) {
	backend := newFakeBackend()
	backend.serveProducts(`{"result": []}`)
	c, _ := backend.client(t)

	_, err := c.ListProducts(context.Background(), 0)
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
}

func TestAddToCartReturnsAffectedLine(t *testing.T) {
	backend := newFakeBackend()
	backend.mux.HandleFunc("POST /v2/carts/chat-42/items", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [
			{"id": "item-0", "product_id": "prod-0", "name": "Other", "quantity": 1,
			 "unit_price": {"amount": 100, "currency": "USD"}, "meta": {}},
			{"id": "item-1", "product_id": "prod-1", "name": "Blue mug", "quantity": 2,
			 "unit_price": {"amount": 24350, "currency": "USD"}, "meta": {}}
		]}`))
	})
	c, _ := backend.client(t)

	item, err := c.AddToCart(context.Background(), "chat-42", "prod-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "chat-42", item.CartID)
}

func TestAddToCartValidatesQuantity(t *testing.T) {
	backend := newFakeBackend()
	c, _ := backend.client(t)

	_, err := c.AddToCart(context.Background(), "chat-42", "prod-1", 0)
	require.Error(t, err)
	assert.EqualValues(t, 0, backend.tokenExchanges.Load(), "invalid input must not reach the network")
}

func TestRemoveItemNotFoundSurfacesAPIError(t *testing.T) {
	backend := newFakeBackend()
	removed := false
	backend.mux.HandleFunc("DELETE /v2/carts/chat-42/items/item-1", func(w http.ResponseWriter, r *http.Request) {
		if removed {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors": [{"status": 404, "title": "Not Found", "detail": "no such item"}]}`))
			return
		}
		removed = true
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := backend.client(t)

	require.NoError(t, c.RemoveItem(context.Background(), "chat-42", "item-1"))

	err := c.RemoveItem(context.Background(), "chat-42", "item-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestGetCartParsesHeader(t *testing.T) {
	backend := newFakeBackend()
	backend.mux.HandleFunc("GET /v2/carts/chat-42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"id": "chat-42", "meta": {
			"display_price": {"with_tax": {"formatted": "$487.00", "currency": "USD"}},
			"timestamps": {"created_at": "2018-05-21T14:22:28+00:00"}
		}}}`))
	})
	c, _ := backend.client(t)

	header, err := c.GetCart(context.Background(), "chat-42")
	require.NoError(t, err)
	assert.Equal(t, "chat-42", header.ID)
	require.NotNil(t, header.CreatedAt)
}
