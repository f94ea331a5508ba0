package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"shopbot/core/logger"
)

const (
	oauthPath       = "oauth/access_token"
	productsPath    = "v2/products"
	productPathFmt  = "v2/products/%s"
	filePathFmt     = "v2/files/%s"
	cartPathFmt     = "v2/carts/%s"
	cartItemsFmt    = "v2/carts/%s/items"
	cartItemFmt     = "v2/carts/%s/items/%s"
)

// DefaultPageLimit is the catalog page size used when none is configured.
const DefaultPageLimit = 100

// tokenExpiryMargin is the safety window before the declared token expiry.
// A token with less than this margin remaining is refreshed before use.
const tokenExpiryMargin = 10 * time.Second

// Config holds commerce backend settings.
type Config struct {
	APIURL       string `yaml:"api_url" envconfig:"COMMERCE_API_URL"`
	ClientID     string `yaml:"client_id" envconfig:"COMMERCE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"COMMERCE_CLIENT_SECRET"`
	PageLimit    int    `yaml:"page_limit" envconfig:"COMMERCE_PAGE_LIMIT"`
}

// Client performs authenticated calls against the commerce backend. Token
// acquisition and refresh are hidden from callers entirely: each request
// checks the token first and refreshes synchronously when it is absent or
// inside the expiry margin. The check-then-refresh sequence is guarded so
// concurrent callers cannot double-refresh.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	pageLimit    int
	httpc        *http.Client

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient builds a Client from configuration. A nil httpc selects a tuned
// default client.
func NewClient(cfg Config, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = buildHTTPClient()
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pageLimit:    limit,
		httpc:        httpc,
		now:          time.Now,
	}
}

func buildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

// ListProducts fetches one catalog page of live products. A non-positive
// limit selects the configured page size.
func (c *Client) ListProducts(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = c.pageLimit
	}
	query := url.Values{"page[limit]": {fmt.Sprint(limit)}}
	data, err := c.do(ctx, http.MethodGet, productsPath, query, nil)
	if err != nil {
		return nil, err
	}
	return ParseProducts(data)
}

// GetProduct fetches a single product. It returns (nil, nil) when the product
// exists upstream but is not in live status.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	if id == "" {
		return nil, fmt.Errorf("commerce: empty product id")
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf(productPathFmt, url.PathEscape(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseProduct(data)
}

// GetFile fetches file metadata for a stored image.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	if id == "" {
		return nil, fmt.Errorf("commerce: empty file id")
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf(filePathFmt, url.PathEscape(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseFile(data)
}

// GetCart fetches the cart header for a reference. The backend creates the
// cart lazily; the client does not distinguish created from fetched.
func (c *Client) GetCart(ctx context.Context, cartRef string) (*CartHeader, error) {
	if cartRef == "" {
		return nil, fmt.Errorf("commerce: empty cart reference")
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf(cartPathFmt, url.PathEscape(cartRef)), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseCartHeader(data)
}

// GetCartItems fetches the line items of a cart.
func (c *Client) GetCartItems(ctx context.Context, cartRef string) ([]CartItem, error) {
	if cartRef == "" {
		return nil, fmt.Errorf("commerce: empty cart reference")
	}
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf(cartItemsFmt, url.PathEscape(cartRef)), nil, nil)
	if err != nil {
		return nil, err
	}
	return ParseCartItems(cartRef, data)
}

// AddToCart adds quantity units of a product to the cart and returns the
// added or merged line item. Upstream rejections (e.g. insufficient stock)
// surface as *APIError with the upstream title and detail.
func (c *Client) AddToCart(ctx context.Context, cartRef, productID string, quantity int) (*CartItem, error) {
	if cartRef == "" || productID == "" {
		return nil, fmt.Errorf("commerce: empty cart reference or product id")
	}
	if quantity < 1 {
		return nil, fmt.Errorf("commerce: quantity must be at least 1, got %d", quantity)
	}
	body := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	data, err := c.do(ctx, http.MethodPost, fmt.Sprintf(cartItemsFmt, url.PathEscape(cartRef)), nil, body)
	if err != nil {
		return nil, err
	}
	// The add response carries the full item list; pick the affected line.
	items, err := ParseCartItems(cartRef, data)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ProductID == productID {
			return &items[i], nil
		}
	}
	if len(items) > 0 {
		return &items[0], nil
	}
	return nil, &MalformedResponseError{Reason: "add to cart: empty item list", Body: truncateBody(data)}
}

// RemoveItem deletes a line item from the cart. An upstream "not found" is
// surfaced as *APIError rather than swallowed, so a repeated delete of the
// same item reports the rejection instead of faking success.
func (c *Client) RemoveItem(ctx context.Context, cartRef, itemID string) error {
	if cartRef == "" || itemID == "" {
		return fmt.Errorf("commerce: empty cart reference or item id")
	}
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf(cartItemFmt, url.PathEscape(cartRef), url.PathEscape(itemID)), nil, nil)
	return err
}

// do performs one authenticated request and returns the raw data envelope.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("commerce: encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		logger.Warn(ctx, "api", "request.fail",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logger.Debug(ctx, "api", "request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_code", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	if resp.StatusCode >= 400 {
		return nil, apiErrorFrom(resp.StatusCode, reqURL, raw)
	}

	// Deletions answer with an empty body on some backends.
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &MalformedResponseError{Reason: err.Error(), Body: truncateBody(raw)}
	}
	if envelope.Data == nil {
		return nil, &MalformedResponseError{Reason: "missing data envelope", Body: truncateBody(raw)}
	}
	return envelope.Data, nil
}

// ensureToken returns a token that is valid for at least the expiry margin,
// performing a client-credentials exchange when needed. The mutex makes the
// refresh single-flight under concurrent use.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	now := c.now()
	if c.accessToken != "" && c.tokenExpiry.Sub(now) > tokenExpiryMargin {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+oauthPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("commerce: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return "", apiErrorFrom(resp.StatusCode, c.baseURL+"/"+oauthPath, raw)
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		Expires     int64  `json:"expires"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &grant); err != nil || grant.AccessToken == "" {
		reason := "token exchange: missing access_token"
		if err != nil {
			reason = "token exchange: " + err.Error()
		}
		return "", &MalformedResponseError{Reason: reason, Body: truncateBody(raw)}
	}

	c.accessToken = grant.AccessToken
	switch {
	case grant.Expires > 0:
		c.tokenExpiry = time.Unix(grant.Expires, 0)
	case grant.ExpiresIn > 0:
		c.tokenExpiry = now.Add(time.Duration(grant.ExpiresIn) * time.Second)
	default:
		c.tokenExpiry = now.Add(time.Hour)
	}

	logger.Debug(ctx, "api", "token.refresh",
		slog.String("status", "ok"),
		slog.Time("expires_at", c.tokenExpiry),
	)
	return c.accessToken, nil
}

// apiErrorFrom decodes the upstream errors envelope into an APIError. A body
// that does not carry the envelope still yields an APIError with the HTTP
// status, never a MalformedResponse: the rejection itself is the signal.
func apiErrorFrom(statusCode int, reqURL string, raw []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Title:      http.StatusText(statusCode),
		URL:        reqURL,
	}
	var envelope struct {
		Errors []struct {
			Status json.Number `json:"status"`
			Title  string      `json:"title"`
			Detail string      `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		if first.Title != "" {
			apiErr.Title = first.Title
		}
		apiErr.Detail = first.Detail
		if code, err := first.Status.Int64(); err == nil && code != 0 {
			apiErr.StatusCode = int(code)
		}
	}
	return apiErr
}
