package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StoreClient = (*Client)(nil)

const (
	apiBasePath = "/wp-json/wc/v3"
	pageSize    = 100
)

// Client speaks the WooCommerce v3 REST API for a single registered store.
// Authentication is HTTP basic with the store's consumer key and secret.
// Non-2xx responses surface as *domain.RemoteError so callers can tell a
// remote rejection (404, 422) apart from a transport failure.
type Client struct {
	store      *domain.Store
	httpClient *http.Client
	baseURL    string
	maxRetries int
}

// NewClient creates a client for the given store configuration.
func NewClient(store *domain.Store) *Client {
	return &Client{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(store.BaseURL, "/") + apiBasePath,
		maxRetries: 3,
	}
}

// classPath maps a content class to its REST collection path.
func classPath(class domain.ContentClass) string {
	switch class {
	case domain.ContentClassCategories:
		return "/products/categories"
	case domain.ContentClassTranslations:
		return "/translations"
	case domain.ContentClassCurrencies:
		return "/currencies"
	default:
		return "/products"
	}
}

// GetItem fetches a single item by identifier.
func (c *Client) GetItem(ctx context.Context, class domain.ContentClass, id string) (*domain.Item, error) {
	body, err := c.do(ctx, http.MethodGet, classPath(class)+"/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// ListItems fetches all items of a class, paginating until an empty page.
// Accumulation stops at driven.ListSafetyCap items.
func (c *Client) ListItems(ctx context.Context, class domain.ContentClass, filters map[string]string) ([]*domain.Item, error) {
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}
	query.Set("per_page", strconv.Itoa(pageSize))

	var items []*domain.Item
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))
		body, err := c.do(ctx, http.MethodGet, classPath(class), query, nil)
		if err != nil {
			return nil, err
		}
		batch, err := decodeItemList(body)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		items = append(items, batch...)
		if len(items) >= driven.ListSafetyCap {
			items = items[:driven.ListSafetyCap]
			break
		}
		if len(batch) < pageSize {
			break
		}
	}
	return items, nil
}

// CreateItem creates an item and returns the remote representation.
func (c *Client) CreateItem(ctx context.Context, class domain.ContentClass, item *domain.Item) (*domain.Item, error) {
	payload, err := json.Marshal(encodeItem(item))
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, classPath(class), nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// UpdateItem overwrites an existing item.
func (c *Client) UpdateItem(ctx context.Context, class domain.ContentClass, id string, item *domain.Item) (*domain.Item, error) {
	payload, err := json.Marshal(encodeItem(item))
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	body, err := c.do(ctx, http.MethodPut, classPath(class)+"/"+id, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// DeleteItem permanently deletes an item. force=true bypasses the trash
// so a later create with the same SKU does not collide with a trashed copy.
func (c *Client) DeleteItem(ctx context.Context, class domain.ContentClass, id string) error {
	query := url.Values{}
	query.Set("force", "true")
	_, err := c.do(ctx, http.MethodDelete, classPath(class)+"/"+id, query, nil)
	return err
}

// FindBySKU looks up a product by SKU. Returns (nil, nil) on no match.
func (c *Client) FindBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	query := url.Values{}
	query.Set("sku", sku)
	body, err := c.do(ctx, http.MethodGet, classPath(domain.ContentClassProducts), query, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeItemList(body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// FindBySlug looks up a category by slug. Returns (nil, nil) on no match.
func (c *Client) FindBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	query := url.Values{}
	query.Set("slug", slug)
	body, err := c.do(ctx, http.MethodGet, classPath(domain.ContentClassCategories), query, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeItemList(body)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// Ping checks connectivity by requesting the system status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/system_status", nil, nil)
	return err
}

// do performs one API request and returns the response body.
// 5xx responses are retried with linear backoff; other non-2xx responses
// return *domain.RemoteError with the upstream status and body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.SetBasicAuth(c.store.ConsumerKey, c.store.ConsumerSecret)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		// Keep the last response open; its body is read below even when
		// every attempt came back 5xx.
		if resp.StatusCode < 500 || attempt == c.maxRetries {
			break
		}

		// Server error, retry with backoff
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
