package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

func testStore(baseURL string) *domain.Store {
	return &domain.Store{
		ID:             "store-1",
		Name:           "Test Store",
		BaseURL:        baseURL,
		ConsumerKey:    "ck_test",
		ConsumerSecret: "cs_test",
		Currency:       "USD",
		Enabled:        true,
	}
}

func TestClient_GetItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/wp-json/wc/v3/products/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ck_test" || pass != "cs_test" {
			t.Error("expected basic auth with consumer key and secret")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "sku": "SKU-42", "name": "Widget", "regular_price": "19.99", "status": "publish", "stock_quantity": 7}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	item, err := client.GetItem(context.Background(), domain.ContentClassProducts, "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if item.ID != "42" {
		t.Errorf("expected ID 42, got %s", item.ID)
	}
	if item.SKU != "SKU-42" {
		t.Errorf("expected SKU-42, got %s", item.SKU)
	}
	if item.RegularPrice != "19.99" {
		t.Errorf("expected price 19.99, got %s", item.RegularPrice)
	}
	qty, ok := item.Fields["stock_quantity"]
	if !ok {
		t.Fatal("expected stock_quantity in extension fields")
	}
	if qty.(json.Number).String() != "7" {
		t.Errorf("expected stock_quantity 7, got %v", qty)
	}
}

func TestClient_GetItem_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_product_invalid_id"}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	_, err := client.GetItem(context.Background(), domain.ContentClassProducts, "999")
	if err == nil {
		t.Fatal("expected error")
	}

	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %T", err)
	}
	if remoteErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", remoteErr.StatusCode)
	}
}

func TestClient_ServerErrorOnEveryAttempt(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"internal_server_error","message":"upstream exploded"}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	client.maxRetries = 0 // exhaust retries immediately

	_, err := client.GetItem(context.Background(), domain.ContentClassProducts, "42")
	if err == nil {
		t.Fatal("expected error")
	}

	var remoteErr *domain.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", remoteErr.StatusCode)
	}
	if !strings.Contains(remoteErr.Body, "upstream exploded") {
		t.Errorf("expected upstream body preserved, got %q", remoteErr.Body)
	}
	if requests != 1 {
		t.Errorf("expected a single attempt, got %d", requests)
	}
}

func TestClient_ListItems_Paginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "100" {
			t.Errorf("expected per_page=100, got %s", r.URL.Query().Get("per_page"))
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		var items []map[string]any
		switch page {
		case 1:
			for i := 0; i < 100; i++ {
				items = append(items, map[string]any{"id": i + 1, "sku": "SKU-" + strconv.Itoa(i+1)})
			}
		case 2:
			for i := 100; i < 130; i++ {
				items = append(items, map[string]any{"id": i + 1, "sku": "SKU-" + strconv.Itoa(i+1)})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if items == nil {
			items = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	items, err := client.ListItems(context.Background(), domain.ContentClassProducts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 130 {
		t.Errorf("expected 130 items across two pages, got %d", len(items))
	}
	if items[129].SKU != "SKU-130" {
		t.Errorf("expected last item SKU-130, got %s", items[129].SKU)
	}
}

func TestClient_ListItems_PassesFilters(t *testing.T) {
	var gotStatus string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStatus = r.URL.Query().Get("status")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	_, err := client.ListItems(context.Background(), domain.ContentClassProducts, map[string]string{"status": "publish"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotStatus != "publish" {
		t.Errorf("expected status filter publish, got %q", gotStatus)
	}
}

func TestClient_CreateItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/wp-json/wc/v3/products" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if payload["sku"] != "NEW-1" {
			t.Errorf("expected sku NEW-1, got %v", payload["sku"])
		}
		if _, ok := payload["id"]; ok {
			t.Error("id must not be sent on create")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 501, "sku": "NEW-1", "name": "New Product", "status": "draft"}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	created, err := client.CreateItem(context.Background(), domain.ContentClassProducts, &domain.Item{
		SKU:  "NEW-1",
		Name: "New Product",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "501" {
		t.Errorf("expected remote-assigned ID 501, got %s", created.ID)
	}
}

func TestClient_UpdateItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/wp-json/wc/v3/products/42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["regular_price"] != "24.99" {
			t.Errorf("expected regular_price 24.99, got %v", payload["regular_price"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "sku": "SKU-42", "regular_price": "24.99"}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	updated, err := client.UpdateItem(context.Background(), domain.ContentClassProducts, "42", &domain.Item{
		SKU:          "SKU-42",
		RegularPrice: "24.99",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.RegularPrice != "24.99" {
		t.Errorf("expected updated price, got %s", updated.RegularPrice)
	}
}

func TestClient_DeleteItem_Forces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "DELETE" {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Query().Get("force") != "true" {
			t.Error("expected force=true on delete")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	if err := client.DeleteItem(context.Background(), domain.ContentClassProducts, "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_FindBySKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sku") != "SKU-42" {
			t.Errorf("expected sku query, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 42, "sku": "SKU-42"}]`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	item, err := client.FindBySKU(context.Background(), "SKU-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil || item.ID != "42" {
		t.Fatalf("expected item 42, got %+v", item)
	}
}

func TestClient_FindBySKU_NoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	item, err := client.FindBySKU(context.Background(), "MISSING")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item != nil {
		t.Errorf("expected nil for no match, got %+v", item)
	}
}

func TestClient_FindBySlug_UsesCategoriesPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/products/categories" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("slug") != "sale-items" {
			t.Errorf("expected slug query, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 9, "slug": "sale-items", "name": "Sale Items"}]`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	item, err := client.FindBySlug(context.Background(), "sale-items")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item == nil || item.Slug != "sale-items" {
		t.Fatalf("expected category sale-items, got %+v", item)
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wc/v3/system_status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"environment": {}}`))
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_Ping_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testStore(server.URL))
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for unauthorized store")
	}
}

func TestFactory_ReusesClientPerStore(t *testing.T) {
	factory := NewFactory()
	store := testStore("https://shop.example.com")

	c1, err := factory.Client(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := factory.Client(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1 != c2 {
		t.Error("expected cached client for same store")
	}
}

func TestFactory_RebuildsOnCredentialChange(t *testing.T) {
	factory := NewFactory()
	store := testStore("https://shop.example.com")

	c1, err := factory.Client(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rotated := *store
	rotated.ConsumerSecret = "cs_rotated"
	c2, err := factory.Client(&rotated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1 == c2 {
		t.Error("expected fresh client after credential rotation")
	}
}

func TestFactory_RejectsInvalidStore(t *testing.T) {
	factory := NewFactory()
	_, err := factory.Client(&domain.Store{ID: "incomplete"})
	if err == nil {
		t.Error("expected error for store without credentials")
	}
}
