package woocommerce

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// typedKeys are the payload keys promoted onto Item's typed fields.
// Everything else lands in the Fields extension map so unrecognised
// store attributes round-trip through backups and sync untouched.
var typedKeys = map[string]bool{
	"id":            true,
	"sku":           true,
	"slug":          true,
	"name":          true,
	"description":   true,
	"regular_price": true,
	"sale_price":    true,
	"status":        true,
}

func decodeItem(body []byte) (*domain.Item, error) {
	payload := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return itemFromPayload(payload), nil
}

func decodeItemList(body []byte) ([]*domain.Item, error) {
	var payloads []map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payloads); err != nil {
		return nil, fmt.Errorf("decode item list: %w", err)
	}
	items := make([]*domain.Item, 0, len(payloads))
	for _, p := range payloads {
		items = append(items, itemFromPayload(p))
	}
	return items, nil
}

func itemFromPayload(payload map[string]any) *domain.Item {
	item := &domain.Item{
		ID:           asString(payload["id"]),
		SKU:          asString(payload["sku"]),
		Slug:         asString(payload["slug"]),
		Name:         asString(payload["name"]),
		Description:  asString(payload["description"]),
		RegularPrice: asString(payload["regular_price"]),
		SalePrice:    asString(payload["sale_price"]),
		Status:       asString(payload["status"]),
	}
	for k, v := range payload {
		if typedKeys[k] {
			continue
		}
		if item.Fields == nil {
			item.Fields = make(map[string]any)
		}
		item.Fields[k] = v
	}
	return item
}

// encodeItem builds the request payload for creates and updates.
// The remote assigns IDs, so the id key is never sent.
func encodeItem(item *domain.Item) map[string]any {
	payload := make(map[string]any, len(item.Fields)+7)
	for k, v := range item.Fields {
		payload[k] = v
	}
	setIfPresent(payload, "sku", item.SKU)
	setIfPresent(payload, "slug", item.Slug)
	setIfPresent(payload, "name", item.Name)
	setIfPresent(payload, "description", item.Description)
	setIfPresent(payload, "regular_price", item.RegularPrice)
	setIfPresent(payload, "sale_price", item.SalePrice)
	setIfPresent(payload, "status", item.Status)
	return payload
}

func setIfPresent(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

// asString renders a payload value as a string. WooCommerce serialises
// IDs as JSON numbers and prices as strings; both normalise here.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
