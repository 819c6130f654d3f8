package domain

import "time"

// Store is a registered remote store the pipeline can read from and write to.
type Store struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	BaseURL        string    `json:"base_url"`
	ConsumerKey    string    `json:"consumer_key"`
	ConsumerSecret string    `json:"-"`
	Currency       string    `json:"currency"`
	Locale         string    `json:"locale"`
	Region         string    `json:"region"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the store configuration.
func (s *Store) Validate() error {
	if s.ID == "" {
		return ErrInvalidInput
	}
	if s.BaseURL == "" {
		return ErrInvalidInput
	}
	if s.ConsumerKey == "" || s.ConsumerSecret == "" {
		return ErrInvalidInput
	}
	return nil
}

// ContentClass identifies a class of store content that can be
// previewed, mutated, or synchronized.
type ContentClass string

const (
	ContentClassProducts     ContentClass = "products"
	ContentClassCategories   ContentClass = "categories"
	ContentClassTranslations ContentClass = "translations"
	ContentClassCurrencies   ContentClass = "currencies"
)

// Item is the store-agnostic record shape moved over the StoreClient port.
// Prices are decimal strings, matching the remote API representation.
type Item struct {
	ID           string         `json:"id"`
	SKU          string         `json:"sku,omitempty"`
	Slug         string         `json:"slug,omitempty"`
	Name         string         `json:"name,omitempty"`
	Description  string         `json:"description,omitempty"`
	RegularPrice string         `json:"regular_price,omitempty"`
	SalePrice    string         `json:"sale_price,omitempty"`
	Status       string         `json:"status,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// Field returns the value of a named field, checking the typed fields first
// and falling back to the extension map.
func (it *Item) Field(name string) (any, bool) {
	switch name {
	case "sku":
		return it.SKU, true
	case "slug":
		return it.Slug, true
	case "name":
		return it.Name, true
	case "description":
		return it.Description, true
	case "regular_price":
		return it.RegularPrice, true
	case "sale_price":
		return it.SalePrice, true
	case "status":
		return it.Status, true
	}
	v, ok := it.Fields[name]
	return v, ok
}

// SetField sets a named field, mirroring Field's routing.
func (it *Item) SetField(name string, value any) {
	s, _ := value.(string)
	switch name {
	case "sku":
		it.SKU = s
	case "slug":
		it.Slug = s
	case "name":
		it.Name = s
	case "description":
		it.Description = s
	case "regular_price":
		it.RegularPrice = s
	case "sale_price":
		it.SalePrice = s
	case "status":
		it.Status = s
	default:
		if it.Fields == nil {
			it.Fields = make(map[string]any)
		}
		it.Fields[name] = value
	}
}

// ApplyChanges returns a copy of the item with the requested changes applied.
func (it *Item) ApplyChanges(changes map[string]any) *Item {
	out := it.Clone()
	for field, value := range changes {
		out.SetField(field, value)
	}
	return out
}

// Clone returns a deep copy of the item.
func (it *Item) Clone() *Item {
	out := *it
	if it.Fields != nil {
		out.Fields = make(map[string]any, len(it.Fields))
		for k, v := range it.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}
