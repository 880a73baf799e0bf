/*
Package catalog provides the static, read-only shop price list.

PURPOSE:
  Items purchasable with points: id, base price, optional discount, and
  availability. Loaded once at startup and never mutated afterwards, so
  lookups need no locking. A purchase references exactly one item by id;
  the final charged price is derived, never stored in the catalog.

PRICING:
  finalPrice = floor(basePrice * (1 - discountPercent/100)), floored at 0.
  Computed with decimal arithmetic so a 20% discount on 199 is exactly
  159, not a float approximation.

SEE ALSO:
  - loader.go: YAML catalog files and the built-in default catalog
  - shop: the purchase saga consuming EnsurePurchasable
*/
package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrItemNotFound is returned for an unknown item id.
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrItemUnavailable is returned when an item exists but cannot be
	// purchased right now.
	ErrItemUnavailable = errors.New("catalog item not available")
)

// =============================================================================
// ITEM
// =============================================================================

// Item is one purchasable catalog entry. ItemID is the immutable business
// key; display attributes are cached onto inventory lines at purchase time.
type Item struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	BasePrice       int64  `yaml:"base_price"`
	DiscountPercent int64  `yaml:"discount_percent"`
	Available       bool   `yaml:"available"`
	Category        string `yaml:"category"`
	Icon            string `yaml:"icon"`
	Rarity          string `yaml:"rarity"`
}

// FinalPrice returns the charged price after discount, floored at 0.
// A zero or absent discount returns BasePrice unchanged.
func FinalPrice(item Item) int64 {
	if item.DiscountPercent <= 0 {
		return item.BasePrice
	}
	price := decimal.NewFromInt(item.BasePrice).
		Mul(decimal.NewFromInt(100 - item.DiscountPercent)).
		Div(decimal.NewFromInt(100)).
		Floor()
	if price.IsNegative() {
		return 0
	}
	return price.IntPart()
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the in-process item index. Read-only after construction.
type Catalog struct {
	items map[string]Item
	order []string // original ordering for List
}

// New builds a catalog from items. Duplicate ids are rejected.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{items: make(map[string]Item, len(items))}
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item with empty id (name %q)", item.Name)
		}
		if _, dup := c.items[item.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog item id %q", item.ID)
		}
		c.items[item.ID] = item
		c.order = append(c.order, item.ID)
	}
	return c, nil
}

// Get returns the item for id.
func (c *Catalog) Get(id string) (Item, error) {
	item, ok := c.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrItemNotFound, id)
	}
	return item, nil
}

// List returns all items in catalog order.
func (c *Catalog) List() []Item {
	items := make([]Item, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, c.items[id])
	}
	return items
}

// EnsurePurchasable resolves an item and its final price, failing with
// ErrItemNotFound for unknown ids and ErrItemUnavailable for items that
// exist but are switched off.
func (c *Catalog) EnsurePurchasable(id string) (Item, int64, error) {
	item, err := c.Get(id)
	if err != nil {
		return Item{}, 0, err
	}
	if !item.Available {
		return Item{}, 0, fmt.Errorf("%w: %q", ErrItemUnavailable, id)
	}
	return item, FinalPrice(item), nil
}
