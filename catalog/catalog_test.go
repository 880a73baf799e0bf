package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/commune/points-engine/catalog"
)

// =============================================================================
// PRICING TESTS
// =============================================================================

func TestFinalPrice_NoDiscount_BasePrice(t *testing.T) {
	item := catalog.Item{ID: "x", BasePrice: 120}
	if got := catalog.FinalPrice(item); got != 120 {
		t.Errorf("FinalPrice = %d, want 120", got)
	}
}

func TestFinalPrice_Discount_Floored(t *testing.T) {
	cases := []struct {
		base     int64
		discount int64
		want     int64
	}{
		{200, 20, 160},
		{199, 20, 159}, // 159.2 floors to 159
		{100, 33, 67},  // 67.0
		{50, 33, 33},   // 33.5 floors to 33
		{100, 100, 0},
		{0, 50, 0},
	}
	for _, c := range cases {
		item := catalog.Item{ID: "x", BasePrice: c.base, DiscountPercent: c.discount}
		if got := catalog.FinalPrice(item); got != c.want {
			t.Errorf("FinalPrice(base=%d, discount=%d%%) = %d, want %d", c.base, c.discount, got, c.want)
		}
	}
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestCatalog_Get_Unknown(t *testing.T) {
	c := catalog.Default()

	_, err := c.Get("no-such-item")
	if !errors.Is(err, catalog.ErrItemNotFound) {
		t.Errorf("Get(unknown) = %v, want ErrItemNotFound", err)
	}
}

func TestCatalog_EnsurePurchasable_Unavailable(t *testing.T) {
	// GIVEN: An item that exists but is switched off
	// WHEN: Checking purchasability
	// THEN: ErrItemUnavailable, distinct from not-found

	c := catalog.Default()

	_, _, err := c.EnsurePurchasable("title-pioneer")
	if !errors.Is(err, catalog.ErrItemUnavailable) {
		t.Errorf("EnsurePurchasable(unavailable) = %v, want ErrItemUnavailable", err)
	}
}

func TestCatalog_EnsurePurchasable_AppliesDiscount(t *testing.T) {
	c := catalog.Default()

	item, price, err := c.EnsurePurchasable("badge-gold")
	if err != nil {
		t.Fatal(err)
	}
	if item.BasePrice != 200 || price != 160 {
		t.Errorf("badge-gold: base=%d final=%d, want 200/160", item.BasePrice, price)
	}
}

func TestCatalog_New_DuplicateID_Rejected(t *testing.T) {
	_, err := catalog.New([]catalog.Item{
		{ID: "dup", Name: "A"},
		{ID: "dup", Name: "B"},
	})
	if err == nil {
		t.Fatal("duplicate item id should be rejected")
	}
}

func TestCatalog_List_PreservesOrder(t *testing.T) {
	c, err := catalog.New([]catalog.Item{
		{ID: "c", Name: "C"},
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	})
	if err != nil {
		t.Fatal(err)
	}

	items := c.List()
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("List()[%d] = %s, want %s", i, items[i].ID, id)
		}
	}
}

// =============================================================================
// LOADER TESTS
// =============================================================================

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `items:
  - id: badge-test
    name: Test Badge
    base_price: 80
    discount_percent: 25
    available: true
    category: badge
    rarity: common
  - id: frame-test
    name: Test Frame
    base_price: 10
    available: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := catalog.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	item, price, err := c.EnsurePurchasable("badge-test")
	if err != nil {
		t.Fatal(err)
	}
	if item.Name != "Test Badge" || price != 60 {
		t.Errorf("badge-test: name=%q final=%d, want Test Badge/60", item.Name, price)
	}

	if _, _, err := c.EnsurePurchasable("frame-test"); !errors.Is(err, catalog.ErrItemUnavailable) {
		t.Errorf("frame-test should be unavailable, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := catalog.LoadFile("/nonexistent/catalog.yaml"); err == nil {
		t.Fatal("missing file should error")
	}
}
