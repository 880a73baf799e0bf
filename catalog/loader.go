/*
loader.go - Catalog construction from YAML files

PURPOSE:
  The price list is static per deployment but changes between them, so it
  loads from a YAML file at startup. When no file is configured the
  built-in default catalog is used. Swapping this loader for a CMS or
  database source would not change the purchase saga's contract.

FILE FORMAT:
  items:
    - id: badge-gold
      name: Gold Badge
      base_price: 200
      discount_percent: 20
      available: true
      category: badge
      icon: badge_gold.png
      rarity: rare
*/
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Items []Item `yaml:"items"`
}

// LoadFile reads a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	return New(file.Items)
}

// Default returns the built-in catalog used when no file is configured.
func Default() *Catalog {
	c, err := New([]Item{
		{ID: "badge-bronze", Name: "Bronze Badge", BasePrice: 50, Available: true, Category: "badge", Icon: "badge_bronze.png", Rarity: "common"},
		{ID: "badge-silver", Name: "Silver Badge", BasePrice: 120, Available: true, Category: "badge", Icon: "badge_silver.png", Rarity: "uncommon"},
		{ID: "badge-gold", Name: "Gold Badge", BasePrice: 200, DiscountPercent: 20, Available: true, Category: "badge", Icon: "badge_gold.png", Rarity: "rare"},
		{ID: "frame-neon", Name: "Neon Profile Frame", BasePrice: 150, Available: true, Category: "frame", Icon: "frame_neon.png", Rarity: "uncommon"},
		{ID: "title-pioneer", Name: "Pioneer Title", BasePrice: 300, Available: false, Category: "title", Icon: "title_pioneer.png", Rarity: "legendary"},
	})
	if err != nil {
		panic(err) // static data, cannot fail
	}
	return c
}
