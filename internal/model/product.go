package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category is the fixed set of product categories.
type Category string

const (
	CategoryElectronics    Category = "Electronics"
	CategoryHomeAppliances Category = "HomeAppliances"
	CategoryFurniture      Category = "Furniture"
	CategoryAccessories    Category = "Accessories"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryElectronics,
	CategoryHomeAppliances,
	CategoryFurniture,
	CategoryAccessories,
}

// Validate implements the enum contract used by the "enum" validation tag.
func (c Category) Validate() error {
	for _, valid := range Categories {
		if c == valid {
			return nil
		}
	}
	return fmt.Errorf("unknown category: %q", string(c))
}

type Product struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Category        Category  `json:"category"`
	UnitPrice       *float64  `json:"unit_price"`
	QuantityInStock *int      `json:"quantity_in_stock"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
