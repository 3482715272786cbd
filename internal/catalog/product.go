// Package catalog holds the menu product model and the pure parsing logic
// used to turn CSV and spreadsheet exports into product candidates.
//
// Nothing in this package performs I/O against the catalog backend. Parsing is
// synchronous and deterministic: the same input always yields the same
// ImportResult.
package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BowlType is the container-size category of a menu item.
type BowlType string

const (
	BowlGM250  BowlType = "gm250"
	BowlGM350  BowlType = "gm350"
	BowlGM500  BowlType = "gm500"
	BowlCustom BowlType = "custom"
)

// BowlTypes lists every accepted bowl type in display order.
var BowlTypes = []BowlType{BowlGM250, BowlGM350, BowlGM500, BowlCustom}

// ParseBowlType matches s case-insensitively against the known bowl types.
// Surrounding whitespace is ignored.
func ParseBowlType(s string) (BowlType, bool) {
	candidate := BowlType(strings.ToLower(strings.TrimSpace(s)))
	for _, bt := range BowlTypes {
		if candidate == bt {
			return bt, true
		}
	}
	return "", false
}

// Valid reports whether b is one of the known bowl types.
func (b BowlType) Valid() bool {
	for _, bt := range BowlTypes {
		if b == bt {
			return true
		}
	}
	return false
}

func (b BowlType) String() string {
	return string(b)
}

// UnmarshalText normalizes case so JSON payloads with "GM250" decode to gm250.
func (b *BowlType) UnmarshalText(text []byte) error {
	bt, ok := ParseBowlType(string(text))
	if !ok {
		return &InvalidBowlTypeError{Value: string(text)}
	}
	*b = bt
	return nil
}

// InvalidBowlTypeError is returned when decoding an unknown bowl type.
type InvalidBowlTypeError struct {
	Value string
}

func (e *InvalidBowlTypeError) Error() string {
	return fmt.Sprintf("invalid enum bowl type %q (must be: %s)", e.Value, bowlTypeList())
}

// bowlTypeList renders the accepted values as "gm250, gm350, gm500, or custom".
func bowlTypeList() string {
	names := make([]string, len(BowlTypes))
	for i, bt := range BowlTypes {
		names[i] = string(bt)
	}
	last := len(names) - 1
	return strings.Join(names[:last], ", ") + ", or " + names[last]
}

// RecipeItem is one ingredient line of a product recipe.
type RecipeItem struct {
	Ingredient string `json:"ingredient"`
	Quantity   int64  `json:"quantity" jsonschema:"minimum=0"`
}

// Product is a menu item as stored in the catalog.
// Imported products are always active and start without a recipe.
type Product struct {
	Name     string       `json:"name" jsonschema:"minLength=1"`
	Category string       `json:"category" jsonschema:"minLength=1"`
	BowlType BowlType     `json:"bowlType" jsonschema:"enum=gm250,enum=gm350,enum=gm500,enum=custom"`
	Price    int64        `json:"price" jsonschema:"minimum=0"`
	Calories int64        `json:"calories" jsonschema:"minimum=0"`
	Protein  int64        `json:"protein" jsonschema:"minimum=0"`
	Carbs    int64        `json:"carbs" jsonschema:"minimum=0"`
	Fat      int64        `json:"fat" jsonschema:"minimum=0"`
	Fiber    int64        `json:"fiber" jsonschema:"minimum=0"`
	Sugar    int64        `json:"sugar" jsonschema:"minimum=0"`
	Active   bool         `json:"active"`
	Recipe   []RecipeItem `json:"recipe"`
}

// MarshalJSON keeps an empty recipe as [] rather than null.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	out := plain(p)
	if out.Recipe == nil {
		out.Recipe = []RecipeItem{}
	}
	return json.Marshal(out)
}

// ListOptions filters catalog listings.
type ListOptions struct {
	// IncludeInactive also returns products that were switched off.
	IncludeInactive bool
}
