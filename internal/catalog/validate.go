package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Columns is the fixed column contract for product imports, in order.
var Columns = []string{
	"name", "category", "bowlType", "price",
	"calories", "protein", "carbs", "fat", "fiber", "sugar",
}

// ColumnCount is the number of columns every data row must provide.
const ColumnCount = 10

const (
	colName = iota
	colCategory
	colBowlType
	colPrice
	colCalories
	colProtein
	colCarbs
	colFat
	colFiber
	colSugar
)

// Rule identifies which validation rule rejected a row.
type Rule string

const (
	RuleColumns   Rule = "columns"
	RuleName      Rule = "name"
	RuleCategory  Rule = "category"
	RuleBowlType  Rule = "bowl_type"
	RulePrice     Rule = "price"
	RuleNutrition Rule = "nutrition"
)

// RowOutcome is the result of validating one data row.
// Exactly one of Product and Error is set.
type RowOutcome struct {
	Row     int      `json:"row"`
	Product *Product `json:"product,omitempty"`
	Rule    Rule     `json:"rule,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Valid reports whether the row produced a product.
func (o RowOutcome) Valid() bool {
	return o.Product != nil
}

// ValidateRow checks a tokenized row and builds a product from it.
//
// row is the 1-based line number in the source file, so the first data row
// after the header is row 2. Checks run in column order and the first failing
// rule wins; the six nutrition fields share a single combined error.
func ValidateRow(fields []string, row int) RowOutcome {
	if len(fields) < ColumnCount {
		return rejectRow(row, RuleColumns,
			fmt.Sprintf("Insufficient columns (expected %d, got %d)", ColumnCount, len(fields)))
	}

	name := strings.TrimSpace(fields[colName])
	if name == "" {
		return rejectRow(row, RuleName, "Name is required")
	}

	category := strings.TrimSpace(fields[colCategory])
	if category == "" {
		return rejectRow(row, RuleCategory, "Category is required")
	}

	bowlType, ok := ParseBowlType(fields[colBowlType])
	if !ok {
		return rejectRow(row, RuleBowlType,
			fmt.Sprintf("Invalid bowl type (must be: %s)", bowlTypeList()))
	}

	price, ok := ParseQuantity(fields[colPrice])
	if !ok {
		return rejectRow(row, RulePrice, "Invalid price value")
	}

	var nutrition [6]int64
	for i := range nutrition {
		v, ok := ParseQuantity(fields[colCalories+i])
		if !ok {
			return rejectRow(row, RuleNutrition, "Invalid nutritional values")
		}
		nutrition[i] = v
	}

	return RowOutcome{
		Row: row,
		Product: &Product{
			Name:     name,
			Category: category,
			BowlType: bowlType,
			Price:    price,
			Calories: nutrition[0],
			Protein:  nutrition[1],
			Carbs:    nutrition[2],
			Fat:      nutrition[3],
			Fiber:    nutrition[4],
			Sugar:    nutrition[5],
			Active:   true,
			Recipe:   []RecipeItem{},
		},
	}
}

func rejectRow(row int, rule Rule, msg string) RowOutcome {
	return RowOutcome{
		Row:   row,
		Rule:  rule,
		Error: fmt.Sprintf("Row %d: %s", row, msg),
	}
}

// ParseQuantity parses a non-negative whole quantity.
//
// Blank input is invalid rather than zero. Fractional values are truncated
// toward zero, so "12.9" yields 12. Negative, non-finite and out-of-range
// values are invalid.
func ParseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f >= math.MaxInt64 {
		return 0, false
	}

	return int64(math.Trunc(f)), true
}
