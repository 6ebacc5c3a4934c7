package view

import (
	"cmp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TableSort is the active column sort of a listing table.
type TableSort struct {
	Field      string
	Descending bool
}

// Toggle flips direction when field is already selected. A new field starts
// descending, largest first.
func (s TableSort) Toggle(field string) TableSort {
	if s.Field == field {
		return TableSort{Field: field, Descending: !s.Descending}
	}
	return TableSort{Field: field, Descending: true}
}

// Field extracts a sortable value from a row. Supported values are integers,
// floats, decimal.Decimal, time.Time and strings; anything else compares equal.
type Field[T any] func(row T) any

// SortTable returns a copy of rows ordered by the field named in s. Rows with
// equal values keep their input order. An unknown field leaves order as is.
func SortTable[T any](rows []T, s TableSort, fields map[string]Field[T]) []T {
	out := append([]T(nil), rows...)
	get, ok := fields[s.Field]
	if !ok || get == nil {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(get(out[i]), get(out[j]))
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compareValues(a, b any) int {
	switch x := a.(type) {
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y)
		}
	case *decimal.Decimal:
		if y, ok := b.(*decimal.Decimal); ok {
			return compareDecimalPtr(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(strings.ToLower(x), strings.ToLower(y))
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	return 0
}

// nil sorts below any value.
func compareDecimalPtr(a, b *decimal.Decimal) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Cmp(*b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
