// Package pricing holds the static product reference price table used to
// anchor fairness calculations.
package pricing

import "strings"

// Range is a per-unit price band in USD.
type Range struct {
	Min float64
	Max float64
}

// referenceRanges maps product names to market per-unit price bands.
var referenceRanges = map[string]Range{
	"Ballpoint Pen":  {Min: 10.00, Max: 15.00},
	"Binder Clips":   {Min: 1.00, Max: 2.00},
	"Keyboard":       {Min: 150.00, Max: 175.00},
	"Webcam":         {Min: 120.00, Max: 150.00},
	"Coffee Mug":     {Min: 30.00, Max: 40.00},
	"Cutlery Set":    {Min: 15.00, Max: 20.00},
	"Cardboard":      {Min: 4.00, Max: 8.00},
	"Paper":          {Min: 2.00, Max: 4.00},
	"Stapler":        {Min: 10.00, Max: 15.00},
	"Paper Shredder": {Min: 200.00, Max: 240.00},
}

// Lookup returns the reference range for a product name. Matching is exact
// first, then case-insensitive on the trimmed name.
func Lookup(productName string) (Range, bool) {
	if productName == "" {
		return Range{}, false
	}
	if r, ok := referenceRanges[productName]; ok {
		return r, true
	}
	normalized := strings.TrimSpace(productName)
	for name, r := range referenceRanges {
		if strings.EqualFold(name, normalized) {
			return r, true
		}
	}
	return Range{}, false
}

// FairMarketPrice returns the fair anchor for quantity units of a product:
// the midpoint of the reference range scaled by quantity. The second return
// is false when the product is not in the table.
func FairMarketPrice(productName string, quantity int) (float64, bool) {
	r, ok := Lookup(productName)
	if !ok {
		return 0, false
	}
	if quantity < 1 {
		quantity = 1
	}
	return (r.Min + r.Max) / 2 * float64(quantity), true
}

// Products returns the names in the reference table, for display.
func Products() []string {
	names := make([]string, 0, len(referenceRanges))
	for name := range referenceRanges {
		names = append(names, name)
	}
	return names
}
