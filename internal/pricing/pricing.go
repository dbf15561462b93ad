// Package pricing parses displayed rent amounts and applies the configured price range.
package pricing

import (
	"regexp"
	"strconv"
	"strings"
)

// amountRegex matches the first amount following a euro sign, e.g. "€ 1.250 per month".
var amountRegex = regexp.MustCompile(`€\s*([\d.,]+)`)

// ParsePrice extracts an integer amount from display text such as "€1,250 /month".
// Every '.' and ',' is treated as a grouping separator, so "€ 1.234,50" yields 123450.
// The boolean is false when no amount follows a euro sign.
func ParsePrice(text string) (int, bool) {
	m := amountRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParsePricePtr is ParsePrice in the shape stored on models.Listing.
func ParsePricePtr(text string) *int {
	n, ok := ParsePrice(text)
	if !ok {
		return nil
	}
	return &n
}

// InRange reports whether price is known and min <= price <= max.
func InRange(price *int, min, max int) bool {
	return price != nil && min <= *price && *price <= max
}

// Range is the inclusive price window. A disabled range accepts everything,
// including listings whose price could not be parsed.
type Range struct {
	Min     int
	Max     int
	Enabled bool
}

// NewRange returns an enabled range.
func NewRange(min, max int) Range {
	return Range{Min: min, Max: max, Enabled: true}
}

func (r Range) Allows(price *int) bool {
	if !r.Enabled {
		return true
	}
	return InRange(price, r.Min, r.Max)
}
