package processor

import (
	"net/url"
	"strings"

	"github.com/pauljones0/rental-watch-bot/internal/models"
	"github.com/pauljones0/rental-watch-bot/internal/pricing"
	"github.com/pauljones0/rental-watch-bot/internal/util"
)

// Selection is the result of one dedup-and-filter pass.
type Selection struct {
	Listings    []models.Listing // New listings, in source order
	Identifiers models.SeenSet   // Exactly the identifiers of Listings

	Total       int
	Invalid     int
	AlreadySeen int
	Duplicate   int
	OutOfRange  int
}

// New returns the number of selected listings.
func (s Selection) New() int {
	return len(s.Listings)
}

// SelectNew returns the listings that are not in seen, not repeated earlier in
// records and allowed by rng, plus their identifiers. Selected listings carry
// their identifier as URL. Neither records nor seen is modified.
func SelectNew(records []models.Listing, seen models.SeenSet, rng pricing.Range) ([]models.Listing, models.SeenSet) {
	sel := SelectNewWithStats(records, seen, rng)
	return sel.Listings, sel.Identifiers
}

// SelectNewWithStats is SelectNew with per-reason skip counts.
func SelectNewWithStats(records []models.Listing, seen models.SeenSet, rng pricing.Range) Selection {
	sel := Selection{
		Listings:    make([]models.Listing, 0),
		Identifiers: models.NewSeenSet(),
		Total:       len(records),
	}

	for _, rec := range records {
		id, ok := listingID(rec)
		switch {
		case !ok:
			sel.Invalid++
		case seen.Has(id):
			sel.AlreadySeen++
		case sel.Identifiers.Has(id):
			sel.Duplicate++
		case !rng.Allows(rec.ParsedPrice):
			sel.OutOfRange++
		default:
			rec.URL = id
			sel.Listings = append(sel.Listings, rec)
			sel.Identifiers.Add(id)
		}
	}
	return sel
}

// listingID returns the dedup key of rec, or false when the record has no
// usable absolute URL.
func listingID(rec models.Listing) (string, bool) {
	id := strings.TrimSpace(rec.URL)
	if id == "" {
		return "", false
	}
	u, err := url.Parse(id)
	if err != nil || !util.IsAbsoluteHTTP(u) {
		return "", false
	}
	return id, true
}
