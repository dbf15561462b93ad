package models

import (
	"time"
)

// DefaultTitle is used when the source page has no title element for a listing.
const DefaultTitle = "Apartment"

// Listing represents one rental advertisement scraped from a search page.
// Listings are built once per fetch and never modified afterwards.
type Listing struct {
	URL          string    `json:"url" firestore:"url" validate:"required,url"` // Canonical absolute URL, the dedup key
	Title        string    `json:"title" firestore:"title"`
	RawPrice     string    `json:"raw_price" firestore:"rawPrice"`
	ParsedPrice  *int      `json:"parsed_price,omitempty" firestore:"parsedPrice,omitempty"` // nil when RawPrice could not be parsed
	Location     string    `json:"location,omitempty" firestore:"location,omitempty"`
	Source       string    `json:"source,omitempty" firestore:"source,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at" firestore:"discoveredAt"`

	// Set on the notifier's copy only, when AI enrichment is enabled.
	CleanTitle string `json:"clean_title,omitempty" firestore:"-"`
}

// DisplayTitle returns the enriched title when present, the scraped one otherwise.
func (l Listing) DisplayTitle() string {
	if l.CleanTitle != "" {
		return l.CleanTitle
	}
	if l.Title == "" {
		return DefaultTitle
	}
	return l.Title
}

// Batch is the finalized set of new listings handed to a notifier in one cycle.
type Batch struct {
	Listings     []Listing
	TotalTracked int    // Size of the seen set once this batch is committed
	SearchLabel  string // Human readable search target, e.g. "Utrecht"
}
