package processor

import (
	"context"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

// ListingSource yields the current snapshot of listings, in page order.
type ListingSource interface {
	FetchListings(ctx context.Context) ([]models.Listing, error)
}

// SeenStore abstracts the persistence of delivered listing identifiers.
type SeenStore interface {
	Load(ctx context.Context) (models.SeenSet, error)
	Save(ctx context.Context, seen models.SeenSet) error
}

// Notifier delivers one batch of new listings. A nil error means the whole
// batch was delivered.
type Notifier interface {
	Notify(ctx context.Context, batch models.Batch) error
}

// TitleEnricher optionally rewrites a listing title for display.
type TitleEnricher interface {
	CleanTitle(ctx context.Context, listing models.Listing) (string, error)
}
