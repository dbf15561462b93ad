package storage

import (
	"context"
	"fmt"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

// Store persists the set of listing identifiers that have already been notified.
type Store interface {
	Load(ctx context.Context) (models.SeenSet, error)
	Save(ctx context.Context, seen models.SeenSet) error
}

// MergeAndSave persists existing ∪ additions and returns the merged set.
// Neither input is modified.
func MergeAndSave(ctx context.Context, store Store, existing, additions models.SeenSet) (models.SeenSet, error) {
	merged := existing.Union(additions)
	if err := store.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("save seen set: %w", err)
	}
	return merged, nil
}
