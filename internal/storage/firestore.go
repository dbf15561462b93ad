package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

const firestoreCollection = "seen_listings"

type seenDoc struct {
	URL         string    `firestore:"url"`
	FirstSeenAt time.Time `firestore:"firstSeenAt"`
}

// FirestoreStore keeps one document per seen listing. Document IDs are the
// hex SHA-256 of the URL since URLs contain '/'.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// Load reads every document in the collection. A missing collection is an
// empty set; any other error is returned so the cycle can be aborted.
func (s *FirestoreStore) Load(ctx context.Context) (models.SeenSet, error) {
	iter := s.client.Collection(firestoreCollection).Select("url").Documents(ctx)
	defer iter.Stop()

	seen := models.NewSeenSet()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return models.NewSeenSet(), nil
			}
			return nil, fmt.Errorf("failed to iterate seen listings: %w", err)
		}
		u, ok := doc.Data()["url"].(string)
		if !ok || u == "" {
			slog.Warn("Skipping seen listing document without url", "id", doc.Ref.ID)
			continue
		}
		seen.Add(u)
	}
	return seen, nil
}

// Save writes one document per identifier. The set only grows, so writing
// the union is equivalent to a full replace. Existing documents are left
// untouched to keep their first-seen time.
func (s *FirestoreStore) Save(ctx context.Context, seen models.SeenSet) error {
	existing, err := s.Load(ctx)
	if err != nil {
		return err
	}

	bw := s.client.BulkWriter(ctx)
	now := time.Now().UTC()
	var jobs []*firestore.BulkWriterJob
	for _, id := range seen.Sorted() {
		if existing.Has(id) {
			continue
		}
		ref := s.client.Collection(firestoreCollection).Doc(DocID(id))
		job, err := bw.Set(ref, seenDoc{URL: id, FirstSeenAt: now})
		if err != nil {
			bw.End()
			return fmt.Errorf("queue seen listing %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write seen listing: %w", err)
		}
	}
	if len(jobs) > 0 {
		slog.Debug("Wrote seen listings to Firestore", "count", len(jobs))
	}
	return nil
}

// DocID maps a listing URL to its Firestore document ID.
func DocID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
