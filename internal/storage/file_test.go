package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/pauljones0/rental-watch-bot/internal/models"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "seen.json"))

	seen, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if seen.Len() != 0 {
		t.Errorf("expected empty set, got %d entries", seen.Len())
	}
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"object instead of array", `{"a": 1}`},
		{"array of numbers", `[1, 2, 3]`},
		{"truncated", `["https://a.example/1",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seen.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			seen, err := NewFileStore(path).Load(context.Background())
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if seen.Len() != 0 {
				t.Errorf("expected empty set for corrupt file, got %v", seen.Sorted())
			}
		})
	}
}

func TestFileStore_LoadUnreadablePath(t *testing.T) {
	// A directory cannot be read as a file.
	seen, err := NewFileStore(t.TempDir()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if seen.Len() != 0 {
		t.Errorf("expected empty set, got %d entries", seen.Len())
	}
}

func TestFileStore_SaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "seen.json")
	store := NewFileStore(path)

	if err := store.Save(context.Background(), models.NewSeenSet("https://a.example/1")); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
}

func TestFileStore_SaveIsSortedPrettyJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)
	seen := models.NewSeenSet("https://c.example/3", "https://a.example/1", "https://b.example/2")

	if err := store.Save(context.Background(), seen); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  \"https://a.example/1\",\n  \"https://b.example/2\",\n  \"https://c.example/3\"\n]\n"
	if string(data) != want {
		t.Errorf("file contents = %q, want %q", data, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the seen file, temp files left behind: %v", entries)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)
	original := models.NewSeenSet("https://a.example/1", "https://b.example/2")

	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(loaded.Sorted(), original.Sorted()) {
		t.Errorf("round trip mismatch: got %v, want %v", loaded.Sorted(), original.Sorted())
	}

	before, _ := os.ReadFile(path)
	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("Save(Load()) changed the persisted file")
	}
}

func TestFileStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen_properties.json")
	legacy := []string{"https://www.pararius.com/apartment-for-rent/utrecht/1/a", ""}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	seen, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if seen.Len() != 1 || !seen.Has(legacy[0]) {
		t.Errorf("unexpected set %v", seen.Sorted())
	}
}

func TestFileStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seen.json")
	store := NewFileStore(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := []string{"https://a.example/base"}
			if n%2 == 0 {
				ids = append(ids, "https://a.example/even")
			}
			if err := store.Save(ctx, models.NewSeenSet(ids...)); err != nil {
				t.Errorf("Save() unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		t.Fatalf("file is not valid JSON after concurrent saves: %v", err)
	}
}

type failingStore struct {
	saved models.SeenSet
	err   error
}

func (f *failingStore) Load(context.Context) (models.SeenSet, error) { return models.NewSeenSet(), nil }
func (f *failingStore) Save(_ context.Context, s models.SeenSet) error {
	if f.err != nil {
		return f.err
	}
	f.saved = s
	return nil
}

func TestMergeAndSave(t *testing.T) {
	existing := models.NewSeenSet("https://a.example/1")
	additions := models.NewSeenSet("https://a.example/2")
	store := &failingStore{}

	merged, err := MergeAndSave(context.Background(), store, existing, additions)
	if err != nil {
		t.Fatalf("MergeAndSave() unexpected error: %v", err)
	}
	want := []string{"https://a.example/1", "https://a.example/2"}
	if !reflect.DeepEqual(merged.Sorted(), want) {
		t.Errorf("merged = %v, want %v", merged.Sorted(), want)
	}
	if !reflect.DeepEqual(store.saved.Sorted(), want) {
		t.Errorf("saved = %v, want %v", store.saved.Sorted(), want)
	}
	if existing.Len() != 1 || additions.Len() != 1 {
		t.Error("MergeAndSave mutated its inputs")
	}
}

func TestMergeAndSave_Error(t *testing.T) {
	boom := errors.New("disk full")
	_, err := MergeAndSave(context.Background(), &failingStore{err: boom}, models.NewSeenSet(), models.NewSeenSet("x"))
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestDocID(t *testing.T) {
	a := DocID("https://www.pararius.com/apartment-for-rent/utrecht/1/a")
	b := DocID("https://www.pararius.com/apartment-for-rent/utrecht/1/b")
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("different URLs should map to different document IDs")
	}
	if a != DocID("https://www.pararius.com/apartment-for-rent/utrecht/1/a") {
		t.Error("DocID should be deterministic")
	}
}
