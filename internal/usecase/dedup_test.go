package usecase

import (
	"context"
	"errors"
	"testing"

	"AnalystIntel/internal/domain"
)

func seedRecord(t *testing.T, store *memStore, symbol, title, normalizedURL string) {
	t.Helper()
	outcome, err := store.InsertIfAbsent(context.Background(), domain.AnalysisRecord{
		ID:            "seed-" + normalizedURL,
		Symbol:        symbol,
		Title:         title,
		NormalizedURL: normalizedURL,
		Rating:        domain.RatingHold,
	})
	if err != nil || outcome != domain.Inserted {
		t.Fatalf("seed failed: outcome=%v err=%v", outcome, err)
	}
}

func TestIsNewExactURLMatch(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedRecord(t, store, "TCS", "Jefferies raises TCS target", "https://n.example/a")
	idx := NewDedupIndex(store, 0.85, 100, nil)

	fresh, err := idx.IsNew(context.Background(), domain.IdentityKey{
		Symbol:          "TCS",
		NormalizedURL:   "https://n.example/a",
		NormalizedTitle: "completely different title",
	})
	if err != nil {
		t.Fatalf("IsNew error: %v", err)
	}
	if fresh {
		t.Fatal("exact URL match must not be new")
	}
}

func TestIsNewFuzzyTitleMatch(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedRecord(t, store, "TCS", "Jefferies raises TCS target price", "https://n.example/a")
	idx := NewDedupIndex(store, 0.85, 100, nil)

	// Same story via a different URL, near-identical title.
	fresh, err := idx.IsNew(context.Background(), domain.IdentityKey{
		Symbol:          "TCS",
		NormalizedURL:   "https://other.example/b",
		NormalizedTitle: "jefferies raises tcs target prices",
	})
	if err != nil {
		t.Fatalf("IsNew error: %v", err)
	}
	if fresh {
		t.Fatal("near-identical title must be caught by the fuzzy match")
	}

	// A genuinely different story for the same symbol stays new.
	fresh, err = idx.IsNew(context.Background(), domain.IdentityKey{
		Symbol:          "TCS",
		NormalizedURL:   "https://other.example/c",
		NormalizedTitle: "goldman downgrades tcs on margin pressure",
	})
	if err != nil {
		t.Fatalf("IsNew error: %v", err)
	}
	if !fresh {
		t.Fatal("distinct title below threshold must be new")
	}
}

func TestIsNewFuzzyScopedToSymbol(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	seedRecord(t, store, "INFY", "Jefferies raises target", "https://n.example/a")
	idx := NewDedupIndex(store, 0.85, 100, nil)

	fresh, err := idx.IsNew(context.Background(), domain.IdentityKey{
		Symbol:          "TCS",
		NormalizedURL:   "https://n.example/z",
		NormalizedTitle: "jefferies raises target",
	})
	if err != nil {
		t.Fatalf("IsNew error: %v", err)
	}
	if !fresh {
		t.Fatal("fuzzy match must not cross symbols")
	}
}

func TestIsNewDegenerateKey(t *testing.T) {
	t.Parallel()

	idx := NewDedupIndex(newMemStore(), 0.85, 100, nil)
	fresh, err := idx.IsNew(context.Background(), domain.IdentityKey{Symbol: "TCS"})
	if err != nil {
		t.Fatalf("IsNew error: %v", err)
	}
	if fresh {
		t.Fatal("unidentifiable candidate must be dropped, not persisted")
	}
}

func TestIsNewPropagatesStoreError(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failWith = &domain.StorageError{Op: "exists", Err: errors.New("down")}
	idx := NewDedupIndex(store, 0.85, 100, nil)

	_, err := idx.IsNew(context.Background(), domain.IdentityKey{
		Symbol:        "TCS",
		NormalizedURL: "https://n.example/a",
	})
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
