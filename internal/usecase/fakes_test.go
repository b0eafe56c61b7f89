package usecase

import (
	"context"
	"sync"

	"AnalystIntel/internal/domain"
)

// memStore is an in-memory AnalysisStore enforcing the same uniqueness
// invariant as the Postgres adapter: one record per (symbol, normalized_url).
type memStore struct {
	mu      sync.Mutex
	records []domain.AnalysisRecord
	byKey   map[[2]string]bool

	failWith error
}

func newMemStore() *memStore {
	return &memStore{byKey: map[[2]string]bool{}}
}

func (s *memStore) InsertIfAbsent(_ context.Context, rec domain.AnalysisRecord) (domain.InsertOutcome, error) {
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{rec.Symbol, rec.NormalizedURL}
	if s.byKey[key] {
		return domain.Duplicate, nil
	}
	s.byKey[key] = true
	s.records = append(s.records, rec)
	return domain.Inserted, nil
}

func (s *memStore) ExistsByURL(_ context.Context, symbol, normalizedURL string) (bool, error) {
	if s.failWith != nil {
		return false, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[[2]string{symbol, normalizedURL}], nil
}

func (s *memStore) ListRecent(_ context.Context, symbol string, limit int) ([]domain.AnalysisRecord, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AnalysisRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].Symbol == symbol {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *memStore) Query(_ context.Context, f domain.RecordFilter) ([]domain.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AnalysisRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return s.failWith }

type fakeUniverse struct {
	symbols []string
	err     error
}

func (u *fakeUniverse) TrackedSymbols(context.Context) ([]string, error) {
	return u.symbols, u.err
}

// fakeSource returns canned candidates per symbol, or an error for symbols
// listed in fail.
type fakeSource struct {
	bySymbol map[string][]domain.Candidate
	fail     map[string]error
	calls    int
}

func (s *fakeSource) Fetch(_ context.Context, symbol string) ([]domain.Candidate, error) {
	s.calls++
	if err := s.fail[symbol]; err != nil {
		return nil, err
	}
	return s.bySymbol[symbol], nil
}

// fakeExtractor replays a fixed extraction or error for every call.
type fakeExtractor struct {
	extraction domain.Extraction
	err        error
	calls      int
}

func (e *fakeExtractor) Extract(context.Context, string) (domain.Extraction, error) {
	e.calls++
	if e.err != nil {
		return domain.Extraction{}, e.err
	}
	return e.extraction, nil
}

func (e *fakeExtractor) ModelVersion() string { return "test-model" }

func floatPtr(v float64) *float64 { return &v }
