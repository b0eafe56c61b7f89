package ports

import (
	"context"
	"time"

	"AnalystIntel/internal/domain"
)

// NewsSource fetches candidate articles for a single tracked symbol.
// A legitimately empty feed yields an empty slice, not an error.
type NewsSource interface {
	Fetch(ctx context.Context, symbol string) ([]domain.Candidate, error)
}

// Extractor derives structured analysis fields from normalized article text.
type Extractor interface {
	Extract(ctx context.Context, input string) (domain.Extraction, error)
	ModelVersion() string
}

// AnalysisStore is the durable record of accepted analyses and the source of
// truth for deduplication. InsertIfAbsent is atomic on (symbol, normalized_url).
type AnalysisStore interface {
	InsertIfAbsent(ctx context.Context, rec domain.AnalysisRecord) (domain.InsertOutcome, error)
	ExistsByURL(ctx context.Context, symbol, normalizedURL string) (bool, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]domain.AnalysisRecord, error)
	Query(ctx context.Context, f domain.RecordFilter) ([]domain.AnalysisRecord, error)
	Ping(ctx context.Context) error
}

// Universe provides the fixed set of tracked symbols, consumed once per run.
type Universe interface {
	TrackedSymbols(ctx context.Context) ([]string, error)
}

// Scheduler controls when recurring runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
