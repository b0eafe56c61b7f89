package usecase

import (
	"context"
	"log/slog"

	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/normalize"
	"AnalystIntel/internal/ports"
)

const (
	defaultSimilarityThreshold = 0.85
	defaultFuzzyScanLimit      = 200
)

// DedupIndex decides whether a candidate identity is new. The exact match on
// normalized URL is authoritative; the fuzzy title match is a best-effort
// guard against the same event arriving via two different URLs. Both halves
// read the store, which may lag a concurrent run; the storage-level unique
// index resolves whatever slips through.
type DedupIndex struct {
	store     ports.AnalysisStore
	threshold float64
	scanLimit int
	logger    *slog.Logger
}

// NewDedupIndex wires the index over the store. Threshold and scan limit fall
// back to defaults when unset.
func NewDedupIndex(store ports.AnalysisStore, threshold float64, scanLimit int, logger *slog.Logger) *DedupIndex {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSimilarityThreshold
	}
	if scanLimit <= 0 {
		scanLimit = defaultFuzzyScanLimit
	}
	return &DedupIndex{store: store, threshold: threshold, scanLimit: scanLimit, logger: logger}
}

// IsNew reports whether no persisted record matches the key. Any match, exact
// or fuzzy, means not new. A fully degenerate key (no URL, no title) is
// treated as not new so that unidentifiable candidates are dropped.
func (d *DedupIndex) IsNew(ctx context.Context, key domain.IdentityKey) (bool, error) {
	if key.NormalizedURL == "" && key.NormalizedTitle == "" {
		return false, nil
	}

	if key.NormalizedURL != "" {
		exists, err := d.store.ExistsByURL(ctx, key.Symbol, key.NormalizedURL)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if key.NormalizedTitle == "" {
		return true, nil
	}

	recent, err := d.store.ListRecent(ctx, key.Symbol, d.scanLimit)
	if err != nil {
		return false, err
	}

	for _, rec := range recent {
		ratio := normalize.SimilarityRatio(key.NormalizedTitle, normalize.Title(rec.Title))
		if ratio >= d.threshold {
			d.debug("fuzzy duplicate", "symbol", key.Symbol, "ratio", ratio, "existing", rec.ID)
			return false, nil
		}
	}

	return true, nil
}

func (d *DedupIndex) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
