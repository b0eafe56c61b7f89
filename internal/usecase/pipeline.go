package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/normalize"
	"AnalystIntel/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Universe  ports.Universe
	Source    ports.NewsSource
	Extractor ports.Extractor
	Store     ports.AnalysisStore
	Dedup     *DedupIndex
	Logger    *slog.Logger
}

// Pipeline drives one end-to-end run: fetch, filter new, extract, persist,
// for every tracked symbol. Both the interactive and the scheduled trigger
// call Run, so dedup and validation behave identically regardless of caller.
type Pipeline struct {
	universe  ports.Universe
	source    ports.NewsSource
	extractor ports.Extractor
	store     ports.AnalysisStore
	dedup     *DedupIndex
	logger    *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		universe:  deps.Universe,
		source:    deps.Source,
		extractor: deps.Extractor,
		store:     deps.Store,
		dedup:     deps.Dedup,
		logger:    deps.Logger,
	}
}

// Run executes one full scan across the tracked universe. Per-symbol fetch
// failures and per-candidate extraction failures are absorbed into the
// summary counters; only a storage failure aborts, returned alongside the
// partial summary.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{StartedAt: time.Now().UTC()}

	symbols, err := p.universe.TrackedSymbols(ctx)
	if err != nil {
		finalize(&summary)
		return summary, fmt.Errorf("list tracked symbols: %w", err)
	}

	p.info("run started", "symbols", len(symbols))

	for _, symbol := range symbols {
		summary.SymbolsScanned++

		candidates, err := p.source.Fetch(ctx, symbol)
		if err != nil {
			summary.FetchFailures++
			p.warn("fetch failed", "symbol", symbol, "error", err)
			continue
		}

		for _, cand := range candidates {
			summary.CandidatesSeen++

			key := normalize.Key(cand)
			fresh, err := p.dedup.IsNew(ctx, key)
			if err != nil {
				finalize(&summary)
				return summary, err
			}
			if !fresh {
				continue
			}
			summary.CandidatesNew++

			extraction, err := p.extractor.Extract(ctx, normalize.ExtractionInput(cand))
			if err != nil {
				summary.ExtractionFailures++
				p.warn("extraction failed", "symbol", symbol, "title", cand.RawTitle, "error", err)
				continue
			}

			outcome, err := p.store.InsertIfAbsent(ctx, p.buildRecord(cand, key, extraction))
			if err != nil {
				finalize(&summary)
				return summary, err
			}
			if outcome == domain.Inserted {
				summary.RecordsPersisted++
			} else {
				// Lost a race against a concurrent run. Not an error.
				summary.DuplicatesSkipped++
			}
		}
	}

	finalize(&summary)
	p.info("run finished",
		"state", summary.State,
		"seen", summary.CandidatesSeen,
		"new", summary.CandidatesNew,
		"persisted", summary.RecordsPersisted,
		"extraction_failures", summary.ExtractionFailures,
		"fetch_failures", summary.FetchFailures)

	return summary, nil
}

func (p *Pipeline) buildRecord(cand domain.Candidate, key domain.IdentityKey, ex domain.Extraction) domain.AnalysisRecord {
	rating := ex.Rating
	if rating == "" {
		rating = domain.RatingUnknown
	}

	return domain.AnalysisRecord{
		ID:            uuid.NewString(),
		Symbol:        key.Symbol,
		Title:         cand.RawTitle,
		URL:           cand.RawURL,
		NormalizedURL: key.NormalizedURL,
		PublishedAt:   cand.PublishedAt,
		Rating:        rating,
		TargetPrice:   ex.TargetPrice,
		Sentiment:     ex.Sentiment,
		Rationale:     ex.Rationale,
		SourceExcerpt: cand.Snippet,
		Source:        cand.Source,
		FetchedAt:     time.Now().UTC(),
		ModelVersion:  p.extractor.ModelVersion(),
	}
}

func finalize(s *domain.RunSummary) {
	s.EndedAt = time.Now().UTC()
	if s.FetchFailures > 0 || s.ExtractionFailures > 0 {
		s.State = domain.RunCompletedWithErrors
	} else {
		s.State = domain.RunCompleted
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
