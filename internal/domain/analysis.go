package domain

import (
	"strings"
	"time"
)

// Rating is the closed set of analyst calls a record may carry.
type Rating string

const (
	RatingBuy     Rating = "Buy"
	RatingSell    Rating = "Sell"
	RatingHold    Rating = "Hold"
	RatingUnknown Rating = "Unknown"
)

// ParseRating maps raw model output onto the closed rating set. Broker
// synonyms collapse to the nearest call; anything unrecognized is Unknown.
func ParseRating(raw string) Rating {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "outperform", "overweight", "accumulate", "add":
		return RatingBuy
	case "sell", "underperform", "underweight", "reduce":
		return RatingSell
	case "hold", "neutral", "equal-weight", "equal weight", "market perform":
		return RatingHold
	default:
		return RatingUnknown
	}
}

// Sentiment is an optional tone classification of the article.
type Sentiment string

const (
	SentimentPositive    Sentiment = "Positive"
	SentimentNegative    Sentiment = "Negative"
	SentimentNeutral     Sentiment = "Neutral"
	SentimentUnspecified Sentiment = ""
)

// ParseSentiment normalizes model output; unrecognized values are left unspecified.
func ParseSentiment(raw string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "bullish":
		return SentimentPositive
	case "negative", "bearish":
		return SentimentNegative
	case "neutral", "mixed":
		return SentimentNeutral
	default:
		return SentimentUnspecified
	}
}

// Candidate is one article as returned by the feed, before any processing.
// It lives only for the duration of a run.
type Candidate struct {
	Symbol      string
	RawTitle    string
	RawURL      string
	PublishedAt time.Time
	Snippet     string
	Source      string
}

// IdentityKey is the derived dedup identity of a candidate. Two candidates
// with the same NormalizedURL, or the same symbol and sufficiently similar
// normalized titles, describe the same underlying event.
type IdentityKey struct {
	Symbol          string
	NormalizedURL   string
	NormalizedTitle string
}

// Extraction holds the structured fields produced by the model for one article.
type Extraction struct {
	Rating      Rating
	TargetPrice *float64
	Sentiment   Sentiment
	Rationale   string
}

// AnalysisRecord is the persisted result for one unique news event.
// Records are immutable once inserted; a re-run with a materially different
// title or URL produces a new record, never an update.
type AnalysisRecord struct {
	ID            string
	Symbol        string
	Title         string
	URL           string
	NormalizedURL string
	PublishedAt   time.Time
	Rating        Rating
	TargetPrice   *float64
	Sentiment     Sentiment
	Rationale     string
	SourceExcerpt string
	Source        string
	FetchedAt     time.Time
	ModelVersion  string
}

// InsertOutcome reports whether an atomic check-and-insert wrote a row.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

// RecordFilter narrows store queries for the presentation layer.
type RecordFilter struct {
	Symbols []string
	Ratings []Rating
	From    time.Time
	To      time.Time
	Limit   int
}

// RunState is the terminal state of one orchestrator run. Partial failures
// never produce a failed run; only a storage abort does, and that surfaces
// as an error rather than a state.
type RunState string

const (
	RunCompleted           RunState = "Completed"
	RunCompletedWithErrors RunState = "CompletedWithErrors"
)

// RunSummary accumulates the counters of a single end-to-end run.
type RunSummary struct {
	SymbolsScanned     int       `json:"symbols_scanned"`
	CandidatesSeen     int       `json:"candidates_seen"`
	CandidatesNew      int       `json:"candidates_new"`
	RecordsPersisted   int       `json:"records_persisted"`
	DuplicatesSkipped  int       `json:"duplicates_skipped"`
	ExtractionFailures int       `json:"extraction_failures"`
	FetchFailures      int       `json:"fetch_failures"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
	State              RunState  `json:"state"`
}
