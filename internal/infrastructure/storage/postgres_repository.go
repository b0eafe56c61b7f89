// Package storage persists analysis records in Postgres. The unique index on
// (symbol, normalized_url) enforces the exact-match half of deduplication at
// the storage layer, which is what resolves races between concurrent runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/ports"
)

const recordsTable = "analysis_records"

var recordColumns = []string{
	"id", "symbol", "title", "url", "normalized_url", "published_at",
	"rating", "target_price", "sentiment", "rationale", "source_excerpt",
	"source", "fetched_at", "model_version",
}

// PostgresStore implements the analysis store over database/sql.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.AnalysisStore = (*PostgresStore)(nil)

// Open connects to Postgres with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// InsertIfAbsent atomically inserts the record unless one already exists for
// its (symbol, normalized_url). The conflict target is the unique index, so
// the check-and-insert cannot race: exactly one of any number of concurrent
// writers wins, everyone else observes Duplicate.
func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec domain.AnalysisRecord) (domain.InsertOutcome, error) {
	query, args, err := s.sb.Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			rec.ID, rec.Symbol, rec.Title, rec.URL, rec.NormalizedURL,
			nullableTime(rec.PublishedAt), string(rec.Rating), nullableFloat(rec.TargetPrice),
			string(rec.Sentiment), rec.Rationale, rec.SourceExcerpt,
			rec.Source, rec.FetchedAt, rec.ModelVersion,
		).
		Suffix("ON CONFLICT (symbol, normalized_url) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, &domain.StorageError{Op: "insert", Err: err}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &domain.StorageError{Op: "insert", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Op: "insert", Err: err}
	}
	if affected == 0 {
		return domain.Duplicate, nil
	}
	return domain.Inserted, nil
}

// ExistsByURL is the authoritative exact-match dedup lookup.
func (s *PostgresStore) ExistsByURL(ctx context.Context, symbol, normalizedURL string) (bool, error) {
	query, args, err := s.sb.Select("1").
		From(recordsTable).
		Where(sq.Eq{"symbol": symbol, "normalized_url": normalizedURL}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, &domain.StorageError{Op: "exists", Err: err}
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &domain.StorageError{Op: "exists", Err: err}
	}
	return true, nil
}

// ListRecent returns the symbol's newest records for the bounded fuzzy scan.
func (s *PostgresStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.AnalysisRecord, error) {
	query, args, err := s.sb.Select(recordColumns...).
		From(recordsTable).
		Where(sq.Eq{"symbol": symbol}).
		OrderBy("fetched_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "list", Err: err}
	}
	return s.queryRecords(ctx, "list", query, args)
}

// Query serves the presentation layer's filtered read contract.
func (s *PostgresStore) Query(ctx context.Context, f domain.RecordFilter) ([]domain.AnalysisRecord, error) {
	builder := s.sb.Select(recordColumns...).
		From(recordsTable).
		OrderBy("published_at DESC NULLS LAST", "fetched_at DESC")

	if len(f.Symbols) > 0 {
		builder = builder.Where(sq.Eq{"symbol": f.Symbols})
	}
	if len(f.Ratings) > 0 {
		ratings := make([]string, 0, len(f.Ratings))
		for _, r := range f.Ratings {
			ratings = append(ratings, string(r))
		}
		builder = builder.Where(sq.Eq{"rating": ratings})
	}
	if !f.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"published_at": f.From})
	}
	if !f.To.IsZero() {
		builder = builder.Where(sq.LtOrEq{"published_at": f.To})
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.Limit(uint64(limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, &domain.StorageError{Op: "query", Err: err}
	}
	return s.queryRecords(ctx, "query", query, args)
}

// Ping verifies the store is reachable; it gates both startup and runs.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args []any) ([]domain.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	defer rows.Close()

	var records []domain.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &domain.StorageError{Op: op, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: op, Err: err}
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (domain.AnalysisRecord, error) {
	var (
		rec         domain.AnalysisRecord
		publishedAt sql.NullTime
		targetPrice sql.NullFloat64
		sentiment   sql.NullString
		rating      string
	)

	err := rows.Scan(
		&rec.ID, &rec.Symbol, &rec.Title, &rec.URL, &rec.NormalizedURL, &publishedAt,
		&rating, &targetPrice, &sentiment, &rec.Rationale, &rec.SourceExcerpt,
		&rec.Source, &rec.FetchedAt, &rec.ModelVersion,
	)
	if err != nil {
		return domain.AnalysisRecord{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Rating = domain.Rating(rating)
	if publishedAt.Valid {
		rec.PublishedAt = publishedAt.Time
	}
	if targetPrice.Valid {
		price := targetPrice.Float64
		rec.TargetPrice = &price
	}
	if sentiment.Valid {
		rec.Sentiment = domain.Sentiment(sentiment.String)
	}
	return rec, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
