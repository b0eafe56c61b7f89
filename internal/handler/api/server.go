// Package api exposes the read and trigger surface consumed by the
// presentation layer. Everything here is a thin adapter: reads go straight
// to the store's query contract, the trigger goes through the same
// orchestrator entry point as the scheduled run.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/ports"
	"AnalystIntel/internal/usecase"
)

// Server hosts the HTTP API.
type Server struct {
	echo     *echo.Echo
	store    ports.AnalysisStore
	runner   *usecase.Runner
	validate *validator.Validate
	logger   *slog.Logger
}

// NewServer wires routes onto a fresh echo engine.
func NewServer(store ports.AnalysisStore, runner *usecase.Runner, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		store:    store,
		runner:   runner,
		validate: validator.New(),
		logger:   logger,
	}

	g := e.Group("/api")
	g.GET("/healthz", s.health)
	g.GET("/records", s.records)
	g.POST("/runs", s.triggerRun)

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "store unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type recordsQuery struct {
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" validate:"gte=0,lte=500"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) records(c echo.Context) error {
	var q recordsQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}
	if err := s.validate.Struct(&q); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
	}

	filter := domain.RecordFilter{
		Symbols: c.QueryParams()["symbol"],
		Limit:   q.Limit,
	}
	for _, raw := range c.QueryParams()["rating"] {
		filter.Ratings = append(filter.Ratings, domain.ParseRating(raw))
	}
	if q.From != "" {
		filter.From, _ = time.Parse("2006-01-02", q.From)
	}
	if q.To != "" {
		// Inclusive end of day.
		t, _ := time.Parse("2006-01-02", q.To)
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}

	records, err := s.store.Query(c.Request().Context(), filter)
	if err != nil {
		s.errorLog("records query failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "store unreachable"})
	}

	return c.JSON(http.StatusOK, toRecordResponses(records))
}

// triggerRun is the interactive trigger. The run executes on a detached
// context so a client that navigates away abandons the wait, not the run.
func (s *Server) triggerRun(c echo.Context) error {
	handle := s.runner.Submit(context.Background())

	summary, err := handle.Wait(c.Request().Context())
	if err == nil {
		return c.JSON(http.StatusOK, summary)
	}

	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		s.errorLog("run aborted", "error", err)
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusAccepted, map[string]string{"status": "run continues in background"})
	}

	s.errorLog("run failed", "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func (s *Server) errorLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

type recordResponse struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	Rating        string     `json:"rating"`
	TargetPrice   *float64   `json:"target_price,omitempty"`
	Sentiment     string     `json:"sentiment,omitempty"`
	Rationale     string     `json:"rationale,omitempty"`
	SourceExcerpt string     `json:"source_excerpt,omitempty"`
	Source        string     `json:"source,omitempty"`
	FetchedAt     time.Time  `json:"fetched_at"`
	ModelVersion  string     `json:"model_version,omitempty"`
}

func toRecordResponses(records []domain.AnalysisRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		resp := recordResponse{
			ID:            rec.ID,
			Symbol:        rec.Symbol,
			Title:         rec.Title,
			URL:           rec.URL,
			Rating:        string(rec.Rating),
			TargetPrice:   rec.TargetPrice,
			Sentiment:     string(rec.Sentiment),
			Rationale:     rec.Rationale,
			SourceExcerpt: rec.SourceExcerpt,
			Source:        rec.Source,
			FetchedAt:     rec.FetchedAt,
			ModelVersion:  rec.ModelVersion,
		}
		if !rec.PublishedAt.IsZero() {
			published := rec.PublishedAt
			resp.PublishedAt = &published
		}
		out = append(out, resp)
	}
	return out
}
