// Package feed implements the news source against Google News RSS search.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"AnalystIntel/internal/config"
	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/ports"
)

const (
	defaultBaseURL     = "https://news.google.com/rss/search"
	defaultMaxPerQuery = 25
	defaultTimeout     = 20 * time.Second
	userAgent          = "AnalystIntel/1.0"
)

// GoogleNewsSource fans a symbol out over the configured query templates and
// merges the results into one deduplicated candidate batch. Each Fetch runs
// under its own capped timeout, so one stalled symbol never stalls the run.
type GoogleNewsSource struct {
	parser      *gofeed.Parser
	baseURL     string
	templates   []string
	language    string
	region      string
	blacklist   []string
	maxPerQuery int
	timeout     time.Duration
	companyName func(symbol string) string
	logger      *slog.Logger
}

var _ ports.NewsSource = (*GoogleNewsSource)(nil)

// NewGoogleNewsSource builds the source from configuration. companyName may
// be nil; when provided it turns symbols into searchable company names.
func NewGoogleNewsSource(cfg config.FeedConfig, client *http.Client, companyName func(string) string, logger *slog.Logger) *GoogleNewsSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if len(cfg.QueryTemplates) == 0 {
		cfg.QueryTemplates = []string{"%s analyst rating target price"}
	}
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = defaultMaxPerQuery
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = userAgent

	return &GoogleNewsSource{
		parser:      parser,
		baseURL:     cfg.BaseURL,
		templates:   cfg.QueryTemplates,
		language:    cfg.Language,
		region:      cfg.Region,
		blacklist:   lowerAll(cfg.SourceBlacklist),
		maxPerQuery: cfg.MaxPerQuery,
		timeout:     cfg.Timeout,
		companyName: companyName,
		logger:      logger,
	}
}

// Fetch returns the candidate articles for one symbol. An upstream feed with
// zero items is an empty slice, not an error; the error path is reserved for
// every query failing outright.
func (s *GoogleNewsSource) Fetch(ctx context.Context, symbol string) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	term := symbol
	if s.companyName != nil {
		if name := s.companyName(symbol); name != "" {
			term = name
		}
	}

	var (
		candidates []domain.Candidate
		seenURLs   = map[string]struct{}{}
		seenTitles = map[string]struct{}{}
		failures   int
		lastErr    error
	)

	for _, tmpl := range s.templates {
		query := fmt.Sprintf(tmpl, term)

		feed, err := s.parser.ParseURLWithContext(s.buildFeedURL(query), ctx)
		if err != nil {
			failures++
			lastErr = err
			s.debug("query failed", "symbol", symbol, "query", query, "error", err)
			continue
		}

		count := 0
		for _, item := range feed.Items {
			if count >= s.maxPerQuery {
				break
			}
			count++

			cand, ok := s.toCandidate(symbol, item)
			if !ok {
				continue
			}
			if _, dup := seenURLs[cand.RawURL]; dup {
				continue
			}
			if _, dup := seenTitles[cand.RawTitle]; dup {
				continue
			}
			seenURLs[cand.RawURL] = struct{}{}
			seenTitles[cand.RawTitle] = struct{}{}
			candidates = append(candidates, cand)
		}
	}

	if failures == len(s.templates) && lastErr != nil {
		return nil, &domain.FetchError{Symbol: symbol, Err: lastErr}
	}

	return candidates, nil
}

func (s *GoogleNewsSource) buildFeedURL(query string) string {
	q := url.Values{}
	q.Set("q", query)
	if s.language != "" {
		q.Set("hl", s.language)
	}
	if s.region != "" {
		q.Set("gl", s.region)
		if s.language != "" {
			parts := strings.SplitN(s.language, "-", 2)
			q.Set("ceid", s.region+":"+parts[0])
		}
	}
	return s.baseURL + "?" + q.Encode()
}

// toCandidate maps a feed item onto a candidate. Google News encodes the
// publisher as a " - Publisher" title suffix; that segment becomes the source
// and feeds the blacklist check.
func (s *GoogleNewsSource) toCandidate(symbol string, item *gofeed.Item) (domain.Candidate, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" && link == "" {
		return domain.Candidate{}, false
	}

	source := ""
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		source = strings.TrimSpace(title[idx+3:])
		title = strings.TrimSpace(title[:idx])
	}
	if s.blacklisted(source) {
		return domain.Candidate{}, false
	}

	var publishedAt time.Time
	if item.PublishedParsed != nil {
		publishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		publishedAt = item.UpdatedParsed.UTC()
	}

	return domain.Candidate{
		Symbol:      symbol,
		RawTitle:    title,
		RawURL:      link,
		PublishedAt: publishedAt,
		Snippet:     stripMarkup(item.Description),
		Source:      source,
	}, true
}

func (s *GoogleNewsSource) blacklisted(source string) bool {
	source = strings.ToLower(source)
	for _, blocked := range s.blacklist {
		if blocked != "" && strings.Contains(source, blocked) {
			return true
		}
	}
	return false
}

// stripMarkup flattens the HTML fragments Google News ships as descriptions
// down to plain text for the extraction input.
func stripMarkup(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.Contains(fragment, "<") {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}

func (s *GoogleNewsSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
