// Package llm implements the extraction port against an OpenAI-compatible
// chat-completions endpoint.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"AnalystIntel/internal/config"
	"AnalystIntel/internal/domain"
	"AnalystIntel/internal/ports"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoff        = 500 * time.Millisecond
	defaultTimeout        = 30 * time.Second
	defaultMaxTargetPrice = 10_000_000
)

// The instruction is fixed: the model must answer with one raw JSON object
// and nothing else, so that schema validation is a plain decode.
const systemPrompt = `You are a financial news analyzer. You receive one news snippet about ` +
	`an analyst call on a listed company. Answer with exactly one raw JSON object, no markdown, ` +
	`no code fences, of the shape: ` +
	`{"rating": "Buy|Sell|Hold|Unknown", "target_price": number or null, ` +
	`"sentiment": "Positive|Negative|Neutral", "rationale": "one short sentence"}. ` +
	`If the snippet states no explicit rating, use "Unknown". If no target price is stated, use null.`

// ChatExtractor calls the external model and validates its answer into the
// typed extraction result. One outbound call per attempt, no local state.
type ChatExtractor struct {
	endpoint       string
	model          string
	apiKey         string
	httpClient     *http.Client
	maxAttempts    int
	backoff        time.Duration
	maxTargetPrice float64
	logger         *slog.Logger
}

var _ ports.Extractor = (*ChatExtractor)(nil)

// NewChatExtractor builds a client from configuration. Missing credentials
// are startup-fatal: without them no run may start at all.
func NewChatExtractor(cfg config.ExtractorConfig, logger *slog.Logger) (*ChatExtractor, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "extractor.apiKey", Msg: "missing extraction model credential"}
	}
	if cfg.Endpoint == "" {
		return nil, &domain.ConfigError{Field: "extractor.endpoint", Msg: "missing extraction model endpoint"}
	}
	if cfg.Model == "" {
		return nil, &domain.ConfigError{Field: "extractor.model", Msg: "missing extraction model name"}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTargetPrice <= 0 {
		cfg.MaxTargetPrice = defaultMaxTargetPrice
	}

	return &ChatExtractor{
		endpoint:       cfg.Endpoint,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxAttempts:    cfg.MaxAttempts,
		backoff:        cfg.Backoff,
		maxTargetPrice: cfg.MaxTargetPrice,
		logger:         logger,
	}, nil
}

// ModelVersion identifies the configured model for persisted records.
func (c *ChatExtractor) ModelVersion() string { return c.model }

// Extract asks the model for structured fields, retrying on invalid answers
// and transient upstream failures with a bounded linear backoff. On
// exhaustion the last failure classifies the ExtractionError.
func (c *ChatExtractor) Extract(ctx context.Context, input string) (domain.Extraction, error) {
	var (
		lastReason = domain.ReasonUpstreamError
		lastErr    error
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		extraction, reason, err := c.attempt(ctx, input)
		if err == nil {
			return extraction, nil
		}
		lastReason, lastErr = reason, err
		c.debug("extraction attempt failed", "attempt", attempt, "reason", reason, "error", err)

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return domain.Extraction{}, &domain.ExtractionError{Reason: domain.ReasonTimeout, Err: ctx.Err()}
		}
	}

	return domain.Extraction{}, &domain.ExtractionError{Reason: lastReason, Err: lastErr}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractionPayload is the shape the model is instructed to answer with.
type extractionPayload struct {
	Rating      string   `json:"rating"`
	TargetPrice *float64 `json:"target_price"`
	Sentiment   string   `json:"sentiment"`
	Rationale   string   `json:"rationale"`
}

func (c *ChatExtractor) attempt(ctx context.Context, input string) (domain.Extraction, domain.ExtractionReason, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: input},
		},
		Temperature: 0,
	})
	if err != nil {
		return domain.Extraction{}, domain.ReasonUpstreamError, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Extraction{}, domain.ReasonUpstreamError, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Extraction{}, classifyTransport(err), fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Extraction{}, domain.ReasonUpstreamError,
			fmt.Errorf("model returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Extraction{}, domain.ReasonSchemaInvalid, fmt.Errorf("decode response envelope: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return domain.Extraction{}, domain.ReasonSchemaInvalid, fmt.Errorf("response has no choices")
	}

	payload, err := decodePayload(parsed.Choices[0].Message.Content)
	if err != nil {
		return domain.Extraction{}, domain.ReasonSchemaInvalid, err
	}

	return c.validate(payload), "", nil
}

// decodePayload tolerates the code fences some models insist on adding
// despite the instruction, then demands a single JSON object.
func decodePayload(content string) (extractionPayload, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload extractionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return extractionPayload{}, fmt.Errorf("answer is not the expected JSON object: %w", err)
	}
	return payload, nil
}

// validate coerces the loose model answer into the closed domain values. An
// implausible target price is treated as absent, never as a hard failure.
func (c *ChatExtractor) validate(p extractionPayload) domain.Extraction {
	extraction := domain.Extraction{
		Rating:    domain.ParseRating(p.Rating),
		Sentiment: domain.ParseSentiment(p.Sentiment),
		Rationale: strings.TrimSpace(p.Rationale),
	}
	if p.TargetPrice != nil && *p.TargetPrice > 0 && *p.TargetPrice <= c.maxTargetPrice {
		extraction.TargetPrice = p.TargetPrice
	}
	return extraction
}

func classifyTransport(err error) domain.ExtractionReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ReasonTimeout
	}
	return domain.ReasonUpstreamError
}

func (c *ChatExtractor) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
