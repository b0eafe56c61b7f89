package domain

import "fmt"

// ExtractionReason classifies why extraction gave up on a candidate.
type ExtractionReason string

const (
	ReasonSchemaInvalid ExtractionReason = "schema_invalid"
	ReasonUpstreamError ExtractionReason = "upstream_error"
	ReasonTimeout       ExtractionReason = "timeout"
)

// ExtractionError is a per-candidate failure: the candidate is skipped and
// counted, the run continues.
type ExtractionError struct {
	Reason ExtractionReason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FetchError is a per-symbol failure: the symbol is skipped and counted,
// the run continues.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError is run-fatal: the store is the single source of truth and a
// run cannot produce meaningful results without it. Writes are single-record
// atomic, so an abort never leaves partially written state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConfigError is startup-fatal: the run never starts.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}
