package usecase

import (
	"context"
	"log/slog"

	"AnalystIntel/internal/domain"
)

// RunHandle is the future for one submitted run. The caller may stop waiting
// at any point; the run itself keeps going and finishes or fails on its own
// timeouts.
type RunHandle struct {
	done    chan struct{}
	summary domain.RunSummary
	err     error
}

// Wait blocks until the run finishes or the caller's context expires.
// A context error means "stopped waiting", not "run failed".
func (h *RunHandle) Wait(ctx context.Context) (domain.RunSummary, error) {
	select {
	case <-h.done:
		return h.summary, h.err
	case <-ctx.Done():
		return domain.RunSummary{}, ctx.Err()
	}
}

// Done is closed once the run has finished.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Runner executes pipeline runs on background goroutines so an interactive
// trigger never blocks its caller. It deliberately does not serialize runs:
// concurrent runs are legal and all dedup races resolve at the store's
// atomic insert.
type Runner struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewRunner wraps the pipeline for background submission.
func NewRunner(pipeline *Pipeline, logger *slog.Logger) *Runner {
	return &Runner{pipeline: pipeline, logger: logger}
}

// Submit starts a run in the background and returns its handle. The context
// governs the run itself, so callers that want the run to outlive their own
// request pass a detached context.
func (r *Runner) Submit(ctx context.Context) *RunHandle {
	handle := &RunHandle{done: make(chan struct{})}

	go func() {
		defer close(handle.done)
		handle.summary, handle.err = r.pipeline.Run(ctx)
		if handle.err != nil && r.logger != nil {
			r.logger.Error("background run aborted", "error", handle.err)
		}
	}()

	return handle
}
