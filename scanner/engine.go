package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the request-in, report-out entry point shared by the CLI and the HTTP API. It
// keeps no state between calls.
type Engine struct {
	validator *Validator
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewEngine wires a validator and a scheduler together.
func NewEngine(validator *Validator, scheduler *Scheduler, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		validator: validator,
		scheduler: scheduler,
		logger:    logger.With(zap.String("component", "engine")),
	}
}

// Run validates req, scans the target and returns the ordered report. Errors are either a
// *ValidationError, a *ScanInternalError or the context error when ctx is canceled.
func (e *Engine) Run(ctx context.Context, req Request) (ScanReport, error) {
	target, truncated, err := e.validator.Validate(req.Host, req.Ports, req.TimeoutMillis, req.MaxConcurrency)
	if err != nil {
		e.logger.Info("scan request rejected", zap.String("host", req.Host), zap.Error(err))
		return ScanReport{}, err
	}

	id := uuid.NewString()
	logger := e.logger.With(zap.String("scan_id", id), zap.String("host", target.Host))
	if truncated > 0 {
		logger.Info("port list truncated", zap.Int("kept", len(target.Ports)), zap.Int("dropped", truncated))
	}
	logger.Info("scan started",
		zap.Int("ports", len(target.Ports)),
		zap.Duration("timeout", target.Timeout),
		zap.Int("max_concurrency", target.MaxConcurrency),
	)

	started := time.Now()
	outcomes, err := e.scheduler.Scan(ctx, target)
	if err != nil {
		logger.Error("scan aborted", zap.Error(err))
		return ScanReport{}, err
	}

	report := Aggregate(target, outcomes)
	report.ID = id
	report.Truncated = truncated
	report.StartedAt = started.UTC()
	report.DurationMillis = time.Since(started).Milliseconds()

	logger.Info("scan completed",
		zap.Int("open", report.OpenCount),
		zap.Int("closed", report.ClosedCount),
		zap.Int("filtered", report.FilteredCount),
		zap.Int("abandoned", report.Abandoned),
		zap.Int64("duration_ms", report.DurationMillis),
	)
	return report, nil
}
