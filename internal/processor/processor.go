// Package processor is the single consumer of the job queue. It applies
// configuration commands, renders and prints orders, and reports one
// confirmation per job.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/settings"
)

// Jobs is the consumer side of the job queue.
type Jobs interface {
	Out() <-chan model.WorkItem
	MarkProcessed()
}

// Settings is the live configuration the processor reads and writes.
type Settings interface {
	SettingsSource
	MergeInto(base model.Settings, overrides map[string]any) (model.Settings, error)
	Apply(overrides map[string]any) (model.Settings, error)
}

// Sink hands a rendered document to a printer.
type Sink interface {
	Print(ctx context.Context, target model.Printer, doc *receipt.Document, title string) error
}

// Confirmer delivers confirmations without blocking the caller.
type Confirmer interface {
	Report(model.Confirmation) bool
}

// Result describes one processed job.
type Result struct {
	JobID    string             `json:"jobId"`
	Kind     model.JobKind      `json:"kind"`
	Subtype  model.PrintSubtype `json:"subtype,omitempty"`
	OK       bool               `json:"ok"`
	Message  string             `json:"message"`
	Duration time.Duration      `json:"duration"`
}

type Processor struct {
	jobs      Jobs
	settings  Settings
	sink      Sink
	confirm   Confirmer
	logger    *slog.Logger
	now       func() time.Time
	observers []func(Result)
}

type Option func(*Processor)

// WithObserver registers fn to receive every job result.
func WithObserver(fn func(Result)) Option {
	return func(p *Processor) { p.observers = append(p.observers, fn) }
}

func New(jobs Jobs, settings Settings, sink Sink, confirm Confirmer, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		jobs:     jobs,
		settings: settings,
		sink:     sink,
		confirm:  confirm,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) String() string { return "job-processor" }

// Serve drains the queue one job at a time until ctx is cancelled.
func (p *Processor) Serve(ctx context.Context) error {
	p.logger.Info("processor started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("processor stopped")
			return ctx.Err()
		case item, ok := <-p.jobs.Out():
			if !ok {
				return nil
			}
			p.Process(ctx, item)
			p.jobs.MarkProcessed()
		}
	}
}

// Process runs one job to completion and reports its confirmation. A panic
// inside the job is converted into a failed confirmation.
func (p *Processor) Process(ctx context.Context, item model.WorkItem) Result {
	start := p.now()
	attempt := uuid.NewString()
	logger := p.logger.With(
		slog.String("job_id", item.ID),
		slog.String("kind", string(item.Kind)),
		slog.String("attempt_id", attempt),
	)
	ctx = context.WithValue(ctx, model.ContextJobID, item.ID)
	ctx = context.WithValue(ctx, model.ContextAttemptID, attempt)

	res := Result{JobID: item.ID, Kind: item.Kind, Subtype: item.PrintSubtype}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res.OK, res.Message = false, fmt.Sprintf("internal error: %v", r)
				logger.Error("job panicked", "panic", r)
			}
		}()
		res.OK, res.Message = p.handle(ctx, item, logger)
	}()
	res.Duration = p.now().Sub(start)

	status := model.StatusCompleted
	if res.OK {
		logger.Info("job completed", "message", res.Message, "duration", res.Duration)
	} else {
		status = model.StatusFailed
		logger.Warn("job failed", "message", res.Message, "duration", res.Duration)
	}
	metrics.JobsTotal.WithLabelValues(string(item.Kind), string(status)).Inc()

	if !p.confirm.Report(model.NewConfirmation(item.ID, res.OK, res.Message, p.now())) {
		logger.Warn("confirmation dropped")
	}
	for _, fn := range p.observers {
		fn(res)
	}
	return res
}

func (p *Processor) handle(ctx context.Context, item model.WorkItem, logger *slog.Logger) (bool, string) {
	switch item.Kind {
	case model.JobKindPrint:
		return p.handlePrint(ctx, item, logger)
	case model.JobKindConfig:
		return p.handleConfig(item, logger)
	default:
		return false, fmt.Sprintf("%v: %s", ErrUnknownKind, item.Kind)
	}
}

func (p *Processor) handleConfig(item model.WorkItem, logger *slog.Logger) (bool, string) {
	overrides, err := model.Overrides(item.Payload)
	if err != nil {
		return false, fmt.Sprintf("invalid configuration: %v", err)
	}
	if len(overrides) == 0 {
		return false, ErrMissingConfig.Error()
	}
	next, err := p.settings.Apply(overrides)
	switch {
	case errors.Is(err, settings.ErrPersist):
		// live already; only the restart copy is missing
		logger.Error("settings applied but not saved", "error", err)
		return false, fmt.Sprintf("configuration applied but not saved: %v", err)
	case err != nil:
		return false, fmt.Sprintf("configuration not applied: %v", err)
	}
	logger.Info("settings updated",
		"paper_width", next.PaperWidth,
		"text_size", next.TextSize,
		"rotation", next.RotationDegrees,
		"auto_print_client", next.AutoPrintClient,
		"auto_print_kitchen", next.AutoPrintKitchen,
	)
	return true, "configuration updated"
}

func (p *Processor) handlePrint(ctx context.Context, item model.WorkItem, logger *slog.Logger) (bool, string) {
	order, err := item.Order()
	if err != nil {
		return false, fmt.Sprintf("invalid order data: %v", err)
	}
	if order == nil {
		return false, ErrMissingOrder.Error()
	}

	job := p.settings.Snapshot()
	subtype := item.PrintSubtype
	if subtype == "" {
		subtype = model.PrintClient
	}
	if !job.AutoPrint(subtype) {
		logger.Warn("auto-print disabled for this copy, skipping", "order_id", order.OrderID, "subtype", subtype)
		return true, fmt.Sprintf("accepted but suppressed: %s printing disabled", subtype)
	}

	overrides, err := model.Overrides(item.PrinterConfig)
	if err != nil {
		return false, fmt.Sprintf("invalid printer configuration: %v", err)
	}
	if len(overrides) > 0 {
		if job, err = p.settings.MergeInto(job, overrides); err != nil {
			return false, fmt.Sprintf("invalid printer configuration: %v", err)
		}
	}

	renderStart := time.Now()
	doc, err := receipt.Render(order, subtype, receipt.LayoutFromSettings(job))
	metrics.ObserveSince(metrics.RenderDuration, renderStart)
	if err != nil {
		return false, fmt.Sprintf("render failed: %v", err)
	}

	title := fmt.Sprintf("Order #%s - %s", order.OrderID, subtype)
	ctx = context.WithValue(ctx, model.ContextSubtype, subtype)
	if err := p.sink.Print(ctx, job.Target(), doc, title); err != nil {
		if errors.Is(err, context.Canceled) {
			return false, "print cancelled"
		}
		return false, fmt.Sprintf("print failed: %v", err)
	}
	logger.Info("order printed", "order_id", order.OrderID, "subtype", subtype, "width", doc.Width(), "height", doc.Height())
	return true, "printed"
}
