package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/dedup"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// Enqueuer is the producer side of the job queue.
type Enqueuer interface {
	Enqueue(model.WorkItem) bool
}

// AutoPrintPlanner turns a new order into the print jobs the current
// settings ask for.
type AutoPrintPlanner interface {
	Plan(orderID model.ID, order json.RawMessage, now time.Time) []model.WorkItem
}

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSeeded    Outcome = "seeded"
)

type IntakeOptions struct {
	// PrintOrderSnapshots makes orders in a snapshot print like inserts.
	// By default they only seed the order ledger.
	PrintOrderSnapshots bool
}

// Intake is the dedup-and-enqueue path shared by every channel.
type Intake struct {
	commands *dedup.Ledger
	orders   *dedup.Ledger
	queue    Enqueuer
	planner  AutoPrintPlanner
	opts     IntakeOptions
	logger   *slog.Logger
	now      func() time.Time
}

func NewIntake(commands, orders *dedup.Ledger, queue Enqueuer, planner AutoPrintPlanner, opts IntakeOptions, logger *slog.Logger) *Intake {
	return &Intake{
		commands: commands,
		orders:   orders,
		queue:    queue,
		planner:  planner,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Commands is the handler for the commands source.
func (in *Intake) Commands() ItemHandler {
	return ItemHandlerFunc(func(ctx context.Context, origin Origin, raw json.RawMessage) {
		in.AcceptCommand(ctx, origin, raw)
	})
}

// Orders is the handler for the orders source.
func (in *Intake) Orders() ItemHandler {
	return ItemHandlerFunc(func(ctx context.Context, origin Origin, raw json.RawMessage) {
		in.AcceptOrder(ctx, origin, raw)
	})
}

// AcceptCommand enqueues a command the first time its id is seen.
func (in *Intake) AcceptCommand(ctx context.Context, origin Origin, raw json.RawMessage) Outcome {
	outcome := in.acceptCommand(origin, raw)
	metrics.ItemsTotal.WithLabelValues(CommandsSource.Name, origin.Channel, string(outcome)).Inc()
	metrics.LedgerSize.WithLabelValues(CommandsSource.Name).Set(float64(in.commands.Len()))
	return outcome
}

func (in *Intake) acceptCommand(origin Origin, raw json.RawMessage) Outcome {
	var cmd model.Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		in.logger.Warn("rejecting command", "channel", origin.Channel, "error", err)
		return OutcomeRejected
	}
	item, err := cmd.WorkItem(in.now())
	if err != nil {
		in.logger.Warn("rejecting command", "channel", origin.Channel, "error", err)
		return OutcomeRejected
	}
	if !in.commands.Add(item.ID) {
		return OutcomeDuplicate
	}
	if !in.queue.Enqueue(item) {
		in.logger.Warn("queue closed, command dropped", slog.String("job_id", item.ID))
		return OutcomeRejected
	}
	in.logger.Info("command enqueued",
		slog.String("job_id", item.ID),
		slog.String("kind", string(item.Kind)),
		slog.String("channel", origin.Channel),
	)
	return OutcomeAccepted
}

// AcceptOrder triggers auto-print the first time an order id is seen.
// Snapshot orders only seed the ledger unless PrintOrderSnapshots is set.
func (in *Intake) AcceptOrder(ctx context.Context, origin Origin, raw json.RawMessage) Outcome {
	outcome := in.acceptOrder(origin, raw)
	metrics.ItemsTotal.WithLabelValues(OrdersSource.Name, origin.Channel, string(outcome)).Inc()
	metrics.LedgerSize.WithLabelValues(OrdersSource.Name).Set(float64(in.orders.Len()))
	return outcome
}

func (in *Intake) acceptOrder(origin Origin, raw json.RawMessage) Outcome {
	id, err := model.ParseOrderID(raw)
	if err != nil {
		in.logger.Warn("rejecting order", "channel", origin.Channel, "error", err)
		return OutcomeRejected
	}
	if origin.Snapshot && !in.opts.PrintOrderSnapshots {
		if in.MarkOrderSeen(id) {
			return OutcomeSeeded
		}
		return OutcomeDuplicate
	}
	if !in.orders.Add(id.String()) {
		return OutcomeDuplicate
	}
	in.logger.Info("new order received", slog.String("order_id", id.String()), slog.String("channel", origin.Channel))
	in.EnqueueOrderAutoPrint(id, raw)
	return OutcomeAccepted
}

// MarkOrderSeen records an order id without printing it.
func (in *Intake) MarkOrderSeen(id model.ID) bool {
	return in.orders.Add(id.String())
}

// EnqueueOrderAutoPrint plans the auto-print jobs for an order and enqueues
// those whose derived ids are new. It returns the number enqueued.
func (in *Intake) EnqueueOrderAutoPrint(id model.ID, raw json.RawMessage) int {
	jobs := in.planner.Plan(id, raw, in.now())
	if len(jobs) == 0 {
		in.logger.Info("auto-print disabled for every copy, order not printed", slog.String("order_id", id.String()))
		return 0
	}

	n := 0
	for _, job := range jobs {
		if !in.commands.Add(job.ID) {
			metrics.ItemsTotal.WithLabelValues(CommandsSource.Name, "auto", string(OutcomeDuplicate)).Inc()
			continue
		}
		if !in.queue.Enqueue(job) {
			in.logger.Warn("queue closed, auto-print job dropped", slog.String("job_id", job.ID))
			continue
		}
		metrics.ItemsTotal.WithLabelValues(CommandsSource.Name, "auto", string(OutcomeAccepted)).Inc()
		in.logger.Info("auto-print job enqueued", slog.String("job_id", job.ID), slog.String("subtype", string(job.PrintSubtype)))
		n++
	}
	return n
}
