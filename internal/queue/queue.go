package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// Queue is an unbounded multi-producer job queue. Producers append to a
// backlog; a broker moves items in FIFO order onto a small output channel
// that the single processor drains.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.WorkItem
	notify       chan struct{}
	out          chan model.WorkItem
	closed       atomic.Bool

	highWatermark int
	logger        *slog.Logger

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// New creates a Queue with a buffered output channel. A positive
// highWatermark logs a warning while the backlog is above it.
func New(outBuffer, highWatermark int, logger *slog.Logger) *Queue {
	if outBuffer <= 0 {
		outBuffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		notify:        make(chan struct{}, 1),
		out:           make(chan model.WorkItem, outBuffer),
		highWatermark: highWatermark,
		logger:        logger,
	}
}

// Serve runs the broker loop until ctx is cancelled. Crossing the high
// watermark is logged once per episode.
func (q *Queue) Serve(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	above := false
	for {
		q.flushOnce()
		metrics.QueueDepth.Set(float64(q.Depth()))
		if q.highWatermark > 0 {
			sz := q.BacklogSize()
			switch {
			case sz > q.highWatermark && !above:
				above = true
				q.logger.Warn("job backlog above high watermark", "backlog_size", sz, "high_watermark", q.highWatermark)
			case sz <= q.highWatermark && above:
				above = false
				q.logger.Info("job backlog back under high watermark", "backlog_size", sz)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

func (q *Queue) String() string { return "job-queue" }

// flushOnce drains backlog into the output buffer without blocking.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.backlog) && len(q.out) < cap(q.out) {
		q.out <- q.backlog[n]
		q.backlog[n] = model.WorkItem{}
		n++
	}
	if n > 0 {
		q.backlog = q.backlog[n:]
	}
	if len(q.backlog) == 0 {
		q.backlog = nil
	}
}

// Enqueue appends an item to the backlog and wakes the broker. It only
// fails once intake has been closed.
func (q *Queue) Enqueue(item model.WorkItem) bool {
	if q.closed.Load() {
		q.logger.Warn("job rejected, intake closed", "job_id", item.ID)
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, item)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel.
func (q *Queue) Out() <-chan model.WorkItem { return q.out }

func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Depth returns backlog plus buffered output items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Stats returns counters and sizes for observability.
func (q *Queue) Stats() (enq, proc uint64, depth int) {
	return q.enqueued.Load(), q.processed.Load(), q.Depth()
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.closed.Store(true) }
