// Package reporter posts job confirmations back to the origin. Delivery is
// best effort: one attempt per confirmation, shed when the buffer is full
// or the circuit is open.
package reporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

const breakerName = "confirmations"

var ErrConfirmRejected = errors.New("confirmation rejected by origin")

type Config struct {
	URL           string
	Role          string
	Pin           string
	Timeout       time.Duration
	Workers       int
	Buffer        int
	RatePerSecond float64
	Burst         int
	DrainTimeout  time.Duration
}

type Reporter struct {
	cfg     Config
	client  *http.Client
	queue   chan model.Confirmation
	cb      *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Reporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 3 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	r := &Reporter{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		queue:   make(chan model.Confirmation, cfg.Buffer),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger.With(slog.String("component", "reporter")),
	}
	r.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			r.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return r
}

func (r *Reporter) String() string { return "confirmation-reporter" }

// Report queues c without blocking. It returns false when the buffer is full.
func (r *Reporter) Report(c model.Confirmation) bool {
	select {
	case r.queue <- c:
		return true
	default:
		metrics.ConfirmationsTotal.WithLabelValues(string(c.Status), "dropped").Inc()
		r.logger.Warn("confirmation buffer full, dropping", slog.String("job_id", c.CommandID))
		return false
	}
}

// Serve runs the delivery workers. On shutdown whatever is still buffered
// gets one attempt within DrainTimeout.
func (r *Reporter) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx)
		}()
	}
	wg.Wait()

	r.drain()
	return ctx.Err()
}

func (r *Reporter) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-r.queue:
			if ctx.Err() != nil {
				r.deliverDetached(c)
				continue
			}
			r.deliver(ctx, c)
		}
	}
}

func (r *Reporter) deliverDetached(c model.Confirmation) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.DrainTimeout)
	defer cancel()
	r.deliver(ctx, c)
}

func (r *Reporter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case c := <-r.queue:
			r.deliver(ctx, c)
		default:
			return
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, c model.Confirmation) {
	logger := r.logger.With(slog.String("job_id", c.CommandID), slog.String("status", string(c.Status)))

	if err := r.limiter.Wait(ctx); err != nil {
		metrics.ConfirmationsTotal.WithLabelValues(string(c.Status), "dropped").Inc()
		logger.Warn("confirmation not sent", "error", err)
		return
	}

	_, err := r.cb.Execute(func() (struct{}, error) {
		return struct{}{}, r.Send(ctx, c)
	})
	switch {
	case err == nil:
		metrics.ConfirmationsTotal.WithLabelValues(string(c.Status), "sent").Inc()
		logger.Debug("confirmation sent")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ConfirmationsTotal.WithLabelValues(string(c.Status), "rejected").Inc()
		logger.Warn("confirmation skipped, circuit open")
	default:
		metrics.ConfirmationsTotal.WithLabelValues(string(c.Status), "error").Inc()
		logger.Warn("confirmation failed", "error", err)
	}
}

// Send posts a single confirmation.
func (r *Reporter) Send(ctx context.Context, c model.Confirmation) error {
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Role", r.cfg.Role)
	req.Header.Set("X-User-Pin", r.cfg.Pin)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: API Error %d: %s", ErrConfirmRejected, resp.StatusCode, string(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// State reports the circuit breaker state name.
func (r *Reporter) State() string { return r.cb.State().String() }

// Pending returns the number of buffered confirmations.
func (r *Reporter) Pending() int { return len(r.queue) }

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
