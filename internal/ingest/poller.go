package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
)

const StaleMessage = "stream stale, operating in backup mode"

type PollerConfig struct {
	URL            string
	Interval       time.Duration
	StaleAfter     time.Duration
	RequestTimeout time.Duration
}

// Poller periodically fetches the pending queue as a backup for the stream.
// Every element goes through the same handler as stream items, so the
// ledgers absorb the overlap.
type Poller struct {
	source  Source
	cfg     PollerConfig
	client  *http.Client
	handler ItemHandler
	tracker *Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// NewPoller builds a poller. tracker is the paired stream's tracker and may
// be nil when there is no stream to watch.
func NewPoller(source Source, cfg PollerConfig, handler ItemHandler, tracker *Tracker, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Poller{
		source:  source,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		handler: handler,
		tracker: tracker,
		logger:  logger.With(slog.String("source", source.Name), slog.String("channel", ChannelPoll)),
		now:     time.Now,
	}
}

func (p *Poller) String() string { return p.source.Name + "-poller" }

// Serve polls once immediately and then on every interval tick.
func (p *Poller) Serve(ctx context.Context) error {
	p.logger.Info("backup polling started", "interval", p.cfg.Interval)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("backup polling stopped")
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single staleness check and fetch. Errors are logged.
func (p *Poller) PollOnce(ctx context.Context) {
	p.checkStale()

	n, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.PollsTotal.WithLabelValues(p.source.Name, "error").Inc()
		p.logger.Warn("backup poll failed", "error", err)
		return
	}
	metrics.PollsTotal.WithLabelValues(p.source.Name, "ok").Inc()
	if n > 0 {
		p.logger.Debug("backup poll returned items", "count", n)
	}
}

func (p *Poller) checkStale() {
	if p.tracker == nil || p.cfg.StaleAfter <= 0 {
		return
	}
	silent := p.now().Sub(p.tracker.LastHeartbeat())
	if silent > p.cfg.StaleAfter && p.tracker.MarkStale(StaleMessage) {
		p.logger.Warn(StaleMessage, "silent_for", silent.Round(time.Second))
	}
}

func (p *Poller) fetch(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, string(body))
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	items, err := p.source.List(payload)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		p.handler.HandleItem(ctx, Origin{Channel: ChannelPoll}, item)
	}
	return len(items), nil
}
