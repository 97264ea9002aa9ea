package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
)

type StreamConfig struct {
	URL            string
	ReadTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Stream keeps one long-lived event-stream connection open, reconnecting
// with capped exponential backoff.
type Stream struct {
	source  Source
	cfg     StreamConfig
	client  *http.Client
	handler ItemHandler
	tracker *Tracker
	logger  *slog.Logger
	backoff *backoff.ExponentialBackOff
	sleep   func(context.Context, time.Duration) error
}

type StreamOption func(*Stream)

// WithHTTPClient replaces the default client. It must not set a Timeout,
// which would cut the long-lived response.
func WithHTTPClient(c *http.Client) StreamOption {
	return func(s *Stream) { s.client = c }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn func(context.Context, time.Duration) error) StreamOption {
	return func(s *Stream) { s.sleep = fn }
}

func NewStream(source Source, cfg StreamConfig, handler ItemHandler, tracker *Tracker, logger *slog.Logger, opts ...StreamOption) *Stream {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	s := &Stream{
		source:  source,
		cfg:     cfg,
		client:  &http.Client{},
		handler: handler,
		tracker: tracker,
		logger:  logger.With(slog.String("source", source.Name), slog.String("channel", ChannelStream)),
		backoff: newBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stream) String() string { return s.source.Name + "-stream" }

// Serve connects, reads until the connection fails, then backs off and
// retries. It returns only when ctx is cancelled.
func (s *Stream) Serve(ctx context.Context) error {
	s.logger.Info("stream channel started")
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			s.tracker.Disconnected()
			s.logger.Info("stream channel stopped")
			return ctx.Err()
		}

		wait := s.backoff.NextBackOff()
		metrics.StreamReconnects.WithLabelValues(s.source.Name).Inc()
		s.tracker.BackingOff(wait, err)
		s.logger.Warn("stream disconnected, retrying", "error", err, "backoff", wait)

		if err := s.sleep(ctx, wait); err != nil {
			s.tracker.Disconnected()
			s.logger.Info("stream channel stopped")
			return err
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	s.tracker.Connecting()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wd := newWatchdog(s.cfg.ReadTimeout, cancel)
	defer wd.Stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := s.client.Do(req)
	if err != nil {
		if wd.Fired() {
			return ErrReadTimeout
		}
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	s.backoff.Reset()
	s.tracker.Connected(s.cfg.InitialBackoff)
	wd.Kick()
	s.logger.Info("stream connected")

	fr := NewFrameReader(&kickReader{r: resp.Body, wd: wd})
	for {
		frame, err := fr.Next()
		if err != nil {
			switch {
			case wd.Fired():
				return ErrReadTimeout
			case errors.Is(err, io.EOF):
				return ErrStreamClosed
			default:
				return fmt.Errorf("read: %w", err)
			}
		}
		s.handleFrame(ctx, frame)
	}
}

func (s *Stream) handleFrame(ctx context.Context, frame Frame) {
	s.tracker.Heartbeat()
	if frame.Heartbeat {
		metrics.FramesTotal.WithLabelValues(s.source.Name, "heartbeat").Inc()
		return
	}

	class, err := s.source.Dispatch(ctx, []byte(frame.Data), ChannelStream, s.handler)
	if err != nil {
		metrics.FramesTotal.WithLabelValues(s.source.Name, "malformed").Inc()
		s.logger.Warn("discarding frame", "error", err)
		return
	}
	metrics.FramesTotal.WithLabelValues(s.source.Name, "event").Inc()
	if class == EventSnapshot {
		s.logger.Debug("snapshot received")
	}
}

// newBackoff yields initial, 2x, 4x ... capped at max, without jitter and
// without giving up.
func newBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// watchdog cancels the request once no bytes arrived for timeout.
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			w.fired.Store(true)
			cancel()
		})
	}
	return w
}

func (w *watchdog) Kick() {
	if w.timer != nil && !w.fired.Load() {
		w.timer.Reset(w.timeout)
	}
}

func (w *watchdog) Stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *watchdog) Fired() bool { return w.fired.Load() }

type kickReader struct {
	r  io.Reader
	wd *watchdog
}

func (k *kickReader) Read(p []byte) (int, error) {
	n, err := k.r.Read(p)
	if n > 0 {
		k.wd.Kick()
	}
	return n, err
}
