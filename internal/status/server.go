package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/ingest"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// --- Collaborators ---

type QueueStats interface {
	Stats() (enqueued, processed uint64, depth int)
}

type LedgerStats interface {
	Len() int
	Capacity() int
	Evicted() uint64
}

type ReporterStats interface {
	State() string
	Pending() int
}

type SettingsSource interface {
	Snapshot() model.Settings
}

// Deps are the live components the status API reads from.
type Deps struct {
	Trackers []*ingest.Tracker
	Queue    QueueStats
	Ledgers  map[string]LedgerStats
	Reporter ReporterStats
	Settings SettingsSource
	Hub      *Hub
}

type Config struct {
	Listen         string
	CORSOrigins    []string
	RequestsPerMin int
}

// --- Report ---

type QueueReport struct {
	Enqueued  uint64 `json:"enqueued"`
	Processed uint64 `json:"processed"`
	Depth     int    `json:"depth"`
}

type LedgerReport struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Evicted  uint64 `json:"evicted"`
}

type ReporterReport struct {
	Breaker string `json:"breaker"`
	Pending int    `json:"pending"`
}

type Report struct {
	Instance  string                  `json:"instance"`
	StartedAt time.Time               `json:"startedAt"`
	Uptime    string                  `json:"uptime"`
	Healthy   bool                    `json:"healthy"`
	Channels  []ingest.Status         `json:"channels"`
	Queue     *QueueReport            `json:"queue,omitempty"`
	Ledgers   map[string]LedgerReport `json:"ledgers,omitempty"`
	Reporter  *ReporterReport         `json:"reporter,omitempty"`
	Clients   int                     `json:"wsClients"`
}

// Server is the local status surface: health, metrics, a JSON snapshot and
// the websocket feed.
type Server struct {
	cfg       Config
	deps      Deps
	instance  string
	startedAt time.Time
	router    chi.Router
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		deps:      deps,
		instance:  uuid.NewString(),
		startedAt: time.Now(),
		logger:    logger.With(slog.String("component", "status")),
		now:       time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) String() string { return "status-server" }

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RequestsPerMin > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RequestsPerMin, time.Minute))
		}
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/settings", s.handleSettings)
	})

	if s.deps.Hub != nil {
		r.Get("/ws", s.deps.Hub.ServeHTTP)
	}
	return r
}

// Serve listens until ctx is done and then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("status server shutdown", "error", err)
		}
		return ctx.Err()
	}
}

// Snapshot assembles the current report.
func (s *Server) Snapshot() Report {
	rep := Report{
		Instance:  s.instance,
		StartedAt: s.startedAt,
		Uptime:    s.now().Sub(s.startedAt).Truncate(time.Second).String(),
		Healthy:   true,
		Channels:  make([]ingest.Status, 0, len(s.deps.Trackers)),
	}
	for _, t := range s.deps.Trackers {
		st := t.Snapshot()
		if st.Stale {
			rep.Healthy = false
		}
		rep.Channels = append(rep.Channels, st)
	}
	if s.deps.Queue != nil {
		enq, proc, depth := s.deps.Queue.Stats()
		rep.Queue = &QueueReport{Enqueued: enq, Processed: proc, Depth: depth}
	}
	if len(s.deps.Ledgers) > 0 {
		rep.Ledgers = make(map[string]LedgerReport, len(s.deps.Ledgers))
		for name, l := range s.deps.Ledgers {
			rep.Ledgers[name] = LedgerReport{Size: l.Len(), Capacity: l.Capacity(), Evicted: l.Evicted()}
		}
	}
	if s.deps.Reporter != nil {
		rep.Reporter = &ReporterReport{Breaker: s.deps.Reporter.State(), Pending: s.deps.Reporter.Pending()}
		if rep.Reporter.Breaker == "open" {
			rep.Healthy = false
		}
	}
	if s.deps.Hub != nil {
		rep.Clients = s.deps.Hub.ClientCount()
	}
	return rep
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rep := s.Snapshot()
	code, state := http.StatusOK, "ok"
	if !rep.Healthy {
		code, state = http.StatusServiceUnavailable, "degraded"
	}
	writeJSON(w, code, map[string]string{"status": state})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Settings == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "settings unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
