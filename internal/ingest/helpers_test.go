package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type seenItem struct {
	origin Origin
	raw    string
}

type recorder struct {
	mu    sync.Mutex
	items []seenItem
}

func (r *recorder) HandleItem(_ context.Context, origin Origin, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, seenItem{origin: origin, raw: string(raw)})
}

func (r *recorder) snapshot() []seenItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]seenItem(nil), r.items...)
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (s *statusLog) Notify(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *statusLog) all() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.statuses...)
}
