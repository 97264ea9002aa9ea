package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_PollOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/print/queue", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"commands":[{"commandId":"a"},{"commandId":"b"}]}`))
	}))
	defer srv.Close()

	items := &recorder{}
	p := NewPoller(CommandsSource, PollerConfig{URL: srv.URL + "/api/print/queue"}, items, nil, discardLogger())
	p.PollOnce(context.Background())

	got := items.snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, Origin{Channel: ChannelPoll}, got[0].origin)
	assert.Equal(t, `{"commandId":"b"}`, got[1].raw)
}

func TestPoller_ErrorsAreSwallowed(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"commands":[{"commandId":"x"}]}`))
	}))
	defer srv.Close()

	items := &recorder{}
	p := NewPoller(CommandsSource, PollerConfig{URL: srv.URL}, items, nil, discardLogger())
	p.PollOnce(context.Background())
	assert.Empty(t, items.snapshot())

	p.PollOnce(context.Background())
	assert.Len(t, items.snapshot(), 1)
}

func TestPoller_StalenessSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"commands":[]}`))
	}))
	defer srv.Close()

	events := &statusLog{}
	tracker := NewTracker("commands", events)
	base := time.Now()
	tracker.now = func() time.Time { return base }
	tracker.Heartbeat()

	p := NewPoller(CommandsSource, PollerConfig{URL: srv.URL, StaleAfter: 90 * time.Second}, &recorder{}, tracker, discardLogger())

	p.now = func() time.Time { return base.Add(60 * time.Second) }
	p.PollOnce(context.Background())
	assert.False(t, tracker.Snapshot().Stale)

	p.now = func() time.Time { return base.Add(91 * time.Second) }
	p.PollOnce(context.Background())
	p.PollOnce(context.Background())

	st := tracker.Snapshot()
	assert.True(t, st.Stale)
	assert.Equal(t, StaleMessage, st.Message)

	stale := 0
	for _, s := range events.all() {
		if s.Stale {
			stale++
		}
	}
	assert.Equal(t, 1, stale, "staleness is published once per episode")

	tracker.Heartbeat()
	assert.False(t, tracker.Snapshot().Stale)
}

func TestPoller_ServePollsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(CommandsSource, PollerConfig{URL: srv.URL, Interval: time.Hour}, &recorder{}, nil, discardLogger())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
