package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
)

func TestTracker_ReconnectEndsStaleEpisode(t *testing.T) {
	tests := []struct {
		name      string
		heartbeat bool
	}{
		{"connected only", false},
		{"connected then heartbeat", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := "reconnect-" + tt.name
			tracker := NewTracker(source, nil)
			gauge := metrics.StreamStale.WithLabelValues(source)

			require.True(t, tracker.MarkStale(StaleMessage))
			require.Equal(t, 1.0, testutil.ToFloat64(gauge))

			tracker.Connected(time.Second)
			if tt.heartbeat {
				tracker.Heartbeat()
			}

			st := tracker.Snapshot()
			assert.False(t, st.Stale)
			assert.Empty(t, st.Message)
			assert.Equal(t, 0.0, testutil.ToFloat64(gauge))

			// a later silence starts a fresh episode
			assert.True(t, tracker.MarkStale(StaleMessage))
			assert.Equal(t, 1.0, testutil.ToFloat64(gauge))
		})
	}
}

func TestTracker_HeartbeatClearsStale(t *testing.T) {
	tracker := NewTracker("heartbeat-clear", nil)
	gauge := metrics.StreamStale.WithLabelValues("heartbeat-clear")

	tracker.MarkStale(StaleMessage)
	assert.False(t, tracker.MarkStale(StaleMessage))

	tracker.Heartbeat()
	assert.False(t, tracker.Snapshot().Stale)
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))
}

func TestTracker_BackoffReporting(t *testing.T) {
	events := &statusLog{}
	tracker := NewTracker("backoff-report", events)

	tracker.BackingOff(8*time.Second, errors.New("connection refused"))
	st := tracker.Snapshot()
	assert.Equal(t, StateBackingOff, st.State)
	assert.Equal(t, 8.0, st.BackoffSeconds)
	assert.Equal(t, "connection refused", st.LastError)

	tracker.Connected(time.Second)
	st = tracker.Snapshot()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, 1.0, st.BackoffSeconds)
	assert.Empty(t, st.LastError)

	all := events.all()
	require.Len(t, all, 2)
	assert.Equal(t, 1.0, all[1].BackoffSeconds)
}
