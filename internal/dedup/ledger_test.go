package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AddIsIdempotent(t *testing.T) {
	l := New(10, DefaultEvictFraction)

	assert.True(t, l.Add("a"))
	assert.False(t, l.Add("a"))
	assert.True(t, l.Contains("a"))
	assert.False(t, l.Contains("b"))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_EvictsOldestBatch(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantLen  int
		evicted  int
	}{
		{"commands", CommandCapacity, 801, 200},
		{"orders", OrderCapacity, 401, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.capacity, DefaultEvictFraction)
			for i := 0; i <= tt.capacity; i++ {
				require.True(t, l.Add(fmt.Sprintf("k%d", i)))
			}

			assert.Equal(t, tt.wantLen, l.Len())
			assert.Equal(t, uint64(tt.evicted), l.Evicted())
			for i := 0; i < tt.evicted; i++ {
				assert.False(t, l.Contains(fmt.Sprintf("k%d", i)))
			}
			for i := tt.evicted; i <= tt.capacity; i++ {
				assert.True(t, l.Contains(fmt.Sprintf("k%d", i)))
			}
		})
	}
}

func TestLedger_NeverExceedsCapacity(t *testing.T) {
	l := New(50, DefaultEvictFraction)
	for i := 0; i < 1000; i++ {
		l.Add(fmt.Sprintf("k%d", i))
		require.LessOrEqual(t, l.Len(), 50)
	}
}

func TestLedger_EvictedKeyIsAcceptedAgain(t *testing.T) {
	l := New(5, DefaultEvictFraction)
	for i := 0; i < 6; i++ {
		l.Add(fmt.Sprintf("k%d", i))
	}
	assert.False(t, l.Contains("k0"))
	assert.True(t, l.Add("k0"))
}

func TestLedger_ConcurrentAddHasOneWinner(t *testing.T) {
	l := New(CommandCapacity, DefaultEvictFraction)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Add("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 5)
	assert.Equal(t, 1, l.Capacity())
	assert.True(t, l.Add("x"))
	assert.True(t, l.Add("y"))
	assert.Equal(t, 1, l.Len())
}
