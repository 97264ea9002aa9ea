package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Dispatch(t *testing.T) {
	tests := []struct {
		name      string
		source    Source
		data      string
		wantClass EventClass
		wantItems []seenItem
		wantErr   bool
	}{
		{
			name:      "command snapshot",
			source:    CommandsSource,
			data:      `{"event":"print:snapshot","commands":[{"commandId":"a"},{"commandId":"b"}]}`,
			wantClass: EventSnapshot,
			wantItems: []seenItem{
				{Origin{ChannelStream, true}, `{"commandId":"a"}`},
				{Origin{ChannelStream, true}, `{"commandId":"b"}`},
			},
		},
		{
			name:      "command enqueue",
			source:    CommandsSource,
			data:      `{"event":"print:enqueue","command":{"commandId":"c"}}`,
			wantClass: EventItem,
			wantItems: []seenItem{{Origin{ChannelStream, false}, `{"commandId":"c"}`}},
		},
		{
			name:      "order insert",
			source:    OrdersSource,
			data:      `{"event":"orders:insert","order":{"id":5}}`,
			wantClass: EventItem,
			wantItems: []seenItem{{Origin{ChannelStream, false}, `{"id":5}`}},
		},
		{
			name:      "order update is liveness only",
			source:    OrdersSource,
			data:      `{"event":"orders:update","order":{"id":5}}`,
			wantClass: EventLiveness,
		},
		{
			name:      "empty snapshot",
			source:    OrdersSource,
			data:      `{"event":"orders:snapshot"}`,
			wantClass: EventSnapshot,
		},
		{
			name:    "insert without element",
			source:  OrdersSource,
			data:    `{"event":"orders:insert"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			source:  CommandsSource,
			data:    `{broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			class, err := tt.source.Dispatch(context.Background(), []byte(tt.data), ChannelStream, rec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				assert.Empty(t, rec.snapshot())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantItems, rec.snapshot())
		})
	}
}
