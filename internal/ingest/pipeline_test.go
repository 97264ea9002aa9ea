package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/dedup"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/processor"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/queue"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/reporter"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/settings"
)

type captureSink struct {
	mu     sync.Mutex
	titles []string
	docs   map[string]*receipt.Document
}

func (c *captureSink) Print(ctx context.Context, _ model.Printer, doc *receipt.Document, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.docs[ctx.Value(model.ContextJobID).(string)] = doc
	return nil
}

const insertA1 = `{"event":"insert","order":{"id":"A1","items":[{"name":"Burger","quantity":2,"totalItemPrice":20.00}],"total":20.00,"paymentMethod":"cash"}}`

func TestPipeline_OrderInsertPrintsBothCopies(t *testing.T) {
	var mu sync.Mutex
	var confirmations []model.Confirmation

	mux := http.NewServeMux()
	mux.HandleFunc("/realtime/orders/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", insertA1)
		// replayed insert must not print again
		fmt.Fprintf(w, "data: %s\n\n", insertA1)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
	mux.HandleFunc("/api/print/confirm", func(w http.ResponseWriter, r *http.Request) {
		var c model.Confirmation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		assert.Equal(t, "printer", r.Header.Get("X-User-Role"))
		mu.Lock()
		confirmations = append(confirmations, c)
		mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := discardLogger()
	store, err := settings.NewStore(model.DefaultSettings(), nil)
	require.NoError(t, err)

	q := queue.New(4, 0, logger)
	intake := NewIntake(
		dedup.New(dedup.CommandCapacity, dedup.DefaultEvictFraction),
		dedup.New(dedup.OrderCapacity, dedup.DefaultEvictFraction),
		q, processor.NewAutoPrint(store), IntakeOptions{}, logger,
	)

	streamURL, err := Endpoint(srv.URL, "/realtime/orders/stream", "printer", "1")
	require.NoError(t, err)
	stream := NewStream(OrdersSource, StreamConfig{URL: streamURL, ReadTimeout: 5 * time.Second}, intake.Orders(), NewTracker("orders", nil), logger)

	rep := reporter.New(reporter.Config{URL: srv.URL + "/api/print/confirm", Role: "printer", Pin: "1"}, logger)
	sink := &captureSink{docs: make(map[string]*receipt.Document)}
	proc := processor.New(q, store, sink, rep, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, svc := range []interface{ Serve(context.Context) error }{q, rep, proc, stream} {
		wg.Add(1)
		go func(s interface{ Serve(context.Context) error }) {
			defer wg.Done()
			s.Serve(ctx)
		}(svc)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(confirmations) == 2
	}, 5*time.Second, 20*time.Millisecond)
	// give a duplicate the chance to show up
	time.Sleep(100 * time.Millisecond)
	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, confirmations, 2)
	ids := []string{confirmations[0].CommandID, confirmations[1].CommandID}
	sort.Strings(ids)
	assert.Equal(t, []string{"A1_client_auto", "A1_kitchen_auto"}, ids)
	for _, c := range confirmations {
		assert.Equal(t, model.StatusCompleted, c.Status)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.ElementsMatch(t, []string{"Order #A1 - client", "Order #A1 - kitchen"}, sink.titles)
	client, kitchen := sink.docs["A1_client_auto"], sink.docs["A1_kitchen_auto"]
	require.NotNil(t, client)
	require.NotNil(t, kitchen)
	// rotated 90 degrees: the longer client copy is wider
	assert.Greater(t, client.Width(), kitchen.Width())
	assert.Equal(t, client.Height(), kitchen.Height())
}

func TestPipeline_CopiesDifferOnlyInBannerAndPrices(t *testing.T) {
	var order model.OrderRecord
	var env struct {
		Order json.RawMessage `json:"order"`
	}
	require.NoError(t, json.Unmarshal([]byte(insertA1), &env))
	require.NoError(t, json.Unmarshal(env.Order, &order))

	layout := receipt.LayoutFromSettings(model.DefaultSettings())
	client := receipt.BuildLines(&order, model.PrintClient, layout)
	kitchen := receipt.BuildLines(&order, model.PrintKitchen, layout)

	inClient := make(map[string]bool)
	for _, l := range client {
		inClient[l.Text] = true
	}
	var kitchenOnly []string
	for _, l := range kitchen {
		if !inClient[l.Text] {
			kitchenOnly = append(kitchenOnly, l.Text)
		}
	}
	assert.Equal(t, []string{"--- KITCHEN TICKET ---", "Have a good shift!"}, kitchenOnly)
	assert.True(t, inClient["Subtotal: R$ 20,00"])
	assert.True(t, inClient["TOTAL: R$ 20,00"])
	assert.True(t, inClient["Payment: cash"])
}
