package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/settings"
)

const orderJSON = `{"id":42,"customerName":"Ana","deliveryOption":{"type":"No Local","tableNumber":3},
"items":[{"name":"X-Burger","quantity":1,"totalItemPrice":25}],"total":25,"paymentMethod":"Pix"}`

type printed struct {
	target model.Printer
	doc    *receipt.Document
	title  string
	jobID  any
}

type fakeSink struct {
	mu    sync.Mutex
	jobs  []printed
	err   error
	panic bool
}

func (f *fakeSink) Print(ctx context.Context, target model.Printer, doc *receipt.Document, title string) error {
	if f.panic {
		panic("printer on fire")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, printed{target: target, doc: doc, title: title, jobID: ctx.Value(model.ContextJobID)})
	return f.err
}

type fakeConfirmer struct {
	mu   sync.Mutex
	sent []model.Confirmation
}

func (f *fakeConfirmer) Report(c model.Confirmation) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return true
}

func (f *fakeConfirmer) all() []model.Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Confirmation(nil), f.sent...)
}

type chanJobs struct {
	ch        chan model.WorkItem
	processed int
}

func (c *chanJobs) Out() <-chan model.WorkItem { return c.ch }
func (c *chanJobs) MarkProcessed()             { c.processed++ }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, sink *fakeSink) (*Processor, *settings.Store, *fakeConfirmer) {
	t.Helper()
	store, err := settings.NewStore(model.DefaultSettings(), nil)
	require.NoError(t, err)
	conf := &fakeConfirmer{}
	p := New(&chanJobs{ch: make(chan model.WorkItem)}, store, sink, conf, discardLogger())
	return p, store, conf
}

func printItem(id string, subtype model.PrintSubtype, payload string) model.WorkItem {
	item := model.WorkItem{ID: id, Kind: model.JobKindPrint, PrintSubtype: subtype}
	if payload != "" {
		item.Payload = json.RawMessage(payload)
	}
	return item
}

func TestProcess_PrintSuccess(t *testing.T) {
	sink := &fakeSink{}
	p, _, conf := newTestProcessor(t, sink)

	res := p.Process(context.Background(), printItem("c1", model.PrintClient, orderJSON))

	assert.True(t, res.OK)
	assert.Equal(t, "printed", res.Message)
	require.Len(t, sink.jobs, 1)
	assert.Equal(t, "Order #42 - client", sink.jobs[0].title)
	assert.Equal(t, "c1", sink.jobs[0].jobID)
	assert.Equal(t, "ELGIN i9(USB)", sink.jobs[0].target.Name)
	// default rotation is 90, so the paper width ends up as the height
	assert.Equal(t, 576, sink.jobs[0].doc.Height())

	sent := conf.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "c1", sent[0].CommandID)
	assert.Equal(t, model.StatusCompleted, sent[0].Status)
}

func TestProcess_InlinePrinterConfigIsJobLocal(t *testing.T) {
	sink := &fakeSink{}
	p, store, _ := newTestProcessor(t, sink)

	item := printItem("c1", model.PrintKitchen, orderJSON)
	item.PrinterConfig = json.RawMessage(`{"paper_width":"58mm","rotation_degrees":0}`)

	res := p.Process(context.Background(), item)
	require.True(t, res.OK, res.Message)
	require.Len(t, sink.jobs, 1)
	assert.Equal(t, 384, sink.jobs[0].doc.Width())

	assert.Equal(t, "80mm", store.Snapshot().PaperWidth)
	assert.Equal(t, 90, store.Snapshot().RotationDegrees)
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name    string
		item    model.WorkItem
		sinkErr error
		wantMsg string
	}{
		{
			name:    "missing order",
			item:    printItem("c1", model.PrintClient, ""),
			wantMsg: "order data missing",
		},
		{
			name:    "unknown kind",
			item:    model.WorkItem{ID: "c2", Kind: "reprint"},
			wantMsg: "unknown command type: reprint",
		},
		{
			name:    "empty config",
			item:    model.WorkItem{ID: "c3", Kind: model.JobKindConfig, Payload: json.RawMessage(`{}`)},
			wantMsg: "configuration missing",
		},
		{
			name:    "missing config",
			item:    model.WorkItem{ID: "c4", Kind: model.JobKindConfig},
			wantMsg: "configuration missing",
		},
		{
			name:    "sink error",
			item:    printItem("c5", model.PrintClient, orderJSON),
			sinkErr: errors.New("connection refused"),
			wantMsg: "print failed: connection refused",
		},
		{
			name:    "bad inline config",
			item:    model.WorkItem{ID: "c6", Kind: model.JobKindPrint, Payload: json.RawMessage(orderJSON), PrinterConfig: json.RawMessage(`{"paper_width":"1m"}`)},
			wantMsg: "invalid printer configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, conf := newTestProcessor(t, &fakeSink{err: tt.sinkErr})

			res := p.Process(context.Background(), tt.item)
			assert.False(t, res.OK)
			assert.Contains(t, res.Message, tt.wantMsg)

			sent := conf.all()
			require.Len(t, sent, 1)
			assert.Equal(t, model.StatusFailed, sent[0].Status)
			assert.Equal(t, tt.item.ID, sent[0].CommandID)
		})
	}
}

func TestProcess_SuppressedCopyConfirmsSuccess(t *testing.T) {
	sink := &fakeSink{}
	p, store, conf := newTestProcessor(t, sink)
	_, err := store.Apply(map[string]any{"auto_print_kitchen": false})
	require.NoError(t, err)

	res := p.Process(context.Background(), printItem("k1", model.PrintKitchen, orderJSON))

	assert.True(t, res.OK)
	assert.Contains(t, res.Message, "suppressed")
	assert.Empty(t, sink.jobs)
	assert.Equal(t, model.StatusCompleted, conf.all()[0].Status)
}

func TestProcess_ConfigMerges(t *testing.T) {
	p, store, conf := newTestProcessor(t, &fakeSink{})

	res := p.Process(context.Background(), model.WorkItem{
		ID:      "cfg1",
		Kind:    model.JobKindConfig,
		Payload: json.RawMessage(`{"text_size":"small","line_spacing_px":4}`),
	})

	require.True(t, res.OK, res.Message)
	assert.Equal(t, "small", store.Snapshot().TextSize)
	assert.Equal(t, 4, store.Snapshot().LineSpacingPx)
	assert.Equal(t, "80mm", store.Snapshot().PaperWidth)
	assert.Equal(t, model.StatusCompleted, conf.all()[0].Status)
}

type failingPersister struct{}

func (failingPersister) Save(model.Settings) error { return errors.New("disk full") }

func TestProcess_ConfigPersistFailure(t *testing.T) {
	store, err := settings.NewStore(model.DefaultSettings(), failingPersister{})
	require.NoError(t, err)
	conf := &fakeConfirmer{}
	p := New(&chanJobs{ch: make(chan model.WorkItem)}, store, &fakeSink{}, conf, discardLogger())

	res := p.Process(context.Background(), model.WorkItem{
		ID:      "cfg-disk",
		Kind:    model.JobKindConfig,
		Payload: json.RawMessage(`{"paper_width":"58mm"}`),
	})

	assert.False(t, res.OK)
	assert.Equal(t, "configuration applied but not saved: persist settings: disk full", res.Message)
	// the merged value is live even though it was not saved
	assert.Equal(t, "58mm", store.Snapshot().PaperWidth)

	sent := conf.all()
	require.Len(t, sent, 1)
	assert.Equal(t, model.StatusFailed, sent[0].Status)
	assert.Equal(t, res.Message, sent[0].Message)
}

func TestProcess_ConfigRejectedKeepsSettings(t *testing.T) {
	p, store, conf := newTestProcessor(t, &fakeSink{})

	res := p.Process(context.Background(), model.WorkItem{
		ID:      "cfg-bad",
		Kind:    model.JobKindConfig,
		Payload: json.RawMessage(`{"paper_width":"110mm"}`),
	})

	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "configuration not applied")
	assert.Equal(t, "80mm", store.Snapshot().PaperWidth)
	assert.Equal(t, model.StatusFailed, conf.all()[0].Status)
}

func TestServe_RecoversFromPanicAndContinues(t *testing.T) {
	sink := &fakeSink{panic: true}
	store, err := settings.NewStore(model.DefaultSettings(), nil)
	require.NoError(t, err)
	conf := &fakeConfirmer{}
	jobs := &chanJobs{ch: make(chan model.WorkItem)}

	var results []Result
	var mu sync.Mutex
	p := New(jobs, store, sink, conf, discardLogger(), WithObserver(func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	jobs.ch <- printItem("p1", model.PrintClient, orderJSON)
	jobs.ch <- model.WorkItem{ID: "p2", Kind: model.JobKindConfig, Payload: json.RawMessage(`{"line_spacing_px":2}`)}

	require.Eventually(t, func() bool { return len(conf.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	sent := conf.all()
	assert.Equal(t, model.StatusFailed, sent[0].Status)
	assert.Contains(t, sent[0].Message, "internal error: printer on fire")
	assert.Equal(t, model.StatusCompleted, sent[1].Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, results, 2)
}
