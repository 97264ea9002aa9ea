// Package printer delivers rendered receipts to output devices.
package printer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/metrics"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
)

const (
	DriverESCPOS = "escpos"
	DriverFile   = "file"
)

var (
	ErrNoPrinter          = errors.New("no printer configured")
	ErrPrinterUnreachable = errors.New("printer unreachable")
	ErrUnknownDriver      = errors.New("unknown printer driver")
)

// Sink prints one document. Implementations must honour ctx.
type Sink interface {
	Print(ctx context.Context, target model.Printer, doc *receipt.Document, title string) error
}

// Mux routes each document to the sink registered for the target's driver.
type Mux struct {
	sinks  map[string]Sink
	logger *slog.Logger
}

func NewMux(logger *slog.Logger) *Mux {
	return &Mux{sinks: make(map[string]Sink), logger: logger}
}

// Handle registers s for driver.
func (m *Mux) Handle(driver string, s Sink) *Mux {
	m.sinks[strings.ToLower(driver)] = s
	return m
}

func (m *Mux) Print(ctx context.Context, target model.Printer, doc *receipt.Document, title string) error {
	if strings.TrimSpace(target.Name) == "" {
		return ErrNoPrinter
	}
	driver := strings.ToLower(target.Driver)
	if driver == "" {
		driver = DriverESCPOS
	}
	s, ok := m.sinks[driver]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, target.Driver)
	}

	start := time.Now()
	err := s.Print(ctx, target, doc, title)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.SinkDuration.WithLabelValues(driver, result).Observe(time.Since(start).Seconds())

	m.logger.Info("document handed to printer",
		slog.String("printer", target.Name),
		slog.String("driver", driver),
		slog.String("title", title),
		slog.Any("job_id", ctx.Value(model.ContextJobID)),
		slog.Any("attempt_id", ctx.Value(model.ContextAttemptID)),
		slog.Any("subtype", ctx.Value(model.ContextSubtype)),
		slog.Bool("ok", err == nil),
	)
	return err
}
