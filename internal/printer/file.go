package printer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileSink writes every document as a PNG into the target's output directory.
type FileSink struct{}

func (FileSink) Print(ctx context.Context, p model.Printer, doc *receipt.Document, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.OutputDir == "" {
		return fmt.Errorf("%w: %s has no output directory", ErrNoPrinter, p.Name)
	}
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return err
	}

	name := title
	if id, ok := ctx.Value(model.ContextJobID).(string); ok && id != "" {
		name = id
	}
	path := filepath.Join(p.OutputDir, FileName(name))

	data, err := doc.PNG()
	if err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// FileName turns an arbitrary label into a safe PNG file name.
func FileName(label string) string {
	clean := strings.Trim(unsafeName.ReplaceAllString(label, "_"), "_")
	if clean == "" {
		clean = "receipt"
	}
	return clean + ".png"
}
