package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

const (
	// Margin is the blank border kept on every side, in pixels.
	Margin = 16
	// CutAllowance is appended below the last line so the cutter does not
	// slice through text.
	CutAllowance = 100
)

var paperWidths = map[string]int{
	"58mm": 384,
	"72mm": 512,
	"80mm": 576,
}

// PaperWidthPixels maps a paper width name to its printable dot count.
func PaperWidthPixels(name string) (int, error) {
	px, ok := paperWidths[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPaperWidth, name)
	}
	return px, nil
}

// Layout carries everything the engine needs besides the order itself.
type Layout struct {
	PaperWidth       string
	FontProfile      string
	LineSpacing      int
	Rotation         int
	StoreName        string
	Currency         string
	DecimalSeparator string
	Location         *time.Location
}

// LayoutFromSettings takes a snapshot of the rendering fields.
func LayoutFromSettings(s model.Settings) Layout {
	return Layout{
		PaperWidth:       s.PaperWidth,
		FontProfile:      s.TextSize,
		LineSpacing:      s.LineSpacingPx,
		Rotation:         s.RotationDegrees,
		StoreName:        s.StoreName,
		Currency:         s.CurrencySymbol,
		DecimalSeparator: s.DecimalSeparator,
		Location:         s.Location(),
	}
}

// Validate resolves the named fields and reports the first one that is unknown.
func (l Layout) Validate() error {
	if _, err := PaperWidthPixels(l.PaperWidth); err != nil {
		return err
	}
	if _, err := LookupProfile(l.FontProfile); err != nil {
		return err
	}
	if normalizeRotation(l.Rotation)%90 != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRotation, l.Rotation)
	}
	return nil
}
