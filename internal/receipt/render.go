// Package receipt turns an order into a print-ready grayscale raster.
// Rendering is pure: the same order and layout always produce the same
// pixels.
package receipt

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// Document is a rendered receipt.
type Document struct {
	Image *image.Gray
}

func (d *Document) Width() int  { return d.Image.Bounds().Dx() }
func (d *Document) Height() int { return d.Image.Bounds().Dy() }

// WritePNG encodes the raster as PNG.
func (d *Document) WritePNG(w io.Writer) error {
	return png.Encode(w, d.Image)
}

// PNG returns the raster encoded as PNG.
func (d *Document) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WritePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type measured struct {
	Line
	bounds fixed.Rectangle26_6
	width  int
	height int
}

// Render lays out one copy of order and returns the rotated raster.
func Render(order *model.OrderRecord, subtype model.PrintSubtype, l Layout) (*Document, error) {
	if order == nil {
		return nil, ErrNoOrder
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	width, _ := PaperWidthPixels(l.PaperWidth)
	profile, _ := LookupProfile(l.FontProfile)

	faces, err := newFaceSet(profile)
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	spacing := max(l.LineSpacing, 0)
	rows, height := measure(BuildLines(order, subtype, l), faces, spacing)

	// draw
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black)}
	y := Margin
	for _, r := range rows {
		var x int
		switch r.Align {
		case AlignCenter:
			x = (width - r.width) / 2
		case AlignRight:
			x = width - r.width - Margin
		default:
			x = Margin
		}
		d.Face = faces[r.Role]
		d.Dot = fixed.Point26_6{
			X: fixed.I(x) - r.bounds.Min.X,
			Y: fixed.I(y) - r.bounds.Min.Y,
		}
		d.DrawString(r.Text)
		y += r.height + spacing
	}

	rotated, err := Rotate(img, l.Rotation)
	if err != nil {
		return nil, err
	}
	return &Document{Image: rotated}, nil
}

// ContentHeight returns the unrotated canvas height Render would allocate.
func ContentHeight(order *model.OrderRecord, subtype model.PrintSubtype, l Layout) (int, error) {
	if order == nil {
		return 0, ErrNoOrder
	}
	if err := l.Validate(); err != nil {
		return 0, err
	}
	profile, _ := LookupProfile(l.FontProfile)
	faces, err := newFaceSet(profile)
	if err != nil {
		return 0, err
	}
	defer faces.Close()

	_, height := measure(BuildLines(order, subtype, l), faces, max(l.LineSpacing, 0))
	return height, nil
}

// measure is the first pass: ink bounds per line and the total canvas height.
func measure(lines []Line, faces faceSet, spacing int) ([]measured, int) {
	rows := make([]measured, len(lines))
	height := Margin
	for i, ln := range lines {
		b, _ := font.BoundString(faces[ln.Role], ln.Text)
		rows[i] = measured{
			Line:   ln,
			bounds: b,
			width:  (b.Max.X - b.Min.X).Ceil(),
			height: (b.Max.Y - b.Min.Y).Ceil(),
		}
		height += rows[i].height + spacing
	}
	return rows, height + Margin + CutAllowance
}
