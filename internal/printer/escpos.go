package printer

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/receipt"
)

// --- ESC/POS Raster ---

var (
	cmdInit     = []byte{0x1B, 0x40}             // ESC @
	cmdFeed     = []byte{0x1B, 0x64, 0x03}       // ESC d 3
	cmdPartCut  = []byte{0x1D, 0x56, 0x41, 0x00} // GS V A 0
	rasterBegin = []byte{0x1D, 0x76, 0x30, 0x00} // GS v 0, normal density
)

// EncodeRaster converts img to a GS v 0 raster block. Pixels darker than
// mid-gray become dots; the width is padded with white up to a whole byte.
func EncodeRaster(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	rowBytes := (width + 7) / 8
	raster := make([]byte, rowBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			if gray.Y < 0x80 {
				raster[y*rowBytes+x/8] |= 1 << (7 - uint(x%8))
			}
		}
	}

	header := append([]byte{}, rasterBegin...)
	header = append(header,
		byte(rowBytes), byte(rowBytes>>8),
		byte(height), byte(height>>8),
	)
	return append(header, raster...)
}

// BuildJob wraps the raster with printer init, feed and partial cut.
func BuildJob(img image.Image) []byte {
	var job []byte
	job = append(job, cmdInit...)
	job = append(job, EncodeRaster(img)...)
	job = append(job, cmdFeed...)
	job = append(job, cmdPartCut...)
	return job
}

// resizeToWidth scales src with nearest-neighbour sampling.
func resizeToWidth(src image.Image, targetWidth int) *image.Gray {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	scale := float64(targetWidth) / float64(w)
	newHeight := max(int(float64(h)*scale), 1)

	dst := image.NewGray(image.Rect(0, 0, targetWidth, newHeight))
	for y := 0; y < newHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx := int(float64(x) / scale)
			sy := int(float64(y) / scale)
			dst.Set(x, y, src.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return dst
}

// --- Network Sink ---

// TCPSink streams ESC/POS jobs to a raw socket printer (port 9100).
type TCPSink struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// Settle is how long the connection stays open after the write so the
	// printer can drain its buffer.
	Settle time.Duration
	Logger *slog.Logger
}

func NewTCPSink(logger *slog.Logger) *TCPSink {
	return &TCPSink{
		DialTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		Settle:       500 * time.Millisecond,
		Logger:       logger,
	}
}

func (s *TCPSink) Print(ctx context.Context, p model.Printer, doc *receipt.Document, title string) error {
	if p.IP == "" {
		return fmt.Errorf("%w: %s has no address", ErrNoPrinter, p.Name)
	}
	port := p.Port
	if port == 0 {
		port = 9100
	}

	var img image.Image = doc.Image
	if p.MaxDots > 0 && doc.Width() > p.MaxDots {
		img = resizeToWidth(doc.Image, p.MaxDots)
	}
	job := BuildJob(img)

	addr := net.JoinHostPort(p.IP, strconv.Itoa(port))
	s.Logger.Debug("sending job", "printer", p.Name, "bytes", len(job), "addr", addr, "title", title)

	d := net.Dialer{Timeout: s.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPrinterUnreachable, err)
	}
	defer conn.Close()

	if s.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
	}
	if _, err := conn.Write(job); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	if s.Settle > 0 {
		t := time.NewTimer(s.Settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
