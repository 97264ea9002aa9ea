package receipt

import (
	"fmt"
	"image"
)

// Rotate turns img clockwise by degrees, expanding the canvas so nothing is
// clipped. Only right angles are supported.
func Rotate(img *image.Gray, degrees int) (*image.Gray, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch normalizeRotation(degrees) {
	case 0:
		return img, nil
	case 90:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[x*dst.Stride+(h-1-y)] = img.Pix[y*img.Stride+x]
			}
		}
		return dst, nil
	case 180:
		dst := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[(h-1-y)*dst.Stride+(w-1-x)] = img.Pix[y*img.Stride+x]
			}
		}
		return dst, nil
	case 270:
		dst := image.NewGray(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[(w-1-x)*dst.Stride+y] = img.Pix[y*img.Stride+x]
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidRotation, degrees)
	}
}

func normalizeRotation(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}
