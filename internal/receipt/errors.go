package receipt

import "errors"

var (
	ErrUnknownPaperWidth  = errors.New("unknown paper width")
	ErrUnknownFontProfile = errors.New("unknown font profile")
	ErrInvalidRotation    = errors.New("rotation must be a multiple of 90 degrees")
	ErrNoOrder            = errors.New("no order to render")
)
