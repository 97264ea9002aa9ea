package ingest

import "errors"

var (
	ErrUnexpectedStatus = errors.New("unexpected status code")
	ErrReadTimeout      = errors.New("stream read timeout")
	ErrStreamClosed     = errors.New("stream closed by origin")
	ErrMalformedFrame   = errors.New("malformed frame")
)
