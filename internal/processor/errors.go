package processor

import "errors"

var (
	ErrMissingOrder  = errors.New("order data missing")
	ErrMissingConfig = errors.New("configuration missing")
	ErrUnknownKind   = errors.New("unknown command type")
)
