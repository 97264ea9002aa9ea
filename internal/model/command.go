package model

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrMissingID is returned for wire items that carry no usable identifier.
var ErrMissingID = errors.New("missing identifier")

type JobKind string

const (
	JobKindPrint  JobKind = "print"
	JobKindConfig JobKind = "config"
)

type PrintSubtype string

const (
	PrintClient  PrintSubtype = "client"
	PrintKitchen PrintSubtype = "kitchen"
)

// ParsePrintSubtype defaults to the client copy for anything but "kitchen".
func ParsePrintSubtype(s string) PrintSubtype {
	if strings.EqualFold(strings.TrimSpace(s), string(PrintKitchen)) {
		return PrintKitchen
	}
	return PrintClient
}

// --- Wire Structures ---

// Command is a print command as delivered by the stream and the queue endpoint.
type Command struct {
	CommandID     ID              `json:"commandId"`
	Type          string          `json:"type"`
	PrintType     string          `json:"printType,omitempty"`
	OrderData     json.RawMessage `json:"orderData,omitempty"`
	Config        json.RawMessage `json:"config,omitempty"`
	PrinterConfig json.RawMessage `json:"printerConfig,omitempty"`
	Timestamp     json.RawMessage `json:"timestamp,omitempty"`
}

// WorkItem is the unit flowing through the job queue.
type WorkItem struct {
	ID            string
	Kind          JobKind
	PrintSubtype  PrintSubtype
	Payload       json.RawMessage
	PrinterConfig json.RawMessage
	ReceivedAt    time.Time
}

// WorkItem converts the wire command. The payload is orderData for print
// commands and config for config commands.
func (c Command) WorkItem(now time.Time) (WorkItem, error) {
	if c.CommandID.IsZero() {
		return WorkItem{}, ErrMissingID
	}
	item := WorkItem{
		ID:         c.CommandID.String(),
		Kind:       JobKind(strings.TrimSpace(c.Type)),
		ReceivedAt: now,
	}
	switch item.Kind {
	case JobKindPrint:
		item.PrintSubtype = ParsePrintSubtype(c.PrintType)
		item.Payload = nonNull(c.OrderData)
		item.PrinterConfig = nonNull(c.PrinterConfig)
	case JobKindConfig:
		item.Payload = nonNull(c.Config)
	}
	return item, nil
}

// Order decodes the print payload. A nil order means the payload was absent.
func (w WorkItem) Order() (*OrderRecord, error) {
	if len(w.Payload) == 0 {
		return nil, nil
	}
	var order OrderRecord
	if err := json.Unmarshal(w.Payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Overrides decodes a key/value override map from raw.
func Overrides(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return raw
}
