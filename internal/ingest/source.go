package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

const (
	ChannelStream = "stream"
	ChannelPoll   = "poll"
)

// Origin tells a handler where an item came from.
type Origin struct {
	Channel  string
	Snapshot bool
}

// ItemHandler receives every element decoded by a channel.
type ItemHandler interface {
	HandleItem(ctx context.Context, origin Origin, raw json.RawMessage)
}

type ItemHandlerFunc func(ctx context.Context, origin Origin, raw json.RawMessage)

func (f ItemHandlerFunc) HandleItem(ctx context.Context, origin Origin, raw json.RawMessage) {
	f(ctx, origin, raw)
}

// Source names one event vocabulary: "<prefix>:snapshot" carries an array
// under ListKey, "<prefix>:insert" or "<prefix>:enqueue" a single element
// under ItemKey. Anything else only proves liveness.
type Source struct {
	Name    string
	ListKey string
	ItemKey string
}

var (
	CommandsSource = Source{Name: "commands", ListKey: "commands", ItemKey: "command"}
	OrdersSource   = Source{Name: "orders", ListKey: "orders", ItemKey: "order"}
)

type EventClass int

const (
	EventLiveness EventClass = iota
	EventSnapshot
	EventItem
)

func classify(event string) EventClass {
	suffix := event
	if i := strings.LastIndex(event, ":"); i >= 0 {
		suffix = event[i+1:]
	}
	switch suffix {
	case "snapshot":
		return EventSnapshot
	case "insert", "enqueue":
		return EventItem
	default:
		return EventLiveness
	}
}

// Dispatch decodes one event payload and hands its elements to h.
func (s Source) Dispatch(ctx context.Context, data []byte, channel string, h ItemHandler) (EventClass, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return EventLiveness, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	var event string
	if raw, ok := payload["event"]; ok {
		if err := json.Unmarshal(raw, &event); err != nil {
			return EventLiveness, fmt.Errorf("%w: event: %v", ErrMalformedFrame, err)
		}
	}

	class := classify(event)
	switch class {
	case EventSnapshot:
		items, err := s.List(payload)
		if err != nil {
			return class, err
		}
		for _, item := range items {
			h.HandleItem(ctx, Origin{Channel: channel, Snapshot: true}, item)
		}
	case EventItem:
		raw, ok := payload[s.ItemKey]
		if !ok || isNull(raw) {
			return class, fmt.Errorf("%w: %s without %q", ErrMalformedFrame, event, s.ItemKey)
		}
		h.HandleItem(ctx, Origin{Channel: channel}, raw)
	}
	return class, nil
}

// List extracts the array under ListKey. A missing key is an empty list.
func (s Source) List(payload map[string]json.RawMessage) ([]json.RawMessage, error) {
	raw, ok := payload[s.ListKey]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, s.ListKey, err)
	}
	return items, nil
}

// Endpoint joins base and path and adds the role and pin query parameters.
func Endpoint(base, path, role, pin string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("role", role)
	q.Set("pin", pin)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
