package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// ID is an identifier that the origin sends either as a string or a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(str))
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("invalid id %s", s)
		}
		*id = ID(s)
	}
	return nil
}

func (id ID) String() string { return string(id) }
func (id ID) IsZero() bool   { return strings.TrimSpace(string(id)) == "" }

// --- Order Structures ---

type DeliveryKind int

const (
	DeliveryOther DeliveryKind = iota
	DeliveryOnPremises
	DeliveryToAddress
)

// DeliveryOption keeps the origin's label next to the parsed kind so the
// receipt can print it verbatim.
type DeliveryOption struct {
	Kind        DeliveryKind
	Label       string
	TableNumber string
	Address     string
}

type Complement struct {
	Name string `json:"name"`
}

type LineItem struct {
	Quantity    int
	Name        string
	Subtotal    decimal.Decimal
	Complements []Complement
	Note        string
}

// OrderRecord is the order as the renderer sees it. It is never mutated
// after decoding.
type OrderRecord struct {
	OrderID       ID
	CustomerName  string
	Delivery      DeliveryOption
	SentAt        *time.Time
	SentAtRaw     string
	Items         []LineItem
	Total         decimal.Decimal
	PaymentMethod string
	CashGiven     decimal.NullDecimal
}

// Change is the cash to hand back, never negative.
func (o OrderRecord) Change() decimal.Decimal {
	if !o.CashGiven.Valid {
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, o.CashGiven.Decimal.Sub(o.Total))
}

type deliveryWire struct {
	Type        string `json:"type"`
	TableNumber ID     `json:"tableNumber"`
	Address     string `json:"address"`
}

type itemWire struct {
	Name           string          `json:"name"`
	Quantity       json.RawMessage `json:"quantity"`
	TotalItemPrice json.RawMessage `json:"totalItemPrice"`
	Complements    []Complement    `json:"complements"`
	Notes          string          `json:"notes"`
	Observations   string          `json:"observations"`
}

type orderWire struct {
	ID             ID              `json:"id"`
	OrderID        ID              `json:"orderId"`
	CustomerName   string          `json:"customerName"`
	DeliveryOption deliveryWire    `json:"deliveryOption"`
	SentAt         json.RawMessage `json:"sentAt"`
	Items          []itemWire      `json:"items"`
	Total          json.RawMessage `json:"total"`
	PaymentMethod  string          `json:"paymentMethod"`
	CashGiven      json.RawMessage `json:"cashGiven"`
	TrocoPara      json.RawMessage `json:"trocoPara"`
}

func (o *OrderRecord) UnmarshalJSON(b []byte) error {
	var w orderWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	rec := OrderRecord{
		OrderID:       w.OrderID,
		CustomerName:  w.CustomerName,
		Delivery:      parseDelivery(w.DeliveryOption),
		PaymentMethod: w.PaymentMethod,
	}
	if rec.OrderID.IsZero() {
		rec.OrderID = w.ID
	}

	rec.SentAt, rec.SentAtRaw = parseSentAt(w.SentAt)

	total, _, err := parseAmount(w.Total)
	if err != nil {
		return fmt.Errorf("total: %w", err)
	}
	rec.Total = total

	cashRaw := w.CashGiven
	if len(cashRaw) == 0 {
		cashRaw = w.TrocoPara
	}
	cash, ok, err := parseAmount(cashRaw)
	if err != nil {
		return fmt.Errorf("cash given: %w", err)
	}
	if ok && !cash.IsZero() {
		rec.CashGiven = decimal.NewNullDecimal(cash)
	}

	rec.Items = make([]LineItem, 0, len(w.Items))
	for i, iw := range w.Items {
		item := LineItem{
			Quantity:    1,
			Name:        iw.Name,
			Complements: iw.Complements,
			Note:        iw.Notes,
		}
		if q, ok, err := parseAmount(iw.Quantity); err == nil && ok {
			item.Quantity = int(q.Round(0).IntPart())
		}
		if item.Note == "" {
			item.Note = iw.Observations
		}
		if item.Subtotal, _, err = parseAmount(iw.TotalItemPrice); err != nil {
			return fmt.Errorf("item %d price: %w", i, err)
		}
		rec.Items = append(rec.Items, item)
	}

	*o = rec
	return nil
}

// ParseOrderID extracts just the order identifier, preferring orderId over id.
func ParseOrderID(raw json.RawMessage) (ID, error) {
	var w struct {
		ID      ID `json:"id"`
		OrderID ID `json:"orderId"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return "", err
	}
	if !w.OrderID.IsZero() {
		return w.OrderID, nil
	}
	if !w.ID.IsZero() {
		return w.ID, nil
	}
	return "", ErrMissingID
}

func parseDelivery(w deliveryWire) DeliveryOption {
	d := DeliveryOption{
		Label:       strings.TrimSpace(w.Type),
		TableNumber: w.TableNumber.String(),
		Address:     w.Address,
	}
	switch strings.ToLower(d.Label) {
	case "no local", "dine-in", "dine_in", "on_premises":
		d.Kind = DeliveryOnPremises
	case "entrega", "delivery":
		d.Kind = DeliveryToAddress
	default:
		d.Kind = DeliveryOther
	}
	return d
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e11

// parseSentAt never fails: a string that matches no layout is kept raw for
// display, a number is an epoch in seconds or milliseconds, anything else is
// dropped.
func parseSentAt(raw json.RawMessage) (*time.Time, string) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, ""
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil, ""
		}
		if t, ok := parseTimestamp(s); ok {
			return &t, ""
		}
		return nil, s
	}
	n, err := decimal.NewFromString(s)
	if err != nil {
		return nil, ""
	}
	var t time.Time
	if n.Abs().GreaterThanOrEqual(decimal.NewFromFloat(epochMillisThreshold)) {
		t = time.UnixMilli(n.IntPart()).UTC()
	} else {
		t = time.Unix(n.IntPart(), 0).UTC()
	}
	return &t, ""
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount accepts a JSON number, a quoted number, an empty string or null.
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return decimal.Zero, false, nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, false, nil
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}
