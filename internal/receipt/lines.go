package receipt

import (
	"fmt"
	"strings"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Line is one row of the receipt before measurement.
type Line struct {
	Align Align
	Text  string
	Role  Role
}

const (
	dateLayout    = "02/01/2006 15:04"
	notAvailable  = "N/A"
	separatorRune = "-"
	separatorLen  = 32
)

var separator = strings.Repeat(separatorRune, separatorLen)

// BuildLines lays out the receipt content for one copy of an order. Kitchen
// copies carry no prices.
func BuildLines(order *model.OrderRecord, subtype model.PrintSubtype, l Layout) []Line {
	kitchen := subtype == model.PrintKitchen

	lines := []Line{
		{AlignCenter, orDefault(l.StoreName, "Perfect Menu"), RoleTitle},
		{AlignCenter, separator, RoleBody},
	}
	if kitchen {
		lines = append(lines, Line{AlignCenter, "--- KITCHEN TICKET ---", RoleEmphasis})
	} else {
		lines = append(lines, Line{AlignCenter, "--- CUSTOMER RECEIPT ---", RoleEmphasis})
	}
	lines = append(lines,
		Line{AlignCenter, separator, RoleBody},
		Line{AlignLeft, "Order #: " + orDefault(order.OrderID.String(), notAvailable), RoleBody},
		Line{AlignLeft, "Customer: " + orDefault(order.CustomerName, notAvailable), RoleBody},
		Line{AlignLeft, "Type: " + orDefault(order.Delivery.Label, notAvailable), RoleBody},
	)

	switch order.Delivery.Kind {
	case model.DeliveryOnPremises:
		lines = append(lines, Line{AlignLeft, "Table: " + orDefault(order.Delivery.TableNumber, notAvailable), RoleBody})
	case model.DeliveryToAddress:
		lines = append(lines, Line{AlignLeft, "Address: " + orDefault(order.Delivery.Address, notAvailable), RoleBody})
	}

	switch {
	case order.SentAt != nil:
		t := *order.SentAt
		if l.Location != nil {
			t = t.In(l.Location)
		}
		lines = append(lines, Line{AlignLeft, "Date: " + t.Format(dateLayout), RoleBody})
	case order.SentAtRaw != "":
		lines = append(lines, Line{AlignLeft, "Date: " + order.SentAtRaw, RoleBody})
	}

	lines = append(lines,
		Line{AlignCenter, separator, RoleBody},
		Line{AlignLeft, "ITEMS:", RoleHeader},
	)

	for _, item := range order.Items {
		lines = append(lines, Line{AlignLeft, fmt.Sprintf("%dx %s", item.Quantity, orDefault(item.Name, "Item")), RoleEmphasis})
		for _, c := range item.Complements {
			lines = append(lines, Line{AlignLeft, "  - " + orDefault(c.Name, "Extra"), RoleBody})
		}
		if item.Note != "" {
			lines = append(lines, Line{AlignLeft, "  NOTE: " + item.Note, RoleBody})
		}
		if !kitchen {
			lines = append(lines, Line{AlignRight, "Subtotal: " + FormatMoney(item.Subtotal, l.Currency, l.DecimalSeparator), RoleBody})
		}
	}

	lines = append(lines, Line{AlignCenter, separator, RoleBody})

	if !kitchen {
		lines = append(lines,
			Line{AlignRight, "TOTAL: " + FormatMoney(order.Total, l.Currency, l.DecimalSeparator), RoleTotal},
			Line{AlignLeft, "Payment: " + orDefault(order.PaymentMethod, notAvailable), RoleBody},
		)
		if order.CashGiven.Valid {
			lines = append(lines,
				Line{AlignLeft, "Cash given: " + FormatMoney(order.CashGiven.Decimal, l.Currency, l.DecimalSeparator), RoleBody},
				Line{AlignLeft, "Change: " + FormatMoney(order.Change(), l.Currency, l.DecimalSeparator), RoleBody},
			)
		}
	}

	lines = append(lines, Line{AlignCenter, separator, RoleBody})
	if kitchen {
		lines = append(lines, Line{AlignCenter, "Have a good shift!", RoleBody})
	} else {
		lines = append(lines, Line{AlignCenter, "Thank you for your order!", RoleBody})
	}
	return lines
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
