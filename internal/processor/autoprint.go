package processor

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/Riboost-Studio/perfect-menu-print-agent/internal/model"
)

// SettingsSource hands out immutable settings snapshots.
type SettingsSource interface {
	Snapshot() model.Settings
}

// AutoPrint plans print jobs for new orders from the live toggles.
type AutoPrint struct {
	settings SettingsSource
}

func NewAutoPrint(settings SettingsSource) *AutoPrint {
	return &AutoPrint{settings: settings}
}

func (a *AutoPrint) Plan(orderID model.ID, order json.RawMessage, now time.Time) []model.WorkItem {
	s := a.settings.Snapshot()
	return AutoPrintJobs(orderID, order, s.AutoPrintClient, s.AutoPrintKitchen, now)
}

// AutoPrintID is the derived job id for one copy of an order.
func AutoPrintID(orderID model.ID, subtype model.PrintSubtype) string {
	return fmt.Sprintf("%s_%s_auto", orderID, subtype)
}

// AutoPrintJobs materializes zero, one or two print jobs, client copy first.
func AutoPrintJobs(orderID model.ID, order json.RawMessage, client, kitchen bool, now time.Time) []model.WorkItem {
	var jobs []model.WorkItem
	for _, c := range []struct {
		enabled bool
		subtype model.PrintSubtype
	}{
		{client, model.PrintClient},
		{kitchen, model.PrintKitchen},
	} {
		if !c.enabled {
			continue
		}
		jobs = append(jobs, model.WorkItem{
			ID:           AutoPrintID(orderID, c.subtype),
			Kind:         model.JobKindPrint,
			PrintSubtype: c.subtype,
			Payload:      order,
			ReceivedAt:   now,
		})
	}
	return jobs
}
