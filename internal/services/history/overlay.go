package history

import (
	"sort"
	"time"

	"github.com/BearBump/WipBox/internal/models"
)

// StatusHistory is one unit's external status records, newest first.
// A nil *StatusHistory resolves nothing.
type StatusHistory struct {
	events []models.HistoricalStatusEvent
}

func NewStatusHistory(events []*models.HistoricalStatusEvent) *StatusHistory {
	if len(events) == 0 {
		return nil
	}
	h := &StatusHistory{events: make([]models.HistoricalStatusEvent, 0, len(events))}
	for _, e := range events {
		if e != nil {
			h.events = append(h.events, *e)
		}
	}
	sort.SliceStable(h.events, func(i, j int) bool {
		return h.events[i].ExtractedAt.After(h.events[j].ExtractedAt)
	})
	return h
}

// Resolve returns the most recent status extracted at or before asOf.
func (h *StatusHistory) Resolve(asOf time.Time) (string, bool) {
	if h == nil {
		return "", false
	}
	for _, e := range h.events {
		if !e.ExtractedAt.After(asOf) {
			return e.Status, true
		}
	}
	return "", false
}

func (h *StatusHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.events)
}
