package tracking

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/detections"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/registry"
	"github.com/varasto-io/rfid-tracking/pkg/types"
)

// ActivityLog returns the detection history newest first, each entry
// classified as added, moved or detected by comparing it to the
// preceding detection of the same EPC.
//
// Classification always walks the full log: a detection just inside
// the requested date range must not be reported as "added" when the
// tag has earlier history outside the range. The from/to bounds are
// inclusive and apply to the detection date only.
func (s *service) ActivityLog(ctx context.Context, from, to *time.Time) ([]types.ActivityEntry, error) {
	all, err := s.detections.GetAllChronological(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.registry.GetItems(ctx)
	if err != nil {
		return nil, err
	}
	namesByEPC := lo.SliceToMap(items, func(i registry.TrackedItem) (string, string) { return i.EPC, i.Name })

	readersByID, portsByAntennaID, err := s.readerLookups(ctx)
	if err != nil {
		return nil, err
	}

	previous := map[string]detections.Detection{}
	entries := []types.ActivityEntry{}

	for _, d := range all {
		event := classify(d, previous)
		previous[d.EPC] = d

		if !inDateRange(d.DetectedAt, from, to) {
			continue
		}

		reader := readersByID[d.ReaderID]

		entries = append(entries, types.ActivityEntry{
			ID:         d.ID,
			Timestamp:  d.DetectedAt.Format(time.RFC3339),
			EPC:        d.EPC,
			ObjectName: namesByEPC[d.EPC],
			Reader:     reader.ReaderModel,
			Antenna:    antennaPort(d.AntennaID, portsByAntennaID),
			RSSI:       d.RSSI,
			Event:      event,
		})
	}

	return lo.Reverse(entries), nil
}

func classify(d detections.Detection, previous map[string]detections.Detection) string {
	prev, seen := previous[d.EPC]
	if !seen {
		return types.EventAdded
	}

	if prev.ReaderID != d.ReaderID || !equalAntenna(prev.AntennaID, d.AntennaID) {
		return types.EventMoved
	}

	return types.EventDetected
}

func equalAntenna(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func inDateRange(t time.Time, from, to *time.Time) bool {
	day := t.UTC().Truncate(24 * time.Hour)

	if from != nil && day.Before(from.UTC().Truncate(24*time.Hour)) {
		return false
	}
	if to != nil && day.After(to.UTC().Truncate(24*time.Hour)) {
		return false
	}

	return true
}
