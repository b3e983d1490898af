package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/detections"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/registry"
	"github.com/varasto-io/rfid-tracking/pkg/types"
)

const (
	dashboardWindow = 24 * time.Hour
	onlineWindow    = 5 * time.Minute

	activityTrailLimit = 20
	timelineLimit      = 50

	antennaNominalPower = 30
)

// DashboardLiveTags returns every tracked tag seen within the last 24
// hours, with its classified status and a short newest-first activity
// trail. Tags without detections in the window are omitted.
func (s *service) DashboardLiveTags(ctx context.Context) ([]types.DashboardTag, error) {
	now := s.now().UTC()

	items, err := s.registry.GetItems(ctx)
	if err != nil {
		return nil, err
	}
	itemsByEPC := lo.KeyBy(items, func(i registry.TrackedItem) string { return i.EPC })

	recent, err := s.detections.GetSince(ctx, now.Add(-dashboardWindow))
	if err != nil {
		return nil, err
	}

	readersByID, portsByAntennaID, err := s.readerLookups(ctx)
	if err != nil {
		return nil, err
	}

	tags := map[string]*types.DashboardTag{}

	// the scan is newest first, so the first detection seen for an
	// EPC is its most recent one
	for _, d := range recent {
		item, ok := itemsByEPC[d.EPC]
		if !ok {
			continue
		}

		reader := readersByID[d.ReaderID]
		localTime := d.DetectedAt.In(s.location).Format(time.RFC3339)

		tag, ok := tags[d.EPC]
		if !ok {
			tag = &types.DashboardTag{
				ID:         d.EPC,
				EPC:        d.EPC,
				ObjectName: item.Name,
				Reader:     reader.ReaderModel,
				Antenna:    antennaPort(d.AntennaID, portsByAntennaID),
				RSSI:       d.RSSI,
				MAC:        reader.MACAddress,
				LastSeen:   localTime,
				Status:     ComputeStatus(d.DetectedAt, now),
				Activity:   []types.TrailEntry{},
			}
			tags[d.EPC] = tag
		}

		if len(tag.Activity) < activityTrailLimit {
			tag.Activity = append(tag.Activity, types.TrailEntry{
				Timestamp: localTime,
				Reader:    reader.ReaderModel,
				Antenna:   antennaPort(d.AntennaID, portsByAntennaID),
				RSSI:      d.RSSI,
			})
		}
	}

	result := lo.MapToSlice(tags, func(_ string, t *types.DashboardTag) types.DashboardTag { return *t })
	sort.Slice(result, func(i, j int) bool { return result[i].EPC < result[j].EPC })

	return result, nil
}

// SearchItem resolves a free text query to a single tracked item and
// returns its details together with a newest-first movement timeline.
func (s *service) SearchItem(ctx context.Context, query string) (types.ItemDetails, error) {
	item, err := s.registry.FindItem(ctx, query)
	if err != nil {
		if errors.Is(err, registry.ErrItemNotFound) {
			return types.ItemDetails{}, ErrItemNotFound
		}
		return types.ItemDetails{}, err
	}

	history, err := s.detections.GetByEPC(ctx, item.EPC, timelineLimit)
	if err != nil {
		return types.ItemDetails{}, err
	}

	readersByID, portsByAntennaID, err := s.readerLookups(ctx)
	if err != nil {
		return types.ItemDetails{}, err
	}

	details := types.ItemDetails{
		EPC:               item.EPC,
		ObjectName:        item.Name,
		ResponsiblePerson: item.ResponsiblePerson,
		Timeline:          []types.TimelineEntry{},
	}

	if len(history) > 0 {
		latest := history[0]
		reader := readersByID[latest.ReaderID]

		location := reader.Location
		if location == "" {
			location = "Unknown"
		}
		details.CurrentLocation = strings.Trim(fmt.Sprintf("%s - %s", location, reader.ReaderModel), " -")
		details.Status = ComputeStatus(latest.DetectedAt, s.now().UTC())
	} else {
		details.Status = types.StatusMissing
		details.CurrentLocation = item.StorageLocation
		if details.CurrentLocation == "" {
			details.CurrentLocation = "Unknown"
		}
	}

	for _, d := range history {
		reader := readersByID[d.ReaderID]
		details.Timeline = append(details.Timeline, types.TimelineEntry{
			Timestamp: d.DetectedAt.In(s.location).Format(time.RFC3339),
			Location:  reader.Location,
			Reader:    reader.ReaderModel,
			Antenna:   antennaPort(d.AntennaID, portsByAntennaID),
		})
	}

	return details, nil
}

// ReaderStatus summarizes the health of every registered reader,
// ordered by reader id.
func (s *service) ReaderStatus(ctx context.Context) ([]types.ReaderStatus, error) {
	now := s.now().UTC()
	statsCutoff := now.Add(-dashboardWindow)

	readers, err := s.registry.GetReaders(ctx)
	if err != nil {
		return nil, err
	}

	result := []types.ReaderStatus{}

	for _, r := range readers {
		status := "offline"
		latest, err := s.detections.GetLatestByReader(ctx, r.ID)
		if err != nil && !errors.Is(err, detections.ErrDetectionNotFound) {
			return nil, err
		}
		if err == nil && !latest.DetectedAt.Before(now.Add(-onlineWindow)) {
			status = "online"
		}

		total, err := s.detections.CountByReaderSince(ctx, r.ID, statsCutoff)
		if err != nil {
			return nil, err
		}

		antennas := []types.AntennaStatus{}
		for _, a := range r.Antennas {
			count, err := s.detections.CountByAntennaSince(ctx, r.ID, a.ID, statsCutoff)
			if err != nil {
				return nil, err
			}

			antennaStatus := types.AntennaStatus{
				Number:       a.PortNumber,
				Status:       "inactive",
				TagsDetected: count,
			}
			if count > 0 {
				antennaStatus.Status = "active"
				antennaStatus.Power = antennaNominalPower
			}

			antennas = append(antennas, antennaStatus)
		}

		name := r.Location
		if name == "" {
			name = r.ReaderModel
		}
		if name == "" {
			name = fmt.Sprintf("Reader-%d", r.ID)
		}

		result = append(result, types.ReaderStatus{
			ID:                fmt.Sprintf("%d", r.ID),
			Name:              name,
			Model:             r.ReaderModel,
			Location:          r.Location,
			Status:            status,
			IPAddress:         r.IPAddress,
			TotalTagsDetected: total,
			Uptime:            uptime(r.InstallationDate, now),
			Antennas:          antennas,
		})
	}

	return result, nil
}

// uptime reports whole calendar days since installation, so a reader
// installed yesterday evening already counts one day.
func uptime(installationDate *time.Time, now time.Time) string {
	if installationDate == nil {
		return "Unknown"
	}

	days := int(midnightOf(now).Sub(midnightOf(*installationDate)).Hours() / 24)
	if days <= 0 {
		return "Less than 1 day"
	}

	return fmt.Sprintf("%d days", days)
}

func midnightOf(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
