package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/notifications"
	"github.com/varasto-io/rfid-tracking/internal/pkg/application/webevents"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/detections"
	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database/registry"
	"github.com/varasto-io/rfid-tracking/pkg/types"
)

var ErrUnknownReader = fmt.Errorf("unknown reader")
var ErrInvalidBatch = fmt.Errorf("invalid read batch")
var ErrItemNotFound = fmt.Errorf("item not found")

type Tracking interface {
	Ingest(ctx context.Context, batch types.ReadBatch) (types.IngestResult, error)
	LiveSummary(ctx context.Context, window time.Duration) ([]types.DetectionSummary, error)

	DashboardLiveTags(ctx context.Context) ([]types.DashboardTag, error)
	SearchItem(ctx context.Context, query string) (types.ItemDetails, error)
	ReaderStatus(ctx context.Context) ([]types.ReaderStatus, error)
	ActivityLog(ctx context.Context, from, to *time.Time) ([]types.ActivityEntry, error)

	ClearDetections(ctx context.Context) error
}

type service struct {
	registry   registry.Repository
	detections detections.Repository
	messenger  messaging.MsgContext
	notifier   notifications.Sender
	webEvents  webevents.WebEvents

	location *time.Location
	now      func() time.Time
}

func New(r registry.Repository, d detections.Repository, m messaging.MsgContext, n notifications.Sender, we webevents.WebEvents, cfg *Config) (Tracking, error) {
	loc, err := time.LoadLocation(cfg.Timezone())
	if err != nil {
		return nil, fmt.Errorf("unknown display timezone %s: %w", cfg.Timezone(), err)
	}

	return &service{
		registry:   r,
		detections: d,
		messenger:  m,
		notifier:   n,
		webEvents:  we,
		location:   loc,
		now:        time.Now,
	}, nil
}

// Ingest validates a batch of tag reads from one reader, drops reads
// for EPCs outside the tracked item catalog, and appends the rest to
// the detection log. A tag seen again inside the dedup window is
// neither saved nor reported as ignored.
func (s *service) Ingest(ctx context.Context, batch types.ReadBatch) (types.IngestResult, error) {
	log := logging.GetFromContext(ctx)

	if batch.MACAddress == "" || len(batch.TagReads) == 0 {
		return types.IngestResult{}, ErrInvalidBatch
	}

	reader, err := s.registry.GetReaderByMAC(ctx, batch.MACAddress)
	if err != nil {
		if errors.Is(err, registry.ErrReaderNotFound) {
			return types.IngestResult{}, ErrUnknownReader
		}
		return types.IngestResult{}, err
	}

	tracked, err := s.registry.GetTrackedEPCs(ctx)
	if err != nil {
		return types.IngestResult{}, err
	}

	result := types.IngestResult{
		BatchID:     uuid.NewString(),
		SavedEPCs:   []string{},
		IgnoredEPCs: []string{},
	}

	for _, tag := range batch.TagReads {
		if _, ok := tracked[tag.EPC]; !ok {
			result.IgnoredEPCs = append(result.IgnoredEPCs, tag.EPC)
			continue
		}

		antenna, err := s.registry.GetAntenna(ctx, reader.ID, tag.AntennaPort)
		if err != nil {
			if errors.Is(err, registry.ErrAntennaNotFound) {
				// soft failure: skip this read, keep the batch going
				log.Warn("no antenna registered for port", "mac", batch.MACAddress, "port", tag.AntennaPort, "epc", tag.EPC)
				continue
			}
			return types.IngestResult{}, err
		}

		rssi := tag.PeakRSSI
		antennaID := antenna.ID

		detection := &detections.Detection{
			EPC:        tag.EPC,
			ReaderID:   reader.ID,
			AntennaID:  &antennaID,
			RSSI:       &rssi,
			DetectedAt: s.now().UTC(),
		}

		err = s.detections.Add(ctx, detection)
		if err != nil {
			if errors.Is(err, detections.ErrDuplicateDetection) {
				continue
			}
			return types.IngestResult{}, err
		}

		result.SavedEPCs = append(result.SavedEPCs, tag.EPC)

		s.publishDetectionRecorded(ctx, result.BatchID, reader, antenna, detection)
	}

	log.Info("processed read batch",
		"batch_id", result.BatchID,
		"mac", batch.MACAddress,
		"saved", len(result.SavedEPCs),
		"ignored", len(result.IgnoredEPCs))

	return result, nil
}

func (s *service) LiveSummary(ctx context.Context, window time.Duration) ([]types.DetectionSummary, error) {
	tracked, err := s.registry.GetTrackedEPCs(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.detections.GetSince(ctx, s.now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}

	readersByID, portsByAntennaID, err := s.readerLookups(ctx)
	if err != nil {
		return nil, err
	}

	summaries := []types.DetectionSummary{}

	for _, d := range recent {
		if _, ok := tracked[d.EPC]; !ok {
			continue
		}

		reader := readersByID[d.ReaderID]

		summaries = append(summaries, types.DetectionSummary{
			EPC:       d.EPC,
			Reader:    reader.ReaderModel,
			Antenna:   antennaPort(d.AntennaID, portsByAntennaID),
			RSSI:      d.RSSI,
			MAC:       reader.MACAddress,
			LocalTime: d.DetectedAt.In(s.location),
		})
	}

	return summaries, nil
}

func (s *service) ClearDetections(ctx context.Context) error {
	err := s.detections.DeleteAll(ctx)
	if err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)

	cleared := types.DetectionsCleared{Timestamp: s.now().UTC()}

	err = s.messenger.PublishOnTopic(ctx, &cleared)
	if err != nil {
		log.Error("could not publish detections cleared event", "err", err.Error())
	}

	err = s.webEvents.PublishDetectionsCleared(cleared)
	if err != nil {
		log.Error("could not publish web event", "err", err.Error())
	}

	return nil
}

func (s *service) publishDetectionRecorded(ctx context.Context, batchID string, reader registry.Reader, antenna registry.Antenna, detection *detections.Detection) {
	log := logging.GetFromContext(ctx)

	port := antenna.PortNumber
	event := types.DetectionRecorded{
		BatchID:     batchID,
		EPC:         detection.EPC,
		Reader:      reader.ReaderModel,
		AntennaPort: &port,
		RSSI:        detection.RSSI,
		Timestamp:   detection.DetectedAt,
	}

	err := s.messenger.PublishOnTopic(ctx, &event)
	if err != nil {
		log.Error("could not publish detection on topic", "epc", detection.EPC, "err", err.Error())
	}

	err = s.webEvents.PublishDetectionRecorded(event)
	if err != nil {
		log.Error("could not publish web event", "epc", detection.EPC, "err", err.Error())
	}

	err = s.notifier.Send(ctx, event)
	if err != nil {
		log.Error("could not notify subscribers", "epc", detection.EPC, "err", err.Error())
	}
}

func (s *service) readerLookups(ctx context.Context) (map[uint]registry.Reader, map[uint]int, error) {
	readers, err := s.registry.GetReaders(ctx)
	if err != nil {
		return nil, nil, err
	}

	readersByID := map[uint]registry.Reader{}
	portsByAntennaID := map[uint]int{}

	for _, r := range readers {
		readersByID[r.ID] = r
		for _, a := range r.Antennas {
			portsByAntennaID[a.ID] = a.PortNumber
		}
	}

	return readersByID, portsByAntennaID, nil
}

func antennaPort(antennaID *uint, ports map[uint]int) *int {
	if antennaID == nil {
		return nil
	}
	port, ok := ports[*antennaID]
	if !ok {
		return nil
	}
	return &port
}
