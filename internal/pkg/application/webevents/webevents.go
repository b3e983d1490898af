package webevents

import (
	"encoding/json"

	gosse "github.com/alexandrevicenzi/go-sse"
	"github.com/varasto-io/rfid-tracking/pkg/types"
)

// WebEvents streams detection activity to connected dashboard clients
// over server-sent events, so the live view updates without polling.
type WebEvents interface {
	Server() *gosse.Server
	Shutdown()

	PublishDetectionRecorded(event types.DetectionRecorded) error
	PublishDetectionsCleared(event types.DetectionsCleared) error
}

type webEvents struct {
	s *gosse.Server
}

func New() WebEvents {
	return &webEvents{
		s: gosse.NewServer(&gosse.Options{}),
	}
}

func (we *webEvents) Server() *gosse.Server {
	return we.s
}

func (we *webEvents) Shutdown() {
	we.s.Shutdown()
}

func (we *webEvents) PublishDetectionRecorded(event types.DetectionRecorded) error {
	return we.send("detectionRecorded", event)
}

func (we *webEvents) PublishDetectionsCleared(event types.DetectionsCleared) error {
	return we.send("detectionsCleared", event)
}

func (we *webEvents) send(name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	we.s.SendMessage("", gosse.NewMessage("", string(b), name))

	return nil
}
