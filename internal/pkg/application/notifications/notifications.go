package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/varasto-io/rfid-tracking/pkg/types"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

// Sender pushes detection events to externally configured webhook
// subscribers as cloudevents.
type Sender interface {
	Send(ctx context.Context, event types.DetectionRecorded) error
}

type sender struct {
	subscribers map[string][]SubscriberConfig
}

func New(cfg *Config) Sender {
	s := &sender{
		subscribers: make(map[string][]SubscriberConfig),
	}

	if cfg != nil {
		for _, n := range cfg.Notifications {
			s.subscribers[n.Type] = n.Subscribers
		}
	}

	return s
}

func (s *sender) Send(ctx context.Context, event types.DetectionRecorded) error {
	subs, ok := s.subscribers["rfid.detectionRecorded"]
	if !ok || len(subs) == 0 {
		return nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return err
	}

	ce := cloudevents.NewEvent()
	ce.SetID(fmt.Sprintf("%s:%d", event.EPC, event.Timestamp.Unix()))
	ce.SetTime(event.Timestamp)
	ce.SetSource("github.com/varasto-io/rfid-tracking")
	ce.SetType("rfid.detectionRecorded")

	err = ce.SetData(cloudevents.ApplicationJSON, event)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)

	for _, sub := range subs {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, sub.Endpoint)

		result := c.Send(ctxWithTarget, ce)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error("failed to send event to subscriber", "endpoint", sub.Endpoint, "err", result.Error())
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

type SubscriberConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NotificationConfig struct {
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []NotificationConfig `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(b, cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
