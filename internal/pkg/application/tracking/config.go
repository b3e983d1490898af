package tracking

import (
	"io"
	"time"

	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	DedupWindowSeconds int    `yaml:"dedupWindowSeconds"`
	DisplayTimezone    string `yaml:"displayTimezone"`
}

func (c Config) DedupWindow() time.Duration {
	if c.DedupWindowSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DedupWindowSeconds) * time.Second
}

func (c Config) Timezone() string {
	if c.DisplayTimezone == "" {
		return "Europe/Helsinki"
	}
	return c.DisplayTimezone
}

func NewConfig(config io.ReadCloser) (*Config, error) {
	defer config.Close()

	b, err := io.ReadAll(config)
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
