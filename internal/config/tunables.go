package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ingesterrors "github.com/argus-io/ingest-agent/internal/errors"
)

// Tunables holds the operator-adjustable defaults for health thresholds,
// batch/flush sizes, pool sizes, and reconnect timing. Any zero-valued
// field after loading is replaced with its default.
type Tunables struct {
	// Health Monitor
	HealthInterval     time.Duration `yaml:"health_interval"`
	EntropyThreshold   float64       `yaml:"entropy_threshold"`
	WhiteRatioThreshold float64      `yaml:"white_ratio_threshold"`
	BlackMeanThreshold float64       `yaml:"black_mean_threshold"`
	BlurVarThreshold   float64       `yaml:"blur_variance_threshold"`

	// Frame Source
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	MaxReadFailures   int           `yaml:"max_read_failures"`

	// Metadata Sink
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Frame Artifact Sink
	EncodePoolSize int `yaml:"encode_pool_size"`
	IOPoolSize     int `yaml:"io_pool_size"`
}

// DefaultTunables returns conservative defaults for every tunable.
func DefaultTunables() Tunables {
	return Tunables{
		HealthInterval:      30 * time.Second,
		EntropyThreshold:    4.0,
		WhiteRatioThreshold: 0.6,
		BlackMeanThreshold:  10.0,
		BlurVarThreshold:    100.0,

		ReconnectInterval: 5 * time.Second,
		MaxReadFailures:   10,

		BatchSize:     100,
		FlushInterval: 5 * time.Second,

		EncodePoolSize: 3,
		IOPoolSize:     2,
	}
}

// LoadTunables reads a YAML tunables file at path, if non-empty, and
// overlays it onto the defaults. An empty path is not an error — the
// defaults apply; a path naming a file that cannot be read is a ConfigError.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, ingesterrors.NewConfigError("tunables.load", fmt.Errorf("read %s: %w", path, err))
	}

	var overlay Tunables
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return t, ingesterrors.NewConfigError("tunables.load", fmt.Errorf("parse %s: %w", path, err))
	}

	applyOverlay(&t, overlay)
	return t, nil
}

// applyOverlay replaces each default field whose overlay counterpart is
// non-zero.
func applyOverlay(t *Tunables, o Tunables) {
	if o.HealthInterval != 0 {
		t.HealthInterval = o.HealthInterval
	}
	if o.EntropyThreshold != 0 {
		t.EntropyThreshold = o.EntropyThreshold
	}
	if o.WhiteRatioThreshold != 0 {
		t.WhiteRatioThreshold = o.WhiteRatioThreshold
	}
	if o.BlackMeanThreshold != 0 {
		t.BlackMeanThreshold = o.BlackMeanThreshold
	}
	if o.BlurVarThreshold != 0 {
		t.BlurVarThreshold = o.BlurVarThreshold
	}
	if o.ReconnectInterval != 0 {
		t.ReconnectInterval = o.ReconnectInterval
	}
	if o.MaxReadFailures != 0 {
		t.MaxReadFailures = o.MaxReadFailures
	}
	if o.BatchSize != 0 {
		t.BatchSize = o.BatchSize
	}
	if o.FlushInterval != 0 {
		t.FlushInterval = o.FlushInterval
	}
	if o.EncodePoolSize != 0 {
		t.EncodePoolSize = o.EncodePoolSize
	}
	if o.IOPoolSize != 0 {
		t.IOPoolSize = o.IOPoolSize
	}
}
