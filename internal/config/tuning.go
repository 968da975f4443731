package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Duration decodes Go duration strings ("30s", "10m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Tuning is the hot-reloadable part of the configuration.
type Tuning struct {
	// Cooldown is the per-user fetch admission window.
	Cooldown  Duration        `yaml:"cooldown"`
	Fetch     FetchTuning     `yaml:"fetch"`
	Broadcast BroadcastTuning `yaml:"broadcast"`
}

type FetchTuning struct {
	Workers        int      `yaml:"workers"`
	QueueSize      int      `yaml:"queue_size"`
	RetryMax       int      `yaml:"retry_max"`
	MaxHeight      int      `yaml:"max_height"`
	MaxDuration    Duration `yaml:"max_duration"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
	LargeFileMB    int64    `yaml:"large_file_mb"`
	PurgeThreshold int      `yaml:"purge_threshold"`
	SweepEvery     Duration `yaml:"sweep_every"`
	SweepMaxAge    Duration `yaml:"sweep_max_age"`
}

type BroadcastTuning struct {
	Workers    int `yaml:"workers"`
	RatePerSec int `yaml:"rate_per_sec"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Cooldown: Duration(30 * time.Second),
		Fetch: FetchTuning{
			Workers:        3,
			QueueSize:      64,
			RetryMax:       2,
			MaxHeight:      720,
			MaxDuration:    Duration(10 * time.Minute),
			AttemptTimeout: Duration(3 * time.Minute),
			LargeFileMB:    45, // Bot API caps uploads at 50 MB
			PurgeThreshold: 50,
			SweepEvery:     Duration(10 * time.Minute),
			SweepMaxAge:    Duration(30 * time.Minute),
		},
		Broadcast: BroadcastTuning{
			Workers:    4,
			RatePerSec: 25,
		},
	}
}

// LoadTuning reads the optional tuning file on top of defaults. Unknown keys
// are rejected so a typo fails loudly instead of silently falling back.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return t, fmt.Errorf("decode %s: %w", path, err)
	}
	return t, nil
}
