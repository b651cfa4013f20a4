// Package config holds the daemon configuration: YAML file with defaults,
// environment knobs layered on top by the components that own them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/storewatch/storewatch/internal/gate"
	"github.com/storewatch/storewatch/internal/logging"
	"github.com/storewatch/storewatch/internal/publish"
	"github.com/storewatch/storewatch/internal/reason"
	"github.com/storewatch/storewatch/internal/zone"
)

// GateConfig mirrors gate thresholds in file form. Seconds, not durations,
// to match the environment knobs.
type GateConfig struct {
	CameraCooldownSeconds float64 `yaml:"camera_cooldown_seconds"`
	TrackCooldownSeconds  float64 `yaml:"track_cooldown_seconds"`
	MinConfidence         float64 `yaml:"min_confidence"`
}

// CameraConfig names one monitored camera.
type CameraConfig struct {
	ID       string `yaml:"id"`
	Location string `yaml:"location"`
}

// Config is the full daemon configuration.
type Config struct {
	Logging logging.Config `yaml:"logging"`
	Reason  reason.Config  `yaml:"reason"`
	Gate    GateConfig     `yaml:"gate"`
	Publish publish.Config `yaml:"publish"`

	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`
	// DataDir holds the conversation database, incident log, and audio
	// artifacts.
	DataDir string `yaml:"data_dir"`
	// InboxDir is watched for incident payload files.
	InboxDir string `yaml:"inbox_dir"`
	// DisablePlayback skips spawning audio players on alert.
	DisablePlayback bool `yaml:"disable_playback"`

	Cameras []CameraConfig `yaml:"cameras"`
	Zones   []zone.Zone    `yaml:"zones"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultConfig(),
		Reason: reason.Config{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Gate: GateConfig{
			CameraCooldownSeconds: gate.DefaultCameraCooldown.Seconds(),
			TrackCooldownSeconds:  gate.DefaultTrackCooldown.Seconds(),
			MinConfidence:         gate.DefaultMinConfidence,
		},
		ListenAddr: ":8088",
		DataDir:    "data",
		InboxDir:   filepath.Join("data", "inbox"),
	}
}

// Load reads YAML config from path. A missing file returns defaults;
// invalid YAML is an error. The file overwrites only the fields it sets.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}

// GateSettings converts file values into gate thresholds, then lets any
// environment knob that is actually set override. Presence decides, not the
// value: an env knob set to a default still wins over the file.
func (c *Config) GateSettings() gate.Config {
	out := gate.Config{
		CameraCooldown: time.Duration(c.Gate.CameraCooldownSeconds * float64(time.Second)),
		TrackCooldown:  time.Duration(c.Gate.TrackCooldownSeconds * float64(time.Second)),
		MinConfidence:  c.Gate.MinConfidence,
	}
	if v, ok := gate.EnvFloat(gate.EnvCameraCooldown); ok {
		out.CameraCooldown = time.Duration(v * float64(time.Second))
	}
	if v, ok := gate.EnvFloat(gate.EnvTrackCooldown); ok {
		out.TrackCooldown = time.Duration(v * float64(time.Second))
	}
	if v, ok := gate.EnvFloat(gate.EnvMinConfidence); ok {
		out.MinConfidence = v
	}
	return out
}

// DatabasePath is the conversation store location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "conversations.db")
}

// IncidentLogPath is the JSONL incident log location under DataDir.
func (c *Config) IncidentLogPath() string {
	return filepath.Join(c.DataDir, "alerts", "incidents.jsonl")
}

// AudioDir is where alert audio artifacts are written.
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "alerts", "audio")
}

// LocationFor resolves a camera id to its configured location, defaulting
// to the camera id itself.
func (c *Config) LocationFor(cameraID string) string {
	for _, cam := range c.Cameras {
		if cam.ID == cameraID {
			return cam.Location
		}
	}
	return cameraID
}
