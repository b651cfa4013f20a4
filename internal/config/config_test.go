package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storewatch/storewatch/internal/gate"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8088" || cfg.Gate.MinConfidence != gate.DefaultMinConfidence {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen_addr: ":9000"
gate:
  min_confidence: 0.5
cameras:
  - id: cam-1
    location: "Aisle 9"
zones:
  - id: z1
    name: Exit
    type: exit
    polygon:
      - {x: 0, y: 0}
      - {x: 10, y: 0}
      - {x: 10, y: 10}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("listen addr %q", cfg.ListenAddr)
	}
	if cfg.Gate.MinConfidence != 0.5 {
		t.Errorf("min confidence %v", cfg.Gate.MinConfidence)
	}
	if cfg.Gate.CameraCooldownSeconds != gate.DefaultCameraCooldown.Seconds() {
		t.Errorf("unset field lost its default: %v", cfg.Gate.CameraCooldownSeconds)
	}
	if len(cfg.Zones) != 1 || len(cfg.Zones[0].Polygon) != 3 {
		t.Errorf("zones not parsed: %+v", cfg.Zones)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte(":\n  - ["), 0o644)
	if _, err := Load(path); err == nil {
		t.Fatal("invalid yaml must fail")
	}
}

func TestGateSettingsEnvOverride(t *testing.T) {
	cfg := Default()
	cfg.Gate.CameraCooldownSeconds = 5

	t.Setenv(gate.EnvTrackCooldown, "45")
	got := cfg.GateSettings()
	if got.CameraCooldown != 5*time.Second {
		t.Errorf("file value lost: %v", got.CameraCooldown)
	}
	if got.TrackCooldown != 45*time.Second {
		t.Errorf("env override lost: %v", got.TrackCooldown)
	}
}

func TestGateSettingsEnvDefaultValueStillOverridesFile(t *testing.T) {
	cfg := Default()
	cfg.Gate.CameraCooldownSeconds = 5

	// The knob is set to the stock default; presence must still win.
	t.Setenv(gate.EnvCameraCooldown, "20")
	got := cfg.GateSettings()
	if got.CameraCooldown != 20*time.Second {
		t.Errorf("env set to the default must override the file: %v", got.CameraCooldown)
	}
}

func TestLocationFor(t *testing.T) {
	cfg := Default()
	cfg.Cameras = []CameraConfig{{ID: "cam-1", Location: "Aisle 9"}}
	if cfg.LocationFor("cam-1") != "Aisle 9" {
		t.Error("configured camera not resolved")
	}
	if cfg.LocationFor("cam-2") != "cam-2" {
		t.Error("unknown camera should fall back to its id")
	}
}
