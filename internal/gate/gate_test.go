package gate

import (
	"testing"
	"time"
)

func newDefault() *Gate { return New(DefaultConfig()) }

func TestBelowConfidenceDenied(t *testing.T) {
	g := newDefault()
	d := g.Decide("cam-1", "t1", 0.5, 100000)
	if d.Allow {
		t.Fatal("expected deny")
	}
	if d.Reason != ReasonBelowConfidence {
		t.Errorf("expected %s, got %s", ReasonBelowConfidence, d.Reason)
	}
}

func TestConfidenceAtThresholdAllowed(t *testing.T) {
	g := newDefault()
	if d := g.Decide("cam-1", "t1", 0.7, 100000); !d.Allow {
		t.Errorf("expected allow at threshold, got %s", d.Reason)
	}
}

func TestFirstEventAllowed(t *testing.T) {
	g := newDefault()
	if d := g.Decide("cam-1", "t1", 0.9, 100000); !d.Allow {
		t.Errorf("expected allow, got %s", d.Reason)
	}
}

func TestCameraCooldownBlocksSecondEvent(t *testing.T) {
	g := newDefault()
	g.Decide("cam-A", "t1", 0.9, 100000)
	d := g.Decide("cam-A", "t2", 0.9, 101000)
	if d.Allow {
		t.Fatal("expected deny")
	}
	if d.Reason != ReasonCameraCooldown {
		t.Errorf("expected %s, got %s", ReasonCameraCooldown, d.Reason)
	}
}

func TestCameraCooldownExpires(t *testing.T) {
	g := newDefault()
	g.Decide("cam-B", "t1", 0.9, 100000)
	if d := g.Decide("cam-B", "t2", 0.9, 125000); !d.Allow {
		t.Errorf("expected allow after cooldown, got %s", d.Reason)
	}
}

func TestTrackCooldownBlocksAcrossCameras(t *testing.T) {
	g := newDefault()
	g.Decide("cam-1", "track-X", 0.9, 200000)
	d := g.Decide("cam-2", "track-X", 0.9, 205000)
	if d.Allow {
		t.Fatal("expected deny")
	}
	if d.Reason != ReasonTrackCooldown {
		t.Errorf("expected %s, got %s", ReasonTrackCooldown, d.Reason)
	}
}

func TestTrackCooldownExpires(t *testing.T) {
	g := newDefault()
	g.Decide("cam-1", "track-Y", 0.9, 200000)
	if d := g.Decide("cam-2", "track-Y", 0.9, 235000); !d.Allow {
		t.Errorf("expected allow after track cooldown, got %s", d.Reason)
	}
}

func TestZeroCameraCooldownDisablesCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CameraCooldown = 0
	g := New(cfg)
	g.Decide("cam-C", "t1", 0.9, 100000)
	// Different track so the track cooldown cannot apply either.
	if d := g.Decide("cam-C", "t2", 0.9, 100001); !d.Allow {
		t.Errorf("expected allow with camera cooldown disabled, got %s", d.Reason)
	}
}

func TestZeroTrackCooldownDisablesCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrackCooldown = 0
	g := New(cfg)
	g.Decide("cam-1", "t1", 0.9, 100000)
	if d := g.Decide("cam-2", "t1", 0.9, 100001); !d.Allow {
		t.Errorf("expected allow with track cooldown disabled, got %s", d.Reason)
	}
}

func TestReset(t *testing.T) {
	g := newDefault()
	g.Decide("cam-D", "t1", 0.9, 300000)
	if d := g.Decide("cam-D", "t2", 0.9, 300100); d.Allow {
		t.Fatal("expected deny before reset")
	}
	g.Reset()
	if d := g.Decide("cam-D", "t2", 0.9, 300100); !d.Allow {
		t.Errorf("expected allow after reset, got %s", d.Reason)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg := ConfigFromEnv()
	if cfg.CameraCooldown != 20*time.Second {
		t.Errorf("camera cooldown default: %v", cfg.CameraCooldown)
	}
	if cfg.TrackCooldown != 30*time.Second {
		t.Errorf("track cooldown default: %v", cfg.TrackCooldown)
	}
	if cfg.MinConfidence != 0.7 {
		t.Errorf("min confidence default: %v", cfg.MinConfidence)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvCameraCooldown, "5")
	t.Setenv(EnvMinConfidence, "0.8")
	cfg := ConfigFromEnv()
	if cfg.CameraCooldown != 5*time.Second {
		t.Errorf("camera cooldown override: %v", cfg.CameraCooldown)
	}
	if cfg.MinConfidence != 0.8 {
		t.Errorf("min confidence override: %v", cfg.MinConfidence)
	}
}

func TestConfigFromEnvUnparseable(t *testing.T) {
	t.Setenv(EnvTrackCooldown, "soon")
	cfg := ConfigFromEnv()
	if cfg.TrackCooldown != 30*time.Second {
		t.Errorf("expected default on unparseable env, got %v", cfg.TrackCooldown)
	}
}
