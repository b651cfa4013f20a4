// Package gate rate-limits alerts per camera and per track. A decision is
// gated by, in order: judge confidence, camera cooldown, track cooldown.
// The check-then-record sequence is one atomic critical section.
package gate

import (
	"os"
	"strconv"
	"sync"
	"time"
)

// Deny reasons, in check order.
const (
	ReasonBelowConfidence = "below_confidence"
	ReasonCameraCooldown  = "camera_cooldown"
	ReasonTrackCooldown   = "track_cooldown"
)

// Default thresholds. These are the contract; all are overridable.
const (
	DefaultCameraCooldown = 20 * time.Second
	DefaultTrackCooldown  = 30 * time.Second
	DefaultMinConfidence  = 0.7
)

// Environment knobs.
const (
	EnvCameraCooldown = "STOREWATCH_CAMERA_COOLDOWN_SECONDS"
	EnvTrackCooldown  = "STOREWATCH_TRACK_COOLDOWN_SECONDS"
	EnvMinConfidence  = "STOREWATCH_JUDGE_MIN_CONFIDENCE"
)

// Config holds gate thresholds. A zero cooldown disables that check.
type Config struct {
	CameraCooldown time.Duration
	TrackCooldown  time.Duration
	MinConfidence  float64
}

// DefaultConfig returns the contract defaults.
func DefaultConfig() Config {
	return Config{
		CameraCooldown: DefaultCameraCooldown,
		TrackCooldown:  DefaultTrackCooldown,
		MinConfidence:  DefaultMinConfidence,
	}
}

// ConfigFromEnv returns the defaults overridden by environment knobs.
// Unparseable values fall back to the default for that knob.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, ok := EnvFloat(EnvCameraCooldown); ok {
		cfg.CameraCooldown = time.Duration(v * float64(time.Second))
	}
	if v, ok := EnvFloat(EnvTrackCooldown); ok {
		cfg.TrackCooldown = time.Duration(v * float64(time.Second))
	}
	if v, ok := EnvFloat(EnvMinConfidence); ok {
		cfg.MinConfidence = v
	}
	return cfg
}

// EnvFloat reads one environment knob. The second result reports whether
// the variable is set to a usable value, so callers can distinguish "set to
// the default" from "absent".
func EnvFloat(key string) (float64, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Decision is the gate outcome. Reason is set only on deny.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

// Gate holds per-camera and per-track cooldown state. Safe for concurrent
// use; callers own the instance (no ambient global state).
type Gate struct {
	mu         sync.Mutex
	cfg        Config
	lastCamera map[string]int64 // camera_id -> last allowed unix ms
	lastTrack  map[string]int64 // track_id  -> last allowed unix ms
}

// New creates a gate with the given thresholds.
func New(cfg Config) *Gate {
	return &Gate{
		cfg:        cfg,
		lastCamera: make(map[string]int64),
		lastTrack:  make(map[string]int64),
	}
}

// Decide evaluates one candidate alert and, when allowed, records nowMS
// against both the camera and track keys.
func (g *Gate) Decide(cameraID, trackID string, confidence float64, nowMS int64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if confidence < g.cfg.MinConfidence {
		return Decision{Reason: ReasonBelowConfidence}
	}

	if g.cfg.CameraCooldown > 0 {
		if last, ok := g.lastCamera[cameraID]; ok && nowMS-last < g.cfg.CameraCooldown.Milliseconds() {
			return Decision{Reason: ReasonCameraCooldown}
		}
	}

	if g.cfg.TrackCooldown > 0 {
		if last, ok := g.lastTrack[trackID]; ok && nowMS-last < g.cfg.TrackCooldown.Milliseconds() {
			return Decision{Reason: ReasonTrackCooldown}
		}
	}

	g.lastCamera[cameraID] = nowMS
	g.lastTrack[trackID] = nowMS
	return Decision{Allow: true}
}

// Config returns the gate's thresholds.
func (g *Gate) Config() Config {
	return g.cfg
}

// Reset clears all cooldown state. Exposed for test isolation.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCamera = make(map[string]int64)
	g.lastTrack = make(map[string]int64)
}
