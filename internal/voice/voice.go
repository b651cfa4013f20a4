// Package voice produces a playable audio artifact for an approved alert.
// The preferred path renders the alert sentence with platform text-to-speech;
// every failure falls back to a synthesized tone, so Play never fails.
package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Voice kinds reported in results.
const (
	UsedLocal  = "local"
	UsedRemote = "remote"
)

// EnvAlertTemplate overrides the alert sentence. It must contain a
// {location} substitution token.
const EnvAlertTemplate = "STOREWATCH_ALERT_TEMPLATE"

// DefaultTemplate is the spoken alert sentence.
const DefaultTemplate = "Security alert. Possible shoplifting detected at {location}."

// Result is the outcome of producing (and starting playback of) an alert.
type Result struct {
	Success   bool   `json:"success"`
	AudioPath string `json:"audio_path,omitempty"`
	VoiceUsed string `json:"voice_used"`
	Err       string `json:"error,omitempty"`
}

// Alerter produces a playable audio artifact for one alert.
type Alerter interface {
	Play(ctx context.Context, location, cameraID string) Result
}

// AlertText renders the alert sentence for a location, honoring the
// template override.
func AlertText(location string) string {
	t := os.Getenv(EnvAlertTemplate)
	if t == "" {
		t = DefaultTemplate
	}
	return strings.ReplaceAll(t, "{location}", location)
}

// Local synthesizes alerts on the host: OS text-to-speech where available,
// otherwise a generated tone. Playback is fired off without blocking.
type Local struct {
	// Dir is where audio artifacts are written. Defaults to
	// alerts/audio under the working directory.
	Dir string
	// DisablePlayback skips spawning a player. For tests and headless
	// deployments.
	DisablePlayback bool
}

// Play renders the alert for the location. It never fails: any TTS or
// filesystem error degrades to the tone fallback, and if even that fails
// the error is reported in the result rather than returned.
func (l *Local) Play(ctx context.Context, location, cameraID string) Result {
	dir := l.Dir
	if dir == "" {
		dir = filepath.Join("alerts", "audio")
	}
	base := fmt.Sprintf("%s_%s", time.Now().UTC().Format("2006-01-02T15-04-05"), safeName(cameraID))

	if path, err := l.speak(ctx, dir, base, AlertText(location)); err == nil {
		l.playNonBlocking(path)
		return Result{Success: true, AudioPath: path, VoiceUsed: UsedLocal}
	}

	path, err := writeToneWAV(dir, base+"_beep.wav")
	if err != nil {
		return Result{VoiceUsed: UsedLocal, Err: err.Error()}
	}
	l.playNonBlocking(path)
	return Result{Success: true, AudioPath: path, VoiceUsed: UsedLocal}
}

// speak renders text to a WAV via the platform TTS binary.
func (l *Local) speak(ctx context.Context, dir, base, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("voice: create directory: %w", err)
	}
	path := filepath.Join(dir, base+"_tts.wav")

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "say", "-o", path, "--data-format=LEI16@22050", text)
	case "linux":
		cmd = exec.CommandContext(ctx, "espeak", "-w", path, text)
	default:
		return "", fmt.Errorf("voice: no TTS binary for %s", runtime.GOOS)
	}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("voice: tts: %w", err)
	}
	return path, nil
}

// playNonBlocking starts a player and does not wait for it.
func (l *Local) playNonBlocking(path string) {
	if l.DisablePlayback {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("afplay", path)
	default:
		cmd = exec.Command("ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path)
	}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return
	}
	go func() { _ = cmd.Wait() }()
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if len(out) > 24 {
		out = out[:24]
	}
	return out
}
