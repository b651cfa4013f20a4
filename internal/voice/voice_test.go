package voice

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAlertTextDefault(t *testing.T) {
	got := AlertText("Aisle 9")
	want := "Security alert. Possible shoplifting detected at Aisle 9."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAlertTextTemplateOverride(t *testing.T) {
	t.Setenv(EnvAlertTemplate, "Watch {location} now: {location}")
	if got := AlertText("exit"); got != "Watch exit now: exit" {
		t.Errorf("template substitution failed: %q", got)
	}
}

func TestWriteToneWAVHeader(t *testing.T) {
	dir := t.TempDir()
	path, err := writeToneWAV(dir, "beep.wav")
	if err != nil {
		t.Fatalf("writeToneWAV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) < 44 {
		t.Fatalf("file too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != toneSampleRate {
		t.Errorf("sample rate %d, want %d", rate, toneSampleRate)
	}
	wantSamples := int(toneSampleRate * toneDuration)
	if dataLen := binary.LittleEndian.Uint32(data[40:44]); int(dataLen) != wantSamples*2 {
		t.Errorf("data length %d, want %d", dataLen, wantSamples*2)
	}
	if len(data) != 44+wantSamples*2 {
		t.Errorf("total length %d, want %d", len(data), 44+wantSamples*2)
	}
}

func TestPlayNeverFails(t *testing.T) {
	l := &Local{Dir: filepath.Join(t.TempDir(), "audio"), DisablePlayback: true}
	res := l.Play(context.Background(), "Aisle 3", "cam/1:weird id")
	if !res.Success {
		t.Fatalf("Play must always produce an artifact: %+v", res)
	}
	if res.VoiceUsed != UsedLocal {
		t.Errorf("expected local voice, got %s", res.VoiceUsed)
	}
	if _, err := os.Stat(res.AudioPath); err != nil {
		t.Errorf("audio artifact missing: %v", err)
	}
	if strings.ContainsAny(filepath.Base(res.AudioPath), "/:") {
		t.Errorf("camera id not sanitized in %q", res.AudioPath)
	}
}

func TestPlayUnwritableDirReportsError(t *testing.T) {
	l := &Local{Dir: "/proc/storewatch-no-such-dir/audio", DisablePlayback: true}
	res := l.Play(context.Background(), "Aisle 3", "cam-1")
	if res.Success {
		t.Fatal("expected failure for unwritable dir")
	}
	if res.Err == "" {
		t.Error("failure must be reported in the result")
	}
}
