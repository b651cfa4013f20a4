package voice

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Tone fallback parameters: 0.4 s of 880 Hz mono PCM at 8 kHz.
const (
	toneSampleRate = 8000
	toneDuration   = 0.4
	toneFreq       = 880.0
	toneAmplitude  = 0.3
)

// writeToneWAV writes the fixed-frequency fallback tone as an uncompressed
// 16-bit mono RIFF/WAVE file and returns its path.
func writeToneWAV(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("voice: create directory: %w", err)
	}
	path := filepath.Join(dir, name)

	numSamples := int(toneSampleRate * toneDuration)
	dataLen := numSamples * 2
	buf := make([]byte, 0, 44+dataLen)

	le16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}
	le32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, le32(uint32(36+dataLen))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, le32(16)...)                  // fmt chunk size
	buf = append(buf, le16(1)...)                   // PCM
	buf = append(buf, le16(1)...)                   // mono
	buf = append(buf, le32(toneSampleRate)...)      // sample rate
	buf = append(buf, le32(toneSampleRate*2)...)    // byte rate
	buf = append(buf, le16(2)...)                   // block align
	buf = append(buf, le16(16)...)                  // bits per sample
	buf = append(buf, []byte("data")...)
	buf = append(buf, le32(uint32(dataLen))...)

	for i := 0; i < numSamples; i++ {
		t := float64(i) / toneSampleRate
		sample := int16(32767 * toneAmplitude * math.Sin(2*math.Pi*toneFreq*t))
		buf = append(buf, le16(uint16(sample))...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("voice: write wav: %w", err)
	}
	return path, nil
}
