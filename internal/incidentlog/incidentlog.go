// Package incidentlog is the durable audit trail of alert decisions: an
// append-only JSONL file with SHA-256 hash chaining. Every triggered and
// suppressed decision gets exactly one line; no line is ever rewritten.
// Write failures propagate to the caller; silent loss is unacceptable here.
package incidentlog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/storewatch/storewatch/internal/event"
)

// Entry statuses.
const (
	StatusTriggered  = "triggered"
	StatusSuppressed = "suppressed"
)

// GenesisHash is the prev_hash for the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one line in the incident log. Field order is fixed by the
// struct (no maps) so marshaling is deterministic for hashing.
type Entry struct {
	Event         event.Event `json:"event"`
	AlertText     string      `json:"alert_text,omitempty"`
	AudioFilePath string      `json:"audio_file_path,omitempty"`
	TriggeredAt   string      `json:"triggered_at"`
	Status        string      `json:"status"`
	Reason        string      `json:"reason,omitempty"`
	PrevHash      string      `json:"prev_hash"`
}

// Log is an append-only JSONL incident log.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) the incident log for appending, creating parent
// directories as needed. If the file already exists, the last line is read
// back to recover the chain tail.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("incidentlog: create directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		tail, err := lastLine(path)
		if err != nil {
			return nil, err
		}
		if len(tail) > 0 {
			prevHash = HashLine(tail)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: open file: %w", err)
	}

	return &Log{path: path, file: file, prevHash: prevHash}, nil
}

func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("incidentlog: read existing log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var last []byte
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("incidentlog: scan existing log: %w", err)
	}
	return last, nil
}

// Append writes one entry with hash chaining and syncs to disk.
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.TriggeredAt == "" {
		entry.TriggeredAt = time.Now().UTC().Format(time.RFC3339)
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("incidentlog: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("incidentlog: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("incidentlog: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return nil
}

// Triggered appends a triggered entry for an allowed alert.
func (l *Log) Triggered(ev event.Event, alertText, audioPath string, at time.Time) error {
	return l.Append(Entry{
		Event:         ev,
		AlertText:     alertText,
		AudioFilePath: audioPath,
		TriggeredAt:   at.UTC().Format(time.RFC3339),
		Status:        StatusTriggered,
	})
}

// Suppressed appends a suppressed entry with the gate or pipeline reason.
func (l *Log) Suppressed(ev event.Event, reason string, at time.Time) error {
	return l.Append(Entry{
		Event:       ev,
		TriggeredAt: at.UTC().Format(time.RFC3339),
		Status:      StatusSuppressed,
		Reason:      reason,
	})
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}
