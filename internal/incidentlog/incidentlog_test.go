package incidentlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/storewatch/storewatch/internal/event"
)

func testEvent() event.Event {
	return event.New("cam-1", "Aisle 9", 0.9, time.Unix(1700000000, 0))
}

func readLines(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestTriggeredEntryShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts", "incidents.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	at := time.Unix(1700000100, 0)
	if err := l.Triggered(testEvent(), "Security alert.", "/tmp/a.wav", at); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries := readLines(t, path)
	if len(entries) != 1 {
		t.Fatalf("expected 1 line, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != StatusTriggered || e.AlertText != "Security alert." || e.AudioFilePath != "/tmp/a.wav" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.PrevHash != GenesisHash {
		t.Errorf("first entry should chain from genesis, got %s", e.PrevHash)
	}
}

func TestSuppressedEntryShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	if err := l.Suppressed(testEvent(), "track_cooldown", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries := readLines(t, path)
	if entries[0].Status != StatusSuppressed || entries[0].Reason != "track_cooldown" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].AlertText != "" {
		t.Error("suppressed entries carry no alert text")
	}
}

func TestHashChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	l, _ := Open(path)
	defer l.Close()

	l.Triggered(testEvent(), "a", "", time.Now())
	l.Suppressed(testEvent(), "camera_cooldown", time.Now())
	l.Suppressed(testEvent(), "below_confidence", time.Now())

	f, _ := os.Open(path)
	defer f.Close()
	scanner := bufio.NewScanner(f)
	prev := GenesisHash
	for scanner.Scan() {
		var e Entry
		json.Unmarshal(scanner.Bytes(), &e)
		if e.PrevHash != prev {
			t.Errorf("chain broken: expected %s, got %s", prev, e.PrevHash)
		}
		prev = HashLine(scanner.Bytes())
	}
}

func TestReopenRecoversChainTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	l, _ := Open(path)
	l.Triggered(testEvent(), "a", "", time.Now())
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	l2.Suppressed(testEvent(), "track_cooldown", time.Now())

	entries := readLines(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(entries))
	}
	if entries[1].PrevHash == GenesisHash {
		t.Error("second entry should chain from the first, not genesis")
	}
}

func TestAppendNeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.jsonl")
	l, _ := Open(path)
	defer l.Close()

	l.Triggered(testEvent(), "first", "", time.Now())
	before, _ := os.ReadFile(path)
	l.Triggered(testEvent(), "second", "", time.Now())
	after, _ := os.ReadFile(path)

	if string(after[:len(before)]) != string(before) {
		t.Error("earlier content was rewritten")
	}
}
