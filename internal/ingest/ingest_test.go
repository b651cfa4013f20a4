package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/agents"
)

type fakeAdjudicator struct {
	mu    sync.Mutex
	seen  []string
	fail  bool
	delay time.Duration
}

func (f *fakeAdjudicator) AnalyzeIncident(_ context.Context, in agents.IncidentInput) (agents.Outcome, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.seen = append(f.seen, in.IncidentID)
	f.mu.Unlock()
	if f.fail {
		return agents.Outcome{}, context.DeadlineExceeded
	}
	return agents.Outcome{
		Conclusion: agents.ConversationConclusion{
			ConversationID: "c-" + in.IncidentID,
			IncidentID:     in.IncidentID,
			FinalVerdict:   agents.VerdictFalsePositive,
			Summary:        "ok",
		},
	}, nil
}

func newProcessor(t *testing.T, adj Adjudicator) (*Processor, string) {
	t.Helper()
	inbox := t.TempDir()
	p := &Processor{Inbox: inbox, Adjudicator: adj, Logger: zerolog.Nop()}
	if err := p.Dirs(); err != nil {
		t.Fatalf("dirs: %v", err)
	}
	return p, inbox
}

func writePayload(t *testing.T, dir, name string, payload any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessValidPayload(t *testing.T) {
	adj := &fakeAdjudicator{}
	p, inbox := newProcessor(t, adj)
	path := writePayload(t, inbox, "inc-1.json", agents.IncidentInput{
		IncidentID: "inc-1", CameraID: "cam-1", Location: "exit",
	})

	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(adj.seen) != 1 || adj.seen[0] != "inc-1" {
		t.Errorf("adjudicator saw %v", adj.seen)
	}
	if _, err := os.Stat(filepath.Join(inbox, "processed", "inc-1.json")); err != nil {
		t.Error("payload not filed into processed/")
	}
	data, err := os.ReadFile(filepath.Join(inbox, "outbox", "inc-1.conclusion.json"))
	if err != nil {
		t.Fatalf("conclusion missing: %v", err)
	}
	var out agents.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("conclusion not JSON: %v", err)
	}
	if out.Conclusion.FinalVerdict != agents.VerdictFalsePositive {
		t.Errorf("unexpected conclusion: %+v", out.Conclusion)
	}
}

func TestProcessInvalidJSONGoesToFailed(t *testing.T) {
	adj := &fakeAdjudicator{}
	p, inbox := newProcessor(t, adj)
	path := filepath.Join(inbox, "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("bad payloads are terminal for the file, not the daemon: %v", err)
	}
	if len(adj.seen) != 0 {
		t.Error("invalid payload must not reach the adjudicator")
	}
	if _, err := os.Stat(filepath.Join(inbox, "failed", "bad.json")); err != nil {
		t.Error("payload not filed into failed/")
	}
	reason, err := os.ReadFile(filepath.Join(inbox, "failed", "bad.json.reason"))
	if err != nil || len(reason) == 0 {
		t.Error("missing reason file")
	}
}

func TestProcessMissingFieldsGoesToFailed(t *testing.T) {
	adj := &fakeAdjudicator{}
	p, inbox := newProcessor(t, adj)
	path := writePayload(t, inbox, "partial.json", map[string]string{"cameraId": "cam-1"})

	if err := p.Process(context.Background(), path); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(inbox, "failed", "partial.json")); err != nil {
		t.Error("payload not filed into failed/")
	}
}

func TestScanExisting(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.json.tmp"), []byte("{}"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	var got []string
	err := ScanExisting(dir, func(path string) { got = append(got, filepath.Base(path)) })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 || got[0] != "a.json" {
		t.Errorf("scan picked up %v", got)
	}
}

func TestScanExistingMissingDir(t *testing.T) {
	if err := ScanExisting(filepath.Join(t.TempDir(), "absent"), func(string) {}); err != nil {
		t.Fatalf("missing inbox is not an error: %v", err)
	}
}

func TestInboxWatcherPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	var mu sync.Mutex
	var got []string
	w := NewInboxWatcher(dir, func(path string) {
		mu.Lock()
		got = append(got, filepath.Base(path))
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "inc-9.json"), []byte("{}"), 0o644)

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("watcher never saw the file")
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watcher: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "inc-9.json" {
		t.Errorf("saw %v", got)
	}
}
