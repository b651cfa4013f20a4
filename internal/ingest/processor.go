package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/agents"
	"github.com/storewatch/storewatch/internal/metrics"
	"github.com/storewatch/storewatch/internal/publish"
)

// Adjudicator runs one incident through the multi-agent path. Implemented
// by the coordinator.
type Adjudicator interface {
	AnalyzeIncident(ctx context.Context, in agents.IncidentInput) (agents.Outcome, error)
}

// Processor handles the payload lifecycle: read, validate, adjudicate,
// file into processed/ or failed/, write the conclusion to outbox/.
type Processor struct {
	Inbox       string
	Adjudicator Adjudicator
	Publisher   *publish.Publisher
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// Dirs creates the processed, failed, and outbox directories.
func (p *Processor) Dirs() error {
	for _, d := range []string{p.processedDir(), p.failedDir(), p.outboxDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("ingest: create %s: %w", d, err)
		}
	}
	return nil
}

func (p *Processor) processedDir() string { return filepath.Join(p.Inbox, "processed") }
func (p *Processor) failedDir() string    { return filepath.Join(p.Inbox, "failed") }
func (p *Processor) outboxDir() string    { return filepath.Join(p.Inbox, "outbox") }

// Process handles a single payload file. Errors are terminal for the file,
// not the daemon: bad payloads land in failed/ with a reason file.
func (p *Processor) Process(ctx context.Context, path string) error {
	// Symlink defense: reject before reading so an inbox symlink cannot
	// point the daemon at arbitrary filesystem paths.
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("ingest: stat payload: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return p.fail(path, "rejected symlink")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingest: read payload: %w", err)
	}

	var in agents.IncidentInput
	if err := json.Unmarshal(data, &in); err != nil {
		return p.fail(path, fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := in.Validate(); err != nil {
		return p.fail(path, fmt.Sprintf("validation failed: %v", err))
	}

	if p.Metrics != nil {
		p.Metrics.EventsIngested.Inc()
		p.Metrics.ConversationsTotal.Inc()
	}

	out, err := p.Adjudicator.AnalyzeIncident(ctx, in)
	if err != nil {
		return p.fail(path, fmt.Sprintf("adjudication failed: %v", err))
	}

	if p.Publisher != nil {
		if err := p.Publisher.PublishConclusion(ctx, out.Conclusion); err != nil {
			p.Logger.Error().Err(err).Str("incident_id", in.IncidentID).Msg("publish conclusion failed")
		}
	}

	if err := p.writeConclusion(in.IncidentID, out); err != nil {
		return err
	}
	if err := moveFile(path, filepath.Join(p.processedDir(), filepath.Base(path))); err != nil {
		return fmt.Errorf("ingest: move to processed: %w", err)
	}

	p.Logger.Info().
		Str("incident_id", in.IncidentID).
		Str("verdict", out.Conclusion.FinalVerdict).
		Dur("duration", out.Duration).
		Msg("payload adjudicated")
	return nil
}

func (p *Processor) writeConclusion(incidentID string, out agents.Outcome) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: encode conclusion: %w", err)
	}
	dest := filepath.Join(p.outboxDir(), incidentID+".conclusion.json")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("ingest: write conclusion: %w", err)
	}
	return nil
}

// fail moves a payload to failed/ alongside a .reason file.
func (p *Processor) fail(path, reason string) error {
	base := filepath.Base(path)
	p.Logger.Warn().Str("payload", base).Str("reason", reason).Msg("payload rejected")

	dest := filepath.Join(p.failedDir(), base)
	if err := moveFile(path, dest); err != nil {
		return fmt.Errorf("ingest: move to failed: %w", err)
	}
	reasonPath := dest + ".reason"
	if err := os.WriteFile(reasonPath, []byte(reason+"\n"), 0o644); err != nil {
		return fmt.Errorf("ingest: write reason: %w", err)
	}
	return nil
}

// moveFile renames, falling back to copy+remove for cross-device moves.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
