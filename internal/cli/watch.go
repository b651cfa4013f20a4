package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatch/internal/ingest"
	"github.com/storewatch/storewatch/internal/logging"
	"github.com/storewatch/storewatch/internal/metrics"
)

var watchPoll bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Use polling instead of fsnotify (for NFS inboxes)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the inbox watcher without the HTTP API",
	Long:  "Watches the inbox directory for incident payload files and adjudicates each through the two-agent protocol.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc := &ingest.Processor{
		Inbox:       cfg.InboxDir,
		Adjudicator: rt.coordinator,
		Publisher:   rt.publisher,
		Logger:      logging.WithComponent("ingest"),
		Metrics:     metrics.Default,
	}
	if err := os.MkdirAll(cfg.InboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	if err := proc.Dirs(); err != nil {
		return err
	}

	handle := func(path string) {
		if err := proc.Process(ctx, path); err != nil {
			rt.logger.Error().Err(err).Str("path", path).Msg("payload processing failed")
		}
	}

	if err := ingest.ScanExisting(cfg.InboxDir, handle); err != nil {
		return err
	}

	rt.logger.Info().Str("inbox", cfg.InboxDir).Bool("poll", watchPoll).Msg("inbox watcher started")

	if watchPoll {
		return ingest.NewPollWatcher(cfg.InboxDir, handle, 0).Run(ctx)
	}
	return ingest.NewInboxWatcher(cfg.InboxDir, handle).Run(ctx)
}
