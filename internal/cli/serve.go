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
	"github.com/storewatch/storewatch/internal/server"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "listen", "", "HTTP listen address (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the full daemon: HTTP API plus inbox watcher",
	Long:  "Serves the tracking and adjudication API over HTTP and watches the inbox directory for incident payload files.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &server.Server{
		Addr:        cfg.ListenAddr,
		Tracker:     rt.tracker,
		Zones:       cfg.Zones,
		History:     rt.history,
		Pipeline:    rt.pipeline,
		Adjudicator: rt.coordinator,
		Store:       rt.store,
		Metrics:     metrics.Default,
		Logger:      logging.WithComponent("server"),
		LocationFor: cfg.LocationFor,
	}

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

	// Orphan recovery: payloads that arrived while the daemon was down.
	if err := ingest.ScanExisting(cfg.InboxDir, handle); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ListenAndServe(runCtx) }()
	go func() { errCh <- ingest.NewInboxWatcher(cfg.InboxDir, handle).Run(runCtx) }()

	rt.logger.Info().
		Str("listen", cfg.ListenAddr).
		Str("inbox", cfg.InboxDir).
		Msg("storewatch daemon started")

	// First failure stops both; the second goroutine's result is drained
	// after cancellation.
	err = <-errCh
	cancel()
	<-errCh
	return err
}
