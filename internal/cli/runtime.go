package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/storewatch/storewatch/internal/agents"
	"github.com/storewatch/storewatch/internal/config"
	"github.com/storewatch/storewatch/internal/convstore"
	"github.com/storewatch/storewatch/internal/gate"
	"github.com/storewatch/storewatch/internal/incidentlog"
	"github.com/storewatch/storewatch/internal/judge"
	"github.com/storewatch/storewatch/internal/logging"
	"github.com/storewatch/storewatch/internal/metrics"
	"github.com/storewatch/storewatch/internal/pipeline"
	"github.com/storewatch/storewatch/internal/publish"
	"github.com/storewatch/storewatch/internal/reason"
	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/voice"
	"github.com/storewatch/storewatch/internal/zone"
)

// runtime is the composed daemon: every component built once from config,
// shared by the serve and watch commands.
type runtime struct {
	cfg         *config.Config
	logger      zerolog.Logger
	reasoner    reason.Reasoner
	incidents   *incidentlog.Log
	store       *convstore.Store
	gate        *gate.Gate
	pipeline    *pipeline.Pipeline
	coordinator *agents.Coordinator
	publisher   *publish.Publisher
	tracker     *track.Tracker
	history     *zone.History
}

// buildRuntime assembles the daemon from config. The reasoner may be
// unconfigured; every consumer falls back to its local path.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	logger := logging.Logger()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	incidents, err := incidentlog.Open(cfg.IncidentLogPath())
	if err != nil {
		return nil, err
	}

	store, err := convstore.Open(cfg.DatabasePath())
	if err != nil {
		incidents.Close()
		return nil, err
	}

	reasoner := reason.NewClient(cfg.Reason)

	var j judge.Judge = judge.Local{}
	judgeName := "local"
	if reasoner.Configured() {
		j = judge.NewModel(reasoner)
		judgeName = "model"
	}

	g := gate.New(cfg.GateSettings())

	p := &pipeline.Pipeline{
		Judge:     j,
		JudgeName: judgeName,
		Voice:     &voice.Local{Dir: cfg.AudioDir(), DisablePlayback: cfg.DisablePlayback},
		Gate:      g,
		Log:       incidents,
		Logger:    logging.WithComponent("pipeline"),
		Metrics:   metrics.Default,
	}

	coord := &agents.Coordinator{
		Audio:    &agents.AudioAgent{Reasoner: reasoner, Logger: logging.WithComponent("audio-agent")},
		Vision:   &agents.VisionAgent{Reasoner: reasoner, Logger: logging.WithComponent("vision-agent")},
		Store:    store,
		Reasoner: reasoner,
		Logger:   logging.WithComponent("coordinator"),
		Metrics:  metrics.Default,
	}

	pub := publish.New(&cfg.Publish)

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		reasoner:    reasoner,
		incidents:   incidents,
		store:       store,
		gate:        g,
		pipeline:    p,
		coordinator: coord,
		publisher:   pub,
		// Long-running daemon: drop tracks unseen for five minutes.
		tracker:     track.NewTracker(track.WithMaxIdle(5 * 60 * 1000)),
		history:     zone.NewHistory(),
	}, nil
}

func (r *runtime) Close() {
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
	if r.incidents != nil {
		r.incidents.Close()
	}
}
