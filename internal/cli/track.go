package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/storewatch/storewatch/internal/pipeline"
	"github.com/storewatch/storewatch/internal/suspicion"
	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/zone"
)

func init() {
	rootCmd.AddCommand(trackCmd)
}

// trackFrame is one recorded camera frame in a smoke-test file.
type trackFrame struct {
	CameraID   string            `json:"camera_id"`
	Location   string            `json:"location,omitempty"`
	Detections []track.Detection `json:"detections"`
	FramePaths []string          `json:"frame_paths,omitempty"`
	FrameW     float64           `json:"frame_w,omitempty"`
	FrameH     float64           `json:"frame_h,omitempty"`
	NowMS      int64             `json:"now_ms,omitempty"`
}

type trackOutcome struct {
	Frame     int              `json:"frame"`
	TrackID   string           `json:"track_id"`
	Suspicion suspicion.Result `json:"suspicion"`
	Pipeline  pipeline.Result  `json:"pipeline"`
}

var trackCmd = &cobra.Command{
	Use:   "track <frames.json>",
	Short: "Run recorded detections through the concealment path",
	Long:  "Reads a JSON array of frames with person detections and runs each through the tracker, suspicion scorer, and alert pipeline. End-to-end verification without a live camera.",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	var frames []trackFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return fmt.Errorf("parse frames: %w", err)
	}

	ctx := context.Background()
	var outcomes []trackOutcome

	for i, f := range frames {
		if f.CameraID == "" {
			return fmt.Errorf("frame %d: camera_id is required", i)
		}
		nowMS := f.NowMS
		if nowMS == 0 {
			nowMS = time.Now().UnixMilli()
		}
		location := f.Location
		if location == "" {
			location = cfg.LocationFor(f.CameraID)
		}

		for _, p := range rt.tracker.Update(f.Detections, nowMS) {
			b := p.Bbox
			x := (b.X1 + b.X2) / 2
			y := b.Y2
			if f.FrameW > 0 && f.FrameH > 0 {
				x /= f.FrameW
				y /= f.FrameH
			}
			visits := rt.history.Observe(p.TrackID, zone.Point{X: x, Y: y}, cfg.Zones, nowMS)

			sus := suspicion.Evaluate(suspicion.Input{
				Track:       p,
				CameraID:    f.CameraID,
				Location:    location,
				Zones:       cfg.Zones,
				ZoneHistory: visits,
				NowMS:       nowMS,
				FrameW:      f.FrameW,
				FrameH:      f.FrameH,
			})
			res := rt.pipeline.Run(ctx, pipeline.Input{
				Track:      p,
				CameraID:   f.CameraID,
				Location:   location,
				Suspicion:  sus,
				FramePaths: f.FramePaths,
				NowMS:      nowMS,
			})

			outcomes = append(outcomes, trackOutcome{
				Frame:     i,
				TrackID:   p.TrackID,
				Suspicion: sus,
				Pipeline:  res,
			})
		}
	}

	return printJSON(outcomes)
}
