// Package suspicion converts track and zone signals into a 0–100 suspicion
// score with per-signal reasons. Scoring is a pure function over its input;
// each contributing signal adds a fixed increment and the total is clamped.
package suspicion

import (
	"fmt"
	"sort"

	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/zone"
)

const (
	exitWithoutCheckoutScore = 40
	highTheftDwellScore      = 30
	torsoRatioSpikeScore     = 30

	// highTheftDwellThresholdSec is the sustained dwell inside a
	// high-theft zone that counts as a signal.
	highTheftDwellThresholdSec = 10

	// torsoSpikeFactor: the latest torso height/width ratio counts as a
	// spike when it drops below this fraction of the historical median
	// (posture collapse consistent with crouching or concealing).
	torsoSpikeFactor = 0.75

	// torsoMinHistory is the minimum bbox history needed before a ratio
	// spike is meaningful.
	torsoMinHistory = 5
)

// Input is one per-frame evaluation of a tracked person.
type Input struct {
	Track       *track.Person
	CameraID    string
	Location    string
	Zones       []zone.Zone
	ZoneHistory []zone.Visit
	NowMS       int64

	// FrameW/FrameH convert pixel bboxes to normalized zone coordinates.
	// Leave zero when bboxes are already normalized.
	FrameW float64
	FrameH float64
}

// Result is the scored outcome.
type Result struct {
	Score               int      `json:"suspicion_score"`
	Reasons             []string `json:"reasons"`
	ExitWithoutCheckout bool     `json:"exit_without_checkout"`
	DwellHighTheftSec   float64  `json:"dwell_high_theft_sec"`
	TorsoRatioSpike     bool     `json:"torso_ratio_spike"`
}

// Evaluate scores one track observation. Recomputed per evaluation; the
// result is never persisted independently.
func Evaluate(in Input) Result {
	var res Result
	if in.Track == nil {
		return res
	}

	pos := position(in)
	inExit := false
	for _, z := range zone.Containing(pos, in.Zones) {
		if z.Type == zone.Exit {
			inExit = true
			break
		}
	}

	if inExit && !zone.Visited(in.ZoneHistory, zone.Checkout) {
		res.ExitWithoutCheckout = true
		res.Score += exitWithoutCheckoutScore
		res.Reasons = append(res.Reasons, "exit_without_checkout")
	}

	res.DwellHighTheftSec = float64(zone.DwellMS(in.ZoneHistory, zone.HighTheft, in.NowMS)) / 1000
	if res.DwellHighTheftSec >= highTheftDwellThresholdSec {
		res.Score += highTheftDwellScore
		res.Reasons = append(res.Reasons, fmt.Sprintf("high_theft_dwell_%.0fs", res.DwellHighTheftSec))
	}

	if torsoSpike(in.Track) {
		res.TorsoRatioSpike = true
		res.Score += torsoRatioSpikeScore
		res.Reasons = append(res.Reasons, "torso_ratio_spike")
	}

	res.Score = Clamp(res.Score)
	return res
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// position returns the bottom-center of the track bbox in zone coordinates.
func position(in Input) zone.Point {
	b := in.Track.Bbox
	x := (b.X1 + b.X2) / 2
	y := b.Y2
	if in.FrameW > 0 && in.FrameH > 0 {
		x /= in.FrameW
		y /= in.FrameH
	}
	return zone.Point{X: x, Y: y}
}

// torsoSpike reports a sudden drop in the bbox height/width ratio relative
// to the track's historical median.
func torsoSpike(p *track.Person) bool {
	if len(p.BboxHistory) < torsoMinHistory {
		return false
	}
	ratios := make([]float64, 0, len(p.BboxHistory))
	for _, b := range p.BboxHistory {
		if w := b.Width(); w > 0 {
			ratios = append(ratios, b.Height()/w)
		}
	}
	if len(ratios) < torsoMinHistory {
		return false
	}
	latest := ratios[len(ratios)-1]
	med := median(ratios[:len(ratios)-1])
	return med > 0 && latest < med*torsoSpikeFactor
}

func median(vals []float64) float64 {
	s := make([]float64, len(vals))
	copy(s, vals)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
