// Package track matches per-frame person detections into persistent tracks
// using bounding-box overlap (IOU). Track identities are stable for the same
// physical subject within a session and monotonically allocated (t1, t2, …).
package track

import (
	"fmt"
	"sync"
)

// matchThreshold is the minimum IOU for a detection to merge into an
// existing track.
const matchThreshold = 0.3

// maxHistory bounds bbox_history growth per track. Oldest entries are
// dropped first.
const maxHistory = 64

// Detection is one observed person bounding box in a single frame.
type Detection struct {
	Bbox       Bbox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Person is a tracked person across frames.
type Person struct {
	TrackID     string  `json:"track_id"`
	Bbox        Bbox    `json:"bbox"`
	Confidence  float64 `json:"confidence"`
	BboxHistory []Bbox  `json:"bbox_history"`
	FirstSeen   int64   `json:"first_seen"` // unix ms
	LastSeen    int64   `json:"last_seen"`  // unix ms
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxIdle evicts tracks unseen for longer than idleMS during Update.
// Zero (the default) disables eviction.
func WithMaxIdle(idleMS int64) Option {
	return func(t *Tracker) { t.maxIdleMS = idleMS }
}

// Tracker holds active tracks and allocates identifiers.
// Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	tracks    []*Person
	nextID    int
	maxIdleMS int64
}

// NewTracker creates an empty tracker. The first allocated id is "t1".
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{nextID: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update matches the frame's detections against active tracks and returns
// the updated or newly created track for each detection, in input order.
// A detection merges into the active track with the highest IOU above the
// match threshold; otherwise it starts a new track. Unmatched existing
// tracks are retained unless idle eviction is enabled.
func (t *Tracker) Update(detections []Detection, nowMS int64) []*Person {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxIdleMS > 0 {
		t.evictIdle(nowMS)
	}

	out := make([]*Person, 0, len(detections))
	claimed := make(map[*Person]bool)

	for _, det := range detections {
		best := t.bestMatch(det.Bbox, claimed)
		if best == nil {
			p := &Person{
				TrackID:     fmt.Sprintf("t%d", t.nextID),
				Bbox:        det.Bbox,
				Confidence:  det.Confidence,
				BboxHistory: []Bbox{det.Bbox},
				FirstSeen:   nowMS,
				LastSeen:    nowMS,
			}
			t.nextID++
			t.tracks = append(t.tracks, p)
			claimed[p] = true
			out = append(out, p)
			continue
		}

		best.Bbox = det.Bbox
		best.Confidence = det.Confidence
		best.LastSeen = nowMS
		best.BboxHistory = append(best.BboxHistory, det.Bbox)
		if len(best.BboxHistory) > maxHistory {
			best.BboxHistory = best.BboxHistory[len(best.BboxHistory)-maxHistory:]
		}
		claimed[best] = true
		out = append(out, best)
	}

	return out
}

// bestMatch returns the unclaimed active track with the highest IOU above
// the threshold, or nil.
func (t *Tracker) bestMatch(b Bbox, claimed map[*Person]bool) *Person {
	var best *Person
	bestIOU := matchThreshold
	for _, p := range t.tracks {
		if claimed[p] {
			continue
		}
		if iou := IOU(p.Bbox, b); iou > bestIOU {
			best = p
			bestIOU = iou
		}
	}
	return best
}

func (t *Tracker) evictIdle(nowMS int64) {
	kept := t.tracks[:0]
	for _, p := range t.tracks {
		if nowMS-p.LastSeen <= t.maxIdleMS {
			kept = append(kept, p)
		}
	}
	t.tracks = kept
}

// Active returns a snapshot of the currently active tracks.
func (t *Tracker) Active() []*Person {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Person, len(t.tracks))
	copy(out, t.tracks)
	return out
}

// Reset clears all state and restarts identifier allocation from t1.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.nextID = 1
}
