package zone

import "sync"

// History accumulates per-track zone visits across frames. A visit is
// recorded when a track enters a zone it was not already inside.
// Safe for concurrent use.
type History struct {
	mu     sync.Mutex
	visits map[string][]Visit
	inside map[string]map[string]bool // track_id -> zone_id -> currently inside
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		visits: make(map[string][]Visit),
		inside: make(map[string]map[string]bool),
	}
}

// Observe updates the history for one track position and returns the
// track's visit list after the update.
func (h *History) Observe(trackID string, p Point, zones []Zone, nowMS int64) []Visit {
	h.mu.Lock()
	defer h.mu.Unlock()

	in := h.inside[trackID]
	if in == nil {
		in = make(map[string]bool)
		h.inside[trackID] = in
	}

	current := make(map[string]bool)
	for _, z := range Containing(p, zones) {
		current[z.ID] = true
		if !in[z.ID] {
			in[z.ID] = true
			h.visits[trackID] = append(h.visits[trackID], Visit{
				ZoneID:    z.ID,
				ZoneType:  z.Type,
				EnteredMS: nowMS,
			})
		}
	}
	for id := range in {
		if !current[id] {
			delete(in, id)
		}
	}

	return h.snapshot(trackID)
}

// Visits returns a copy of the track's visit list.
func (h *History) Visits(trackID string) []Visit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot(trackID)
}

func (h *History) snapshot(trackID string) []Visit {
	src := h.visits[trackID]
	out := make([]Visit, len(src))
	copy(out, src)
	return out
}

// Reset clears all visit state.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visits = make(map[string][]Visit)
	h.inside = make(map[string]map[string]bool)
}
