// Package zone models store floor zones (checkout, exit, high-theft, …) as
// polygons over normalized coordinates and records which zones a track has
// visited.
package zone

// Type classifies a store zone.
type Type string

const (
	HighTheft Type = "high_theft"
	Checkout  Type = "checkout"
	Exit      Type = "exit"
	Entrance  Type = "entrance"
	General   Type = "general"
	StaffOnly Type = "staff_only"
)

// Point is a normalized 0–1 floor coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zone is one configured store zone.
type Zone struct {
	ID      string  `json:"id"      yaml:"id"`
	Name    string  `json:"name"    yaml:"name"`
	Type    Type    `json:"type"    yaml:"type"`
	Polygon []Point `json:"polygon" yaml:"polygon"`
	Enabled *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Active reports whether the zone participates in evaluation.
// Zones are enabled unless explicitly disabled.
func (z Zone) Active() bool {
	return z.Enabled == nil || *z.Enabled
}

// Contains reports whether p falls inside the zone polygon (ray casting).
func (z Zone) Contains(p Point) bool {
	n := len(z.Polygon)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := z.Polygon[i], z.Polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// Containing returns the active zones that contain p, in config order.
func Containing(p Point, zones []Zone) []Zone {
	var out []Zone
	for _, z := range zones {
		if z.Active() && z.Contains(p) {
			out = append(out, z)
		}
	}
	return out
}

// Visit is one zone-entry record in a track's zone history.
type Visit struct {
	ZoneID    string `json:"zone_id"`
	ZoneType  Type   `json:"zone_type"`
	EnteredMS int64  `json:"entered_ms"`
}

// Visited reports whether the history contains any visit of the given type.
func Visited(history []Visit, t Type) bool {
	for _, v := range history {
		if v.ZoneType == t {
			return true
		}
	}
	return false
}

// DwellMS returns how long the track has been in its most recent visit of
// the given type, or 0 if the latest matching visit is absent.
func DwellMS(history []Visit, t Type, nowMS int64) int64 {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ZoneType == t {
			if d := nowMS - history[i].EnteredMS; d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}
