package track

// Bbox is an axis-aligned bounding box. Coordinates may be pixel or
// normalized; IOU is unit-agnostic as long as both boxes agree.
type Bbox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the box width, never negative.
func (b Bbox) Width() float64 {
	if w := b.X2 - b.X1; w > 0 {
		return w
	}
	return 0
}

// Height returns the box height, never negative.
func (b Bbox) Height() float64 {
	if h := b.Y2 - b.Y1; h > 0 {
		return h
	}
	return 0
}

// Area returns the box area, never negative.
func (b Bbox) Area() float64 {
	return b.Width() * b.Height()
}

// IOU returns the intersection-over-union of two boxes in [0,1].
func IOU(a, b Bbox) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
