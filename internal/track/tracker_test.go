package track

import "testing"

func det(x1, y1, x2, y2, conf float64) Detection {
	return Detection{Bbox: Bbox{X1: x1, Y1: y1, X2: x2, Y2: y2}, Confidence: conf}
}

func TestIOUIdentical(t *testing.T) {
	b := Bbox{X1: 0, Y1: 0, X2: 100, Y2: 100}
	if iou := IOU(b, b); iou != 1 {
		t.Errorf("expected 1, got %f", iou)
	}
}

func TestIOUDisjoint(t *testing.T) {
	a := Bbox{X1: 0, Y1: 0, X2: 50, Y2: 50}
	b := Bbox{X1: 100, Y1: 100, X2: 150, Y2: 150}
	if iou := IOU(a, b); iou != 0 {
		t.Errorf("expected 0, got %f", iou)
	}
}

func TestIOUZeroArea(t *testing.T) {
	a := Bbox{X1: 10, Y1: 10, X2: 10, Y2: 10}
	b := Bbox{X1: 0, Y1: 0, X2: 50, Y2: 50}
	if iou := IOU(a, b); iou != 0 {
		t.Errorf("expected 0 for degenerate box, got %f", iou)
	}
}

func TestUpdateCreatesTrack(t *testing.T) {
	tr := NewTracker()
	got := tr.Update([]Detection{det(0, 0, 50, 100, 0.9)}, 1000)
	if len(got) != 1 {
		t.Fatalf("expected 1 track, got %d", len(got))
	}
	if got[0].TrackID != "t1" {
		t.Errorf("expected t1, got %s", got[0].TrackID)
	}
	if got[0].FirstSeen != 1000 || got[0].LastSeen != 1000 {
		t.Errorf("unexpected timestamps: %+v", got[0])
	}
}

func TestUpdateDistinctIDsForDisjointDetections(t *testing.T) {
	tr := NewTracker()
	got := tr.Update([]Detection{
		det(0, 0, 50, 100, 0.9),
		det(200, 200, 250, 300, 0.9),
		det(400, 0, 450, 100, 0.9),
	}, 1000)
	if len(got) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.TrackID] {
			t.Errorf("duplicate id %s", p.TrackID)
		}
		seen[p.TrackID] = true
	}
}

func TestUpdateMatchesOverlap(t *testing.T) {
	tr := NewTracker()
	first := tr.Update([]Detection{det(0, 0, 100, 100, 0.8)}, 1000)
	second := tr.Update([]Detection{det(5, 5, 105, 105, 0.95)}, 2000)

	if second[0].TrackID != first[0].TrackID {
		t.Errorf("expected same id, got %s vs %s", second[0].TrackID, first[0].TrackID)
	}
	if second[0].Confidence != 0.95 {
		t.Errorf("confidence not updated: %f", second[0].Confidence)
	}
	if second[0].LastSeen != 2000 {
		t.Errorf("last_seen not updated: %d", second[0].LastSeen)
	}
	if len(second[0].BboxHistory) < 2 {
		t.Errorf("history not appended: %d", len(second[0].BboxHistory))
	}
}

func TestUpdateDisjointGetsNewID(t *testing.T) {
	tr := NewTracker()
	first := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)}, 1000)
	second := tr.Update([]Detection{det(300, 300, 350, 350, 0.9)}, 2000)
	if second[0].TrackID == first[0].TrackID {
		t.Error("disjoint detection should not reuse track id")
	}
}

func TestIDsMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(0, 0, 10, 10, 0.9)}, 1000)
	tr.Update([]Detection{det(100, 100, 110, 110, 0.9)}, 1001)
	got := tr.Update([]Detection{det(500, 500, 510, 510, 0.9)}, 1002)
	if got[0].TrackID != "t3" {
		t.Errorf("expected t3, got %s", got[0].TrackID)
	}
}

func TestResetRestartsAllocation(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(0, 0, 50, 50, 0.9)}, 1000)
	tr.Reset()
	if n := len(tr.Active()); n != 0 {
		t.Fatalf("expected no active tracks after reset, got %d", n)
	}
	got := tr.Update([]Detection{det(0, 0, 50, 50, 0.9)}, 2000)
	if got[0].TrackID != "t1" {
		t.Errorf("expected t1 after reset, got %s", got[0].TrackID)
	}
}

func TestHistoryBounded(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < maxHistory+20; i++ {
		tr.Update([]Detection{det(0, 0, 100, 100, 0.9)}, int64(1000+i))
	}
	active := tr.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 track, got %d", len(active))
	}
	if len(active[0].BboxHistory) > maxHistory {
		t.Errorf("history unbounded: %d", len(active[0].BboxHistory))
	}
}

func TestIdleEviction(t *testing.T) {
	tr := NewTracker(WithMaxIdle(5000))
	tr.Update([]Detection{det(0, 0, 50, 50, 0.9)}, 1000)
	// Far-away detection long after the first track went idle.
	tr.Update([]Detection{det(300, 300, 350, 350, 0.9)}, 10000)
	active := tr.Active()
	if len(active) != 1 {
		t.Fatalf("expected idle track evicted, have %d", len(active))
	}
	if active[0].TrackID != "t2" {
		t.Errorf("expected surviving track t2, got %s", active[0].TrackID)
	}
}
