package suspicion

import (
	"testing"

	"github.com/storewatch/storewatch/internal/track"
	"github.com/storewatch/storewatch/internal/zone"
)

func exitZone() zone.Zone {
	return zone.Zone{
		ID:   "exit-1",
		Type: zone.Exit,
		Polygon: []zone.Point{
			{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		},
	}
}

func person(b track.Bbox) *track.Person {
	return &track.Person{TrackID: "t1", Bbox: b, BboxHistory: []track.Bbox{b}}
}

func TestExitWithoutCheckout(t *testing.T) {
	in := Input{
		Track: person(track.Bbox{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6}),
		Zones: []zone.Zone{exitZone()},
		NowMS: 1000,
	}
	res := Evaluate(in)
	if !res.ExitWithoutCheckout {
		t.Fatal("expected exit_without_checkout")
	}
	if res.Score != exitWithoutCheckoutScore {
		t.Errorf("expected score %d, got %d", exitWithoutCheckoutScore, res.Score)
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != "exit_without_checkout" {
		t.Errorf("unexpected reasons %v", res.Reasons)
	}
}

func TestCheckoutVisitSuppressesExitSignal(t *testing.T) {
	in := Input{
		Track: person(track.Bbox{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6}),
		Zones: []zone.Zone{exitZone()},
		ZoneHistory: []zone.Visit{
			{ZoneID: "c1", ZoneType: zone.Checkout, EnteredMS: 500},
		},
		NowMS: 1000,
	}
	res := Evaluate(in)
	if res.ExitWithoutCheckout {
		t.Error("checkout visit should suppress the exit signal")
	}
}

func TestHighTheftDwell(t *testing.T) {
	in := Input{
		Track: person(track.Bbox{X1: 2, Y1: 2, X2: 3, Y2: 3}),
		ZoneHistory: []zone.Visit{
			{ZoneID: "h1", ZoneType: zone.HighTheft, EnteredMS: 0},
		},
		NowMS: 15000,
	}
	res := Evaluate(in)
	if res.DwellHighTheftSec != 15 {
		t.Errorf("expected 15s dwell, got %f", res.DwellHighTheftSec)
	}
	if res.Score != highTheftDwellScore {
		t.Errorf("expected score %d, got %d", highTheftDwellScore, res.Score)
	}
}

func TestDwellBelowThresholdNotScored(t *testing.T) {
	in := Input{
		Track: person(track.Bbox{X1: 2, Y1: 2, X2: 3, Y2: 3}),
		ZoneHistory: []zone.Visit{
			{ZoneID: "h1", ZoneType: zone.HighTheft, EnteredMS: 0},
		},
		NowMS: 5000,
	}
	res := Evaluate(in)
	if res.Score != 0 {
		t.Errorf("expected 0, got %d", res.Score)
	}
}

func TestTorsoRatioSpike(t *testing.T) {
	// Steady upright boxes, then a sudden squat posture.
	tall := track.Bbox{X1: 0, Y1: 0, X2: 50, Y2: 150} // ratio 3.0
	squat := track.Bbox{X1: 0, Y1: 0, X2: 60, Y2: 60} // ratio 1.0
	p := &track.Person{
		TrackID:     "t1",
		Bbox:        squat,
		BboxHistory: []track.Bbox{tall, tall, tall, tall, tall, squat},
	}
	res := Evaluate(Input{Track: p, NowMS: 1000})
	if !res.TorsoRatioSpike {
		t.Fatal("expected torso ratio spike")
	}
	if res.Score != torsoRatioSpikeScore {
		t.Errorf("expected %d, got %d", torsoRatioSpikeScore, res.Score)
	}
}

func TestNoSpikeWithShortHistory(t *testing.T) {
	tall := track.Bbox{X1: 0, Y1: 0, X2: 50, Y2: 150}
	squat := track.Bbox{X1: 0, Y1: 0, X2: 60, Y2: 60}
	p := &track.Person{TrackID: "t1", Bbox: squat, BboxHistory: []track.Bbox{tall, squat}}
	if res := Evaluate(Input{Track: p, NowMS: 1000}); res.TorsoRatioSpike {
		t.Error("spike should require history")
	}
}

func TestScoreClampedAt100(t *testing.T) {
	tall := track.Bbox{X1: 0.45, Y1: 0, X2: 0.55, Y2: 0.9}
	squat := track.Bbox{X1: 0.4, Y1: 0.5, X2: 0.6, Y2: 0.7}
	p := &track.Person{
		TrackID:     "t1",
		Bbox:        squat,
		BboxHistory: []track.Bbox{tall, tall, tall, tall, tall, squat},
	}
	in := Input{
		Track: p,
		Zones: []zone.Zone{exitZone()},
		ZoneHistory: []zone.Visit{
			{ZoneID: "h1", ZoneType: zone.HighTheft, EnteredMS: 0},
		},
		NowMS: 60000,
	}
	res := Evaluate(in)
	if res.Score < 0 || res.Score > 100 {
		t.Errorf("score out of range: %d", res.Score)
	}
	if res.Score != 100 {
		t.Errorf("all signals should cap at 100, got %d", res.Score)
	}
}

func TestClampBounds(t *testing.T) {
	if Clamp(-5) != 0 {
		t.Error("negative should clamp to 0")
	}
	if Clamp(250) != 100 {
		t.Error("large should clamp to 100")
	}
	if Clamp(55) != 55 {
		t.Error("in-range should pass through")
	}
}
