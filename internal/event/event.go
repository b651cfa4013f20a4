// Package event defines the canonical shoplifting incident descriptor and
// its wire validator. Events are immutable once constructed.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the fixed event-type tag every valid event carries.
const Type = "shoplifting_detected"

// Evidence is optional supporting material attached to an event.
type Evidence struct {
	KeyframePath string `json:"keyframe_path,omitempty"`
	TrackID      string `json:"track_id,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Event is one externally validated shoplifting incident.
type Event struct {
	EventType  string    `json:"event_type"`
	CameraID   string    `json:"camera_id"`
	Location   string    `json:"location"`
	Confidence float64   `json:"confidence"`
	Timestamp  string    `json:"timestamp"` // ISO-8601
	Evidence   *Evidence `json:"evidence,omitempty"`
}

// New constructs an event with a clamped confidence and the given time.
func New(cameraID, location string, confidence float64, at time.Time) Event {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Event{
		EventType:  Type,
		CameraID:   cameraID,
		Location:   location,
		Confidence: confidence,
		Timestamp:  at.UTC().Format(time.RFC3339),
	}
}

// Parse decodes and validates an arbitrary JSON object as an Event.
func Parse(data []byte) (*Event, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("event: not an object: %w", err)
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("event: decode: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if _, ok := raw["timestamp"]; !ok {
		return nil, fmt.Errorf("event: missing timestamp")
	}
	return &e, nil
}

// Validate checks the event shape: fixed event-type tag, non-empty string
// camera_id and location, confidence in [0,1], timestamp present.
func (e Event) Validate() error {
	if e.EventType != Type {
		return fmt.Errorf("event: wrong event_type %q", e.EventType)
	}
	if e.CameraID == "" {
		return fmt.Errorf("event: missing camera_id")
	}
	if e.Location == "" {
		return fmt.Errorf("event: missing location")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("event: confidence %v out of [0,1]", e.Confidence)
	}
	if e.Timestamp == "" {
		return fmt.Errorf("event: missing timestamp")
	}
	return nil
}
