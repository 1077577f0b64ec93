package models

import (
	"encoding/json"
	"testing"
)

func TestFormatCoordinates(t *testing.T) {
	got := FormatCoordinates(Coord{Lat: 34.0522, Lng: -118.2437})
	if got != "34.0522°N, -118.2437°W" {
		t.Fatalf("unexpected coordinates %q", got)
	}
}

func TestSpotJSONCarriesKind(t *testing.T) {
	s := NewEventSpot(Event{ID: "1", Title: "Sunset Session", Participants: []Participant{{UserID: "user-1"}}})
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var head map[string]any
	if err := json.Unmarshal(b, &head); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if head["type"] != "event" || head["title"] != "Sunset Session" {
		t.Fatalf("unexpected json %s", b)
	}

	var back Spot
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("decode spot: %v", err)
	}
	if back.Kind != KindEvent || back.Event == nil || back.ID() != "1" {
		t.Fatalf("unexpected spot %+v", back)
	}
}

func TestSpotValidateRejectsMixedPayload(t *testing.T) {
	s := Spot{Kind: KindTrick, Trick: &Trick{}, Event: &Event{}}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for mixed spot")
	}
	if err := (Spot{Kind: "park"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestStanceValid(t *testing.T) {
	if !StanceNollie.Valid() || Stance("mongo").Valid() {
		t.Fatalf("unexpected stance validation")
	}
}
