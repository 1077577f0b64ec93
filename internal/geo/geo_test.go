package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/example/skate-spots/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestClampAlwaysInsideBounds(t *testing.T) {
	m := USABounds
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		v := models.Viewport{
			Latitude:  r.Float64()*360 - 180,
			Longitude: r.Float64()*720 - 360,
			Zoom:      r.Float64()*40 - 10,
		}
		got := m.Clamp(v)
		if got.Latitude < m.Bounds.South || got.Latitude > m.Bounds.North {
			t.Fatalf("lat %f escaped bounds for %+v", got.Latitude, v)
		}
		if got.Longitude < m.Bounds.West || got.Longitude > m.Bounds.East {
			t.Fatalf("lng %f escaped bounds for %+v", got.Longitude, v)
		}
		if got.Zoom < m.MinZoom || got.Zoom > m.MaxZoom {
			t.Fatalf("zoom %f escaped range for %+v", got.Zoom, v)
		}
	}
}

func TestClampKeepsInsideValues(t *testing.T) {
	v := models.Viewport{Latitude: 40, Longitude: -75, Zoom: 10}
	if got := USABounds.Clamp(v); got != v {
		t.Fatalf("expected %+v untouched, got %+v", v, got)
	}
}

func TestClampEdgesAndNaN(t *testing.T) {
	got := USABounds.Clamp(models.Viewport{Latitude: 90, Longitude: 0, Zoom: math.NaN()})
	want := models.Viewport{Latitude: 49.3457868, Longitude: -66.945392, Zoom: 3}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestContainsIncludesEdges(t *testing.T) {
	b := USABounds.Bounds
	if !b.Contains(models.Coord{Lat: b.North, Lng: b.West}) {
		t.Fatalf("expected corner to be inside")
	}
	if b.Contains(models.Coord{Lat: 51.5, Lng: -0.12}) {
		t.Fatalf("london is not in the USA")
	}
}

func TestIndexNearbyOrdersByDistance(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(models.SpotEvent{Kind: models.KindTrick, ID: "far", ProfileID: "p1", Loc: models.Coord{Lat: 40.7, Lng: -74.0}})
	idx.Upsert(models.SpotEvent{Kind: models.KindTrick, ID: "near", ProfileID: "p1", Loc: models.Coord{Lat: 34.05, Lng: -118.25}})
	idx.Upsert(models.SpotEvent{Kind: models.KindEvent, ID: "gone", ProfileID: "p1", Loc: models.Coord{Lat: 34.05, Lng: -118.24}})
	idx.Remove(models.SpotEvent{Kind: models.KindEvent, ID: "gone", ProfileID: "p1"})

	hits := idx.Nearby(34.0522, -118.2437, 5)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Key != "p1:trick:near" || hits[1].Key != "p1:trick:far" {
		t.Fatalf("unexpected order %+v", hits)
	}
	if got := idx.Nearby(34.0522, -118.2437, 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(got))
	}
}
