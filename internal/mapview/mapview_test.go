package mapview

import (
	"testing"

	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/models"
)

func fixtureInput() Input {
	return Input{
		Layers:    DefaultLayers(),
		Directory: directory.Default(),
		Spots: []models.Spot{
			models.NewTrickSpot(models.Trick{ID: "t1", TrickName: "Kickflip", Lat: 34.0522, Lng: -118.2437}),
			models.NewEventSpot(models.Event{ID: "e1", Title: "Sunset Session", Lat: 40, Lng: -75}),
		},
	}
}

func TestTogglingParksHidesOnlyParks(t *testing.T) {
	in := fixtureInput()
	before := Count(Render(in))
	if before[CategoryPark] == 0 || before[CategoryTrick] != 1 || before[CategoryEvent] != 1 {
		t.Fatalf("unexpected initial markers %v", before)
	}

	layers, ok := in.Layers.Toggle(LayerParks)
	if !ok {
		t.Fatalf("expected parks to be a known layer")
	}
	in.Layers = layers
	after := Count(Render(in))
	if after[CategoryPark] != 0 {
		t.Fatalf("expected no park markers, got %d", after[CategoryPark])
	}
	if after[CategoryTrick] != 1 || after[CategoryEvent] != 1 || after[CategoryShop] != before[CategoryShop] {
		t.Fatalf("other layers changed: %v", after)
	}
	if len(directory.Default().Skateparks()) != before[CategoryPark] {
		t.Fatalf("toggle must not touch directory data")
	}
}

func TestUnknownLayerIsIgnored(t *testing.T) {
	l := DefaultLayers()
	got, ok := l.Toggle("satellite")
	if ok || got != l {
		t.Fatalf("expected unknown layer to be ignored")
	}
}

func TestSelectedMarkerStyle(t *testing.T) {
	in := fixtureInput()
	in.SelectedID = "t1"
	for _, m := range Render(in) {
		if m.ID != "t1" {
			if m.Selected || m.Radius != RadiusNormal {
				t.Fatalf("only t1 should be selected, got %+v", m)
			}
			continue
		}
		if !m.Selected || m.Radius != RadiusSelected || m.Color != "#4F46E5" || m.Glyph != "🛹" {
			t.Fatalf("unexpected selected marker %+v", m)
		}
	}
}

func TestPendingPlacementDrawnOnTop(t *testing.T) {
	in := fixtureInput()
	in.Pending = &models.Coord{Lat: 40, Lng: -75}
	ms := Render(in)
	last := ms[len(ms)-1]
	if last.Category != CategorySelected || last.ZIndex != 100 || last.Color != "#4B5563" || last.Radius != RadiusSelected {
		t.Fatalf("unexpected placement marker %+v", last)
	}
}

func TestNeedsRerender(t *testing.T) {
	a := fixtureInput()
	b := fixtureInput()
	if NeedsRerender(a, b) {
		t.Fatalf("identical inputs should not rerender")
	}
	b.Pending = &models.Coord{Lat: 1, Lng: 2}
	if !NeedsRerender(a, b) {
		t.Fatalf("pending placement should rerender")
	}
	c := fixtureInput()
	c.Spots = c.Spots[:1]
	if !NeedsRerender(a, c) {
		t.Fatalf("spot removal should rerender")
	}
	d := fixtureInput()
	d.SelectedID = "e1"
	if !NeedsRerender(a, d) {
		t.Fatalf("selection change should rerender")
	}
}

type recorder struct {
	markers []Marker
	renders int
}

func (r *recorder) RenderMarkers(ms []Marker) { r.markers = ms; r.renders++ }

func (r *recorder) OnClick(func(ClickEvent)) {}

func (r *recorder) OnViewportChange(func(models.Viewport)) {}

func TestViewSkipsUnchangedInput(t *testing.T) {
	r := &recorder{}
	v := NewView(r)
	if !v.Update(fixtureInput()) {
		t.Fatalf("first update must draw")
	}
	if v.Update(fixtureInput()) {
		t.Fatalf("identical input should not redraw")
	}
	in := fixtureInput()
	in.Layers.Parks = false
	if !v.Update(in) || r.renders != 2 {
		t.Fatalf("layer toggle should redraw, renders=%d", r.renders)
	}
	if Count(r.markers)[CategoryPark] != 0 {
		t.Fatalf("parks still drawn after toggle")
	}
}
