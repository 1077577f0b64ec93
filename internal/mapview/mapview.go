// Package mapview turns profile state into the marker set drawn on the map.
// Drawing itself happens behind Renderer.
package mapview

import (
	"sync"

	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/models"
)

type Category string

const (
	CategoryTrick    Category = "trick"
	CategoryEvent    Category = "event"
	CategoryShop     Category = "shop"
	CategoryPark     Category = "park"
	CategorySpot     Category = "spot"
	CategorySelected Category = "selected"
)

type palette struct {
	normal, selected string
}

var colors = map[Category]palette{
	CategoryTrick: {"#6366F1", "#4F46E5"},
	CategoryEvent: {"#DB2777", "#BE185D"},
	CategoryShop:  {"#059669", "#047857"},
	CategoryPark:  {"#D97706", "#B45309"},
	CategorySpot:  {"#4F46E5", "#4338CA"},
}

var defaultPalette = palette{"#6B7280", "#4B5563"}

var glyphs = map[Category]string{
	CategoryTrick: "🛹",
	CategoryEvent: "📅",
	CategoryShop:  "🏪",
	CategoryPark:  "🏟️",
	CategorySpot:  "📍",
}

const (
	RadiusNormal   = 10
	RadiusSelected = 12
)

// Color returns the fill for a marker of category c.
func Color(c Category, selected bool) string {
	p, ok := colors[c]
	if !ok {
		p = defaultPalette
	}
	if selected {
		return p.selected
	}
	return p.normal
}

func Glyph(c Category) string {
	if g, ok := glyphs[c]; ok {
		return g
	}
	return "📍"
}

// Layer names a toggleable marker layer.
type Layer string

const (
	LayerTricks Layer = "tricks"
	LayerEvents Layer = "events"
	LayerShops  Layer = "shops"
	LayerParks  Layer = "parks"
	LayerSpots  Layer = "spots"
)

// Layers holds the visibility of each layer. Toggling a layer never touches
// the underlying data.
type Layers struct {
	Tricks bool `json:"tricks"`
	Events bool `json:"events"`
	Shops  bool `json:"shops"`
	Parks  bool `json:"parks"`
	Spots  bool `json:"spots"`
}

func DefaultLayers() Layers {
	return Layers{Tricks: true, Events: true, Shops: true, Parks: true, Spots: true}
}

// Toggle flips one layer. Unknown names leave l unchanged and report false.
func (l Layers) Toggle(name Layer) (Layers, bool) {
	switch name {
	case LayerTricks:
		l.Tricks = !l.Tricks
	case LayerEvents:
		l.Events = !l.Events
	case LayerShops:
		l.Shops = !l.Shops
	case LayerParks:
		l.Parks = !l.Parks
	case LayerSpots:
		l.Spots = !l.Spots
	default:
		return l, false
	}
	return l, true
}

type Marker struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Label    string   `json:"label,omitempty"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Glyph    string   `json:"glyph"`
	Color    string   `json:"color"`
	Radius   int      `json:"radius"`
	Selected bool     `json:"selected"`
	ZIndex   int      `json:"zIndex"`
}

func (m Marker) Coord() models.Coord { return models.Coord{Lat: m.Lat, Lng: m.Lng} }

// Input is everything that decides which markers are drawn.
type Input struct {
	Layers     Layers
	Spots      []models.Spot
	Directory  *directory.Directory
	SelectedID string
	Pending    *models.Coord
}

func newMarker(id, label string, c Category, at models.Coord, selected bool) Marker {
	m := Marker{
		ID:       id,
		Category: c,
		Label:    label,
		Lat:      at.Lat,
		Lng:      at.Lng,
		Glyph:    Glyph(c),
		Color:    Color(c, selected),
		Radius:   RadiusNormal,
		Selected: selected,
		ZIndex:   1,
	}
	if selected {
		m.Radius = RadiusSelected
	}
	return m
}

// Render lists the visible markers: parks, shops, famous spots, then the
// active tab's tricks and events, then the pending placement on top.
func Render(in Input) []Marker {
	var out []Marker
	sel := func(id string) bool { return in.SelectedID != "" && id == in.SelectedID }

	if in.Directory != nil {
		if in.Layers.Parks {
			for _, p := range in.Directory.Skateparks() {
				out = append(out, newMarker(p.ID, p.Name, CategoryPark, p.Coord(), sel(p.ID)))
			}
		}
		if in.Layers.Shops {
			for _, s := range in.Directory.Shops() {
				out = append(out, newMarker(s.ID, s.Name, CategoryShop, s.Coord(), sel(s.ID)))
			}
		}
		if in.Layers.Spots {
			for _, s := range in.Directory.FamousSpots() {
				out = append(out, newMarker(s.ID, s.Name, CategorySpot, s.Coord(), sel(s.ID)))
			}
		}
	}
	if in.Layers.Tricks {
		for _, s := range in.Spots {
			if s.Kind == models.KindTrick && s.Trick != nil {
				out = append(out, newMarker(s.Trick.ID, s.Trick.TrickName, CategoryTrick, s.Coord(), sel(s.Trick.ID)))
			}
		}
	}
	if in.Layers.Events {
		for _, s := range in.Spots {
			if s.Kind == models.KindEvent && s.Event != nil {
				out = append(out, newMarker(s.Event.ID, s.Event.Title, CategoryEvent, s.Coord(), sel(s.Event.ID)))
			}
		}
	}
	if in.Pending != nil {
		m := newMarker("", "", CategorySelected, *in.Pending, true)
		m.ZIndex = 100
		out = append(out, m)
	}
	return out
}

// Count returns the number of markers per category.
func Count(ms []Marker) map[Category]int {
	out := make(map[Category]int)
	for _, m := range ms {
		out[m.Category]++
	}
	return out
}

// NeedsRerender reports whether going from prev to next changes the drawn
// markers: the spot set, the layer toggles, the selected marker or the
// pending placement.
func NeedsRerender(prev, next Input) bool {
	if prev.Layers != next.Layers || prev.SelectedID != next.SelectedID || prev.Directory != next.Directory {
		return true
	}
	if (prev.Pending == nil) != (next.Pending == nil) {
		return true
	}
	if prev.Pending != nil && *prev.Pending != *next.Pending {
		return true
	}
	if len(prev.Spots) != len(next.Spots) {
		return true
	}
	for i := range prev.Spots {
		a, b := prev.Spots[i], next.Spots[i]
		if a.Kind != b.Kind || a.ID() != b.ID() || a.Coord() != b.Coord() {
			return true
		}
	}
	return false
}

// View keeps one Renderer in step with a changing Input.
type View struct {
	mu    sync.Mutex
	r     Renderer
	last  Input
	drawn bool
}

func NewView(r Renderer) *View { return &View{r: r} }

// Update draws in unless it would produce the markers already drawn. It
// reports whether the renderer was called.
func (v *View) Update(in Input) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.drawn && !NeedsRerender(v.last, in) {
		return false
	}
	v.last, v.drawn = in, true
	v.r.RenderMarkers(Render(in))
	return true
}

// ClickEvent is a click on the map surface. Marker is set when the click
// landed on a marker; otherwise At is the clicked point.
type ClickEvent struct {
	At     models.Coord
	Marker *Marker
}

// Renderer is the drawing surface. Implementations draw the markers they
// are given and report user clicks and viewport moves back.
type Renderer interface {
	RenderMarkers(markers []Marker)
	OnClick(fn func(ClickEvent))
	OnViewportChange(fn func(models.Viewport))
}
