package geo

import (
	"math"
	"sort"
	"sync"

	"github.com/example/skate-spots/internal/models"
)

// Bounds is a lat/lng rectangle. It never crosses the antimeridian.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether c lies inside b, edges included.
func (b Bounds) Contains(c models.Coord) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lng >= b.West && c.Lng <= b.East
}

// MapBounds is the fixed viewport envelope the map is allowed to show.
type MapBounds struct {
	Center  models.Coord `json:"center"`
	Zoom    float64      `json:"zoom"`
	MinZoom float64      `json:"minZoom"`
	MaxZoom float64      `json:"maxZoom"`
	Bounds  Bounds       `json:"bounds"`
}

// USABounds covers the continental United States.
var USABounds = MapBounds{
	Center:  models.Coord{Lat: 39.8283, Lng: -98.5795},
	Zoom:    4,
	MinZoom: 3,
	MaxZoom: 18,
	Bounds: Bounds{
		North: 49.3457868,
		South: 24.396308,
		East:  -66.945392,
		West:  -124.848974,
	},
}

// Clamp pulls every component of v into the envelope. Out-of-range input is
// never rejected.
func (m MapBounds) Clamp(v models.Viewport) models.Viewport {
	return models.Viewport{
		Latitude:  clamp(v.Latitude, m.Bounds.South, m.Bounds.North),
		Longitude: clamp(v.Longitude, m.Bounds.West, m.Bounds.East),
		Zoom:      clamp(v.Zoom, m.MinZoom, m.MaxZoom),
	}
}

// Initial is the viewport shown before the user has moved the map.
func (m MapBounds) Initial() models.Viewport {
	return models.Viewport{Latitude: m.Center.Lat, Longitude: m.Center.Lng, Zoom: m.Zoom}
}

func clamp(v, lo, hi float64) float64 {
	// NaN compares false everywhere; pin it to the lower edge.
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Nearby is the read side of a spot index.
type Nearby interface {
	Nearby(lat, lng float64, limit int) []Hit
}

// Geo is the minimal interface required by the spot handlers and the indexer.
type Geo interface {
	Nearby
	Upsert(e models.SpotEvent)
	Remove(e models.SpotEvent)
}

// Hit is one indexed spot and its distance from the query point in meters.
type Hit struct {
	Key      string       `json:"key"`
	Loc      models.Coord `json:"loc"`
	Distance float64      `json:"distance_m"`
}

type Index struct {
	mu    sync.RWMutex
	spots map[string]models.Coord
}

func NewIndex() *Index {
	return &Index{spots: make(map[string]models.Coord)}
}

func (g *Index) Upsert(e models.SpotEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spots[e.IndexKey()] = e.Loc
}

func (g *Index) Remove(e models.SpotEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.spots, e.IndexKey())
}

// Nearby is a full scan; the redis index handles larger sets.
func (g *Index) Nearby(lat, lng float64, limit int) []Hit {
	g.mu.RLock()
	hits := make([]Hit, 0, len(g.spots))
	for k, c := range g.spots {
		hits = append(hits, Hit{Key: k, Loc: c, Distance: Haversine(lat, lng, c.Lat, c.Lng)})
	}
	g.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].Key < hits[j].Key
		}
		return hits[i].Distance < hits[j].Distance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
