// Package app holds the per-profile application state and the pure
// reducers that change it. Every reducer takes a State and returns the next
// one; nothing in here performs I/O.
package app

import (
	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	"github.com/example/skate-spots/internal/mapview"
	"github.com/example/skate-spots/internal/models"
)

type Tab string

const (
	TabTricks Tab = "tricks"
	TabEvents Tab = "events"
)

const (
	// MarkerFocusZoom is the zoom used when the map recenters on a marker
	// or a search result.
	MarkerFocusZoom = 16

	DefaultUsername = "Skater"
	DefaultPhotoURL = "https://placehold.co/300x300"
	MinUsernameLen  = 3
)

// Selection identifies the marker the user last picked. Directory markers
// and the profile's own tricks and events share it.
type Selection struct {
	Kind mapview.Category `json:"kind"`
	ID   string           `json:"id"`
	Lat  float64          `json:"lat"`
	Lng  float64          `json:"lng"`
}

func (s Selection) Coord() models.Coord { return models.Coord{Lat: s.Lat, Lng: s.Lng} }

// SelectionOf builds the selection for one of the profile's spots.
func SelectionOf(s models.Spot) Selection {
	c := s.Coord()
	return Selection{Kind: mapview.Category(s.Kind), ID: s.ID(), Lat: c.Lat, Lng: c.Lng}
}

// ListState keeps per-card UI flags keyed by record id.
type ListState struct {
	Expanded map[string]bool `json:"expanded,omitempty"`
	Liked    map[string]bool `json:"liked,omitempty"`
}

func (l ListState) IsExpanded(id string) bool { return l.Expanded[id] }

func (l ListState) IsLiked(id string) bool { return l.Liked[id] }

// Layout is the sidebar and fullscreen chrome around the map. Width is a
// percentage of the window.
type Layout struct {
	SidebarVisible bool    `json:"sidebarVisible"`
	Fullscreen     bool    `json:"fullscreen"`
	SidebarWidth   float64 `json:"sidebarWidth"`
}

const (
	DefaultSidebarWidth = 25
	MinSidebarWidth     = 20
	MaxSidebarWidth     = 50
)

// State is everything one profile sees. The first block is persisted; the
// rest lives only as long as the process.
type State struct {
	Tricks        []models.Trick        `json:"tricks"`
	Events        []models.Event        `json:"events"`
	Friends       []models.Friend       `json:"friends"`
	HomeSkatepark *models.HomeSkatepark `json:"homeSkatepark"`
	Username      string                `json:"username"`

	UserID            string               `json:"userId"`
	ActiveTab         Tab                  `json:"activeTab"`
	Viewport          models.Viewport      `json:"viewport"`
	ShowAddTrick      bool                 `json:"showAddTrick"`
	ShowAddEvent      bool                 `json:"showAddEvent"`
	SelectedLocation  *models.Coord        `json:"selectedLocation"`
	SelectedSpot      *Selection           `json:"selectedSpot"`
	SelectedSkatepark *directory.Skatepark `json:"selectedSkatepark"`
	Layers            mapview.Layers       `json:"layers"`
	TrickList         ListState            `json:"trickList"`
	EventList         ListState            `json:"eventList"`
	ShowFriends       bool                 `json:"showFriends"`
	Layout            Layout               `json:"layout"`
	Search            geocode.SearchBox    `json:"search"`
}

// NewState is the state of a profile that has never saved anything.
func NewState(userID string, friends []models.Friend) State {
	return State{
		Tricks:    []models.Trick{},
		Events:    []models.Event{},
		Friends:   append([]models.Friend{}, friends...),
		Username:  DefaultUsername,
		UserID:    userID,
		ActiveTab: TabTricks,
		Viewport:  geo.USABounds.Initial(),
		Layers:    mapview.DefaultLayers(),
		Layout:    Layout{SidebarVisible: true, SidebarWidth: DefaultSidebarWidth},
		Search:    geocode.NewSearchBox(),
	}
}

// Spots lists the tricks or events of the active tab as map spots.
func (s State) Spots() []models.Spot {
	if s.ActiveTab == TabEvents {
		out := make([]models.Spot, 0, len(s.Events))
		for _, e := range s.Events {
			out = append(out, models.NewEventSpot(e))
		}
		return out
	}
	out := make([]models.Spot, 0, len(s.Tricks))
	for _, t := range s.Tricks {
		out = append(out, models.NewTrickSpot(t))
	}
	return out
}

// MarkerInput is the render input for the map of this state.
func (s State) MarkerInput(dir *directory.Directory) mapview.Input {
	in := mapview.Input{
		Layers:    s.Layers,
		Spots:     s.Spots(),
		Directory: dir,
		Pending:   s.SelectedLocation,
	}
	if s.SelectedSpot != nil {
		in.SelectedID = s.SelectedSpot.ID
	}
	return in
}

func (s State) FriendCount() int { return len(s.Friends) }

func (s State) FormOpen() bool { return s.ShowAddTrick || s.ShowAddEvent }
