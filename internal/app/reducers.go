package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	"github.com/example/skate-spots/internal/mapview"
	"github.com/example/skate-spots/internal/models"
)

// ChangeViewport stores v clamped into the map bounds.
func ChangeViewport(s State, v models.Viewport) State {
	s.Viewport = geo.USABounds.Clamp(v)
	return s
}

func focus(s State, c models.Coord) State {
	return ChangeViewport(s, models.Viewport{Latitude: c.Lat, Longitude: c.Lng, Zoom: MarkerFocusZoom})
}

// ClickMap sets the pending placement. Clicks are ignored while a form is
// open and outside the map bounds.
func ClickMap(s State, c models.Coord) State {
	if s.FormOpen() || !geo.USABounds.Bounds.Contains(c) {
		return s
	}
	s.SelectedLocation = &c
	return s
}

// ClickMarker selects a marker and recenters the map on it.
func ClickMarker(s State, sel Selection) State {
	s.SelectedSpot = &sel
	return focus(s, sel.Coord())
}

// ShowOnMap is the list card's map button: it clicks the spot's marker and
// expands its card.
func ShowOnMap(s State, spot models.Spot) State {
	s = ClickMarker(s, SelectionOf(spot))
	switch spot.Kind {
	case models.KindTrick:
		s.TrickList.Expanded = withFlag(s.TrickList.Expanded, spot.ID(), true)
	case models.KindEvent:
		s.EventList.Expanded = withFlag(s.EventList.Expanded, spot.ID(), true)
	}
	return s
}

func ToggleExpanded(s State, kind models.SpotKind, id string) State {
	switch kind {
	case models.KindTrick:
		s.TrickList.Expanded = withFlag(s.TrickList.Expanded, id, !s.TrickList.Expanded[id])
	case models.KindEvent:
		s.EventList.Expanded = withFlag(s.EventList.Expanded, id, !s.EventList.Expanded[id])
	}
	return s
}

func ToggleLiked(s State, id string) State {
	s.TrickList.Liked = withFlag(s.TrickList.Liked, id, !s.TrickList.Liked[id])
	return s
}

// withFlag copies m and sets id. Reducers never write into a map they were
// handed.
func withFlag(m map[string]bool, id string, v bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, b := range m {
		out[k] = b
	}
	if v {
		out[id] = true
	} else {
		delete(out, id)
	}
	return out
}

func withoutFlag(m map[string]bool, id string) map[string]bool {
	if _, ok := m[id]; !ok {
		return m
	}
	return withFlag(m, id, false)
}

func clearSelection(s State, id string) State {
	if s.SelectedSpot != nil && s.SelectedSpot.ID == id {
		s.SelectedSpot = nil
	}
	return s
}

// DeleteTrick removes the trick with id, keeping the order of the rest.
func DeleteTrick(s State, id string) State {
	out := make([]models.Trick, 0, len(s.Tricks))
	for _, t := range s.Tricks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.Tricks = out
	s.TrickList.Expanded = withoutFlag(s.TrickList.Expanded, id)
	s.TrickList.Liked = withoutFlag(s.TrickList.Liked, id)
	return clearSelection(s, id)
}

// DeleteEvent removes the event with id, keeping the order of the rest.
func DeleteEvent(s State, id string) State {
	out := make([]models.Event, 0, len(s.Events))
	for _, e := range s.Events {
		if e.ID != id {
			out = append(out, e)
		}
	}
	s.Events = out
	s.EventList.Expanded = withoutFlag(s.EventList.Expanded, id)
	return clearSelection(s, id)
}

func IsParticipating(e models.Event, userID string) bool { return e.HasParticipant(userID) }

func findEvent(s State, id string) (int, bool) {
	for i, e := range s.Events {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

func replaceEvent(s State, i int, e models.Event) State {
	events := append([]models.Event(nil), s.Events...)
	events[i] = e
	s.Events = events
	return s
}

// JoinEvent adds the profile's user to an event. Joining twice is a no-op.
func JoinEvent(s State, id string) (State, error) {
	i, ok := findEvent(s, id)
	if !ok {
		return s, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	e := s.Events[i]
	if e.HasParticipant(s.UserID) {
		return s, nil
	}
	if e.MaxParticipants > 0 && len(e.Participants) >= e.MaxParticipants {
		return s, ErrEventFull
	}
	e.Participants = append(append([]models.Participant(nil), e.Participants...),
		models.Participant{UserID: s.UserID, Username: s.Username})
	return replaceEvent(s, i, e), nil
}

// LeaveEvent removes the profile's user from an event. The creator stays.
func LeaveEvent(s State, id string) (State, error) {
	i, ok := findEvent(s, id)
	if !ok {
		return s, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	e := s.Events[i]
	if !e.HasParticipant(s.UserID) {
		return s, nil
	}
	if e.UserID == s.UserID {
		return s, ErrOrganizerCannotLeave
	}
	out := make([]models.Participant, 0, len(e.Participants))
	for _, p := range e.Participants {
		if p.UserID != s.UserID {
			out = append(out, p)
		}
	}
	e.Participants = out
	return replaceEvent(s, i, e), nil
}

// ToggleParticipation is the event card's join/leave button.
func ToggleParticipation(s State, id string) (State, error) {
	i, ok := findEvent(s, id)
	if !ok {
		return s, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if s.Events[i].HasParticipant(s.UserID) {
		return LeaveEvent(s, id)
	}
	return JoinEvent(s, id)
}

// AddFriend appends f unless a friend with the same id exists.
func AddFriend(s State, f models.Friend) State {
	for _, existing := range s.Friends {
		if existing.UserID == f.UserID {
			return s
		}
	}
	s.Friends = append(append([]models.Friend(nil), s.Friends...), f)
	return s
}

func RemoveFriend(s State, userID string) State {
	out := make([]models.Friend, 0, len(s.Friends))
	for _, f := range s.Friends {
		if f.UserID != userID {
			out = append(out, f)
		}
	}
	s.Friends = out
	return s
}

func ToggleFriendsPanel(s State) State {
	s.ShowFriends = !s.ShowFriends
	return s
}

func CloseFriendsPanel(s State) State {
	s.ShowFriends = false
	return s
}

func SetUsername(s State, name string) (State, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinUsernameLen {
		return s, invalid("username", fmt.Sprintf("must be at least %d characters", MinUsernameLen))
	}
	s.Username = name
	return s, nil
}

// SetHomeSkatepark stores park as home and drops any pending placement.
func SetHomeSkatepark(s State, park directory.Skatepark) State {
	home := park.Home()
	s.HomeSkatepark = &home
	s.SelectedLocation = nil
	return s
}

// SelectSkatepark opens the park details. A nil park closes them.
func SelectSkatepark(s State, park *directory.Skatepark) State {
	s.SelectedSkatepark = park
	return s
}

func SetActiveTab(s State, tab Tab) (State, error) {
	switch tab {
	case TabTricks, TabEvents:
		s.ActiveTab = tab
		return s, nil
	}
	return s, invalid("tab", fmt.Sprintf("unknown tab %q", tab))
}

func ToggleLayer(s State, layer mapview.Layer) (State, error) {
	next, ok := s.Layers.Toggle(layer)
	if !ok {
		return s, invalid("layer", fmt.Sprintf("unknown layer %q", layer))
	}
	s.Layers = next
	return s, nil
}

// SpotsForActiveTab lists the active tab's records as spots.
func SpotsForActiveTab(s State) []models.Spot { return s.Spots() }

// ToggleSidebar hides or shows the sidebar. In fullscreen it leaves
// fullscreen with the sidebar shown.
func ToggleSidebar(s State) State {
	if s.Layout.Fullscreen {
		return ExitFullscreen(s)
	}
	s.Layout.SidebarVisible = !s.Layout.SidebarVisible
	return s
}

func ToggleFullscreen(s State) State {
	s.Layout.Fullscreen = !s.Layout.Fullscreen
	return s
}

func ExitFullscreen(s State) State {
	s.Layout.Fullscreen = false
	s.Layout.SidebarVisible = true
	return s
}

// ResizeSidebar sets the sidebar width in percent of the window, clamped.
func ResizeSidebar(s State, width float64) State {
	if math.IsNaN(width) {
		return s
	}
	s.Layout.SidebarWidth = math.Min(math.Max(width, MinSidebarWidth), MaxSidebarWidth)
	return s
}

func SearchEdit(s State, q string) State {
	s.Search = s.Search.Edit(q)
	return s
}

// SearchSubmit starts a search. ok is false for a blank query, in which
// case nothing changed.
func SearchSubmit(s State) (State, uint64, bool) {
	box, gen, ok := s.Search.Submit()
	s.Search = box
	return s, gen, ok
}

// SearchResolve lands a result and recenters on the best match. Stale
// generations are ignored.
func SearchResolve(s State, gen uint64, r geocode.Result) State {
	box, ok := s.Search.Resolve(gen, r)
	if !ok {
		return s
	}
	s.Search = box
	return focus(s, r.Best)
}

// SearchFail records the failure. The viewport is left as it was.
func SearchFail(s State, gen uint64, err error) State {
	if box, ok := s.Search.Fail(gen, err); ok {
		s.Search = box
	}
	return s
}

func SearchNavigate(s State) State {
	s.Search = s.Search.Navigate()
	return s
}

// SelectSuggestion recenters on the i-th suggestion of the last search.
func SelectSuggestion(s State, i int) (State, error) {
	if i < 0 || i >= len(s.Search.Suggestions) {
		return s, invalid("index", "no such suggestion")
	}
	c := s.Search.Suggestions[i].Coord
	s.Search = s.Search.Navigate()
	return focus(s, c), nil
}
