// Package dispatch pushes profile state to connected websocket clients.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/skate-spots/internal/app"
	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/mapview"
	"github.com/example/skate-spots/internal/models"
	"github.com/example/skate-spots/internal/observability"
)

var ErrNoSession = errors.New("no ws session")

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Snapshot is the message sent after every state change.
type Snapshot struct {
	Type    string             `json:"type"`
	Profile string             `json:"profile"`
	State   app.State          `json:"state"`
	Spots   []models.SpotEvent `json:"spots,omitempty"`
}

// Markers is sent when the markers a tab should draw have changed.
type Markers struct {
	Type    string           `json:"type"`
	Profile string           `json:"profile"`
	Markers []mapview.Marker `json:"markers"`
}

// WSSession is one connected browser tab. It is also the tab's map
// renderer: marker sets go out as "markers" messages, and clicks and moves
// the client reports are handed to the registered callbacks.
type WSSession struct {
	conn    Conn
	profile string
	view    *mapview.View
	logger  *slog.Logger
	mu      sync.Mutex

	hookMu  sync.Mutex
	drawn   []mapview.Marker
	onClick func(mapview.ClickEvent)
	onMove  func(models.Viewport)
}

func (s *WSSession) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Render redraws the tab's markers when in differs from what it shows.
func (s *WSSession) Render(in mapview.Input) bool { return s.view.Update(in) }

func (s *WSSession) RenderMarkers(markers []mapview.Marker) {
	s.hookMu.Lock()
	s.drawn = markers
	s.hookMu.Unlock()
	if markers == nil {
		markers = []mapview.Marker{}
	}
	if err := s.Send(Markers{Type: "markers", Profile: s.profile, Markers: markers}); err != nil {
		s.logger.Debug("markers not delivered", slog.String("profile", s.profile), slog.Any("err", err))
	}
}

func (s *WSSession) OnClick(fn func(mapview.ClickEvent)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onClick = fn
}

func (s *WSSession) OnViewportChange(fn func(models.Viewport)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onMove = fn
}

// Click reports a click at c, or on the drawn marker with markerID.
func (s *WSSession) Click(c models.Coord, markerID string) {
	s.hookMu.Lock()
	fn := s.onClick
	ev := mapview.ClickEvent{At: c}
	if markerID != "" {
		for i := range s.drawn {
			if s.drawn[i].ID == markerID {
				m := s.drawn[i]
				ev = mapview.ClickEvent{At: m.Coord(), Marker: &m}
				break
			}
		}
	}
	s.hookMu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// Move reports a viewport change made on the client.
func (s *WSSession) Move(v models.Viewport) {
	s.hookMu.Lock()
	fn := s.onMove
	s.hookMu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// WSRegistry holds the open sessions of every profile. A profile may have
// several tabs open.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[*WSSession]struct{}
	dir      *directory.Directory
	logger   *slog.Logger
}

func NewWSRegistry(dir *directory.Directory, logger *slog.Logger) *WSRegistry {
	if dir == nil {
		dir = directory.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]map[*WSSession]struct{}), dir: dir, logger: logger}
}

func (r *WSRegistry) Directory() *directory.Directory { return r.dir }

// Add registers conn for profile. The returned func removes it again.
func (r *WSRegistry) Add(profile string, conn Conn) (*WSSession, func()) {
	s := &WSSession{conn: conn, profile: profile, logger: r.logger}
	s.view = mapview.NewView(s)
	r.mu.Lock()
	if r.sessions[profile] == nil {
		r.sessions[profile] = make(map[*WSSession]struct{})
	}
	r.sessions[profile][s] = struct{}{}
	r.mu.Unlock()
	observability.WSSessions.Inc()

	var once sync.Once
	return s, func() {
		once.Do(func() { r.remove(profile, s) })
	}
}

func (r *WSRegistry) remove(profile string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sessions[profile]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.sessions, profile)
	}
	observability.WSSessions.Dec()
}

// Count is the number of open sessions for profile.
func (r *WSRegistry) Count(profile string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[profile])
}

func (r *WSRegistry) sessionsOf(profile string) []*WSSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WSSession, 0, len(r.sessions[profile]))
	for s := range r.sessions[profile] {
		out = append(out, s)
	}
	return out
}

// Send writes v to every session of profile. Sessions that fail to write are
// closed and dropped.
func (r *WSRegistry) Send(profile string, v any) error {
	targets := r.sessionsOf(profile)
	if len(targets) == 0 {
		return ErrNoSession
	}

	var errs []error
	for _, s := range targets {
		if err := s.Send(v); err != nil {
			r.logger.Warn("ws send error", slog.String("profile", profile), slog.Any("err", err))
			_ = s.conn.Close()
			r.remove(profile, s)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Changed implements app.Listener. Every tab gets the new state; tabs whose
// markers changed also get a markers message.
func (r *WSRegistry) Changed(_ context.Context, c app.Change) {
	err := r.Send(c.Profile, Snapshot{Type: "state", Profile: c.Profile, State: c.State, Spots: c.Spots})
	if err != nil && !errors.Is(err, ErrNoSession) {
		r.logger.Debug("snapshot not delivered everywhere", slog.String("profile", c.Profile), slog.Any("err", err))
	}
	in := c.State.MarkerInput(r.dir)
	for _, s := range r.sessionsOf(c.Profile) {
		s.Render(in)
	}
}
