package app

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	"github.com/example/skate-spots/internal/kv"
	"github.com/example/skate-spots/internal/models"
	"github.com/example/skate-spots/internal/observability"
)

// Persisted keys. Each value is rewritten in full whenever it changes.
const (
	KeyTricks        = "skate-tricks"
	KeyEvents        = "skate-events"
	KeyFriends       = "skate-friends"
	KeyHomeSkatepark = "home-skatepark"
	KeyUsername      = "username"
)

var (
	tricksValue   = kv.Value[[]models.Trick]{Key: KeyTricks, Default: func() []models.Trick { return []models.Trick{} }}
	eventsValue   = kv.Value[[]models.Event]{Key: KeyEvents, Default: func() []models.Event { return []models.Event{} }}
	homeValue     = kv.Value[*models.HomeSkatepark]{Key: KeyHomeSkatepark, Default: func() *models.HomeSkatepark { return nil }}
	usernameValue = kv.Value[string]{Key: KeyUsername, Default: func() string { return DefaultUsername }}
)

// Change is handed to listeners after a command was applied.
type Change struct {
	Profile string
	State   State
	Spots   []models.SpotEvent
}

type Listener interface {
	Changed(ctx context.Context, c Change)
}

type ListenerFunc func(ctx context.Context, c Change)

func (f ListenerFunc) Changed(ctx context.Context, c Change) { f(ctx, c) }

// IndexInto keeps g in step with every profile's tricks and events.
func IndexInto(g geo.Geo) Listener {
	return ListenerFunc(func(_ context.Context, c Change) {
		for _, e := range c.Spots {
			switch e.Op {
			case models.SpotAdded:
				g.Upsert(e)
			case models.SpotDeleted:
				g.Remove(e)
			}
		}
	})
}

// Store owns the state of every profile served by this process. Commands
// are applied one at a time and listeners see their changes in that order.
type Store struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex // taken before mu is released, held while listeners run
	kv        kv.Store
	dir       *directory.Directory
	searcher  geocode.Searcher
	userID    string
	now       func() time.Time
	logger    *slog.Logger
	profiles  map[string]State
	listeners []Listener
}

type StoreConfig struct {
	KV        kv.Store
	Directory *directory.Directory
	Searcher  geocode.Searcher
	UserID    string
	Now       func() time.Time
	Logger    *slog.Logger
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.KV == nil {
		cfg.KV = kv.NewMemoryStore()
	}
	if cfg.Directory == nil {
		cfg.Directory = directory.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserID == "" {
		cfg.UserID = "user-1"
	}
	return &Store{
		kv:       cfg.KV,
		dir:      cfg.Directory,
		searcher: cfg.Searcher,
		userID:   cfg.UserID,
		now:      cfg.Now,
		logger:   cfg.Logger,
		profiles: make(map[string]State),
	}
}

// AddListener must be called before the store serves commands.
func (s *Store) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Store) Directory() *directory.Directory { return s.dir }

func (s *Store) friendsValue() kv.Value[[]models.Friend] {
	return kv.Value[[]models.Friend]{Key: KeyFriends, Default: s.dir.Friends}
}

// load returns the profile's state, reading persisted values on first use.
// Callers hold s.mu.
func (s *Store) load(ctx context.Context, profile string) State {
	if st, ok := s.profiles[profile]; ok {
		return st
	}
	st := NewState(s.userID, nil)
	st.Tricks = tricksValue.Load(ctx, s.kv, profile, s.logger)
	st.Events = eventsValue.Load(ctx, s.kv, profile, s.logger)
	st.Friends = s.friendsValue().Load(ctx, s.kv, profile, s.logger)
	st.HomeSkatepark = homeValue.Load(ctx, s.kv, profile, s.logger)
	st.Username = usernameValue.Load(ctx, s.kv, profile, s.logger)
	s.profiles[profile] = st
	observability.ProfilesLoaded.Set(float64(len(s.profiles)))
	return st
}

func (s *Store) Get(ctx context.Context, profile string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, profile)
}

// Apply dispatches cmd against the profile. A rejected command leaves the
// state untouched and notifies nobody.
func (s *Store) Apply(ctx context.Context, profile string, cmd Command) (State, error) {
	s.mu.Lock()
	prev := s.load(ctx, profile)
	next, err := Dispatch(prev, cmd, Env{Now: s.now(), Directory: s.dir})
	if err != nil {
		s.mu.Unlock()
		observability.CommandsTotal.WithLabelValues(string(cmd.Kind), result(err)).Inc()
		return prev, err
	}
	s.commit(ctx, profile, prev, next)
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	observability.CommandsTotal.WithLabelValues(string(cmd.Kind), "ok").Inc()
	s.notify(ctx, profile, prev, next)
	return next, nil
}

// Search runs the profile's place search for query, or for the text already
// in the search box when query is empty. The lock is not held while the
// geocoder is called; a newer search started meanwhile wins.
func (s *Store) Search(ctx context.Context, profile, query string) (State, error) {
	s.mu.Lock()
	prev := s.load(ctx, profile)
	st := prev
	if query != "" {
		st = SearchEdit(st, query)
	}
	st, gen, ok := SearchSubmit(st)
	if !ok {
		s.mu.Unlock()
		return prev, nil
	}
	s.profiles[profile] = st
	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(ctx, profile, prev, st)
	s.notifyMu.Unlock()

	var (
		res geocode.Result
		err = errors.New("geocoding is not configured")
	)
	if s.searcher != nil {
		res, err = s.searcher.Search(ctx, st.Search.Query)
	}

	s.mu.Lock()
	before := s.load(ctx, profile)
	var after State
	if err != nil {
		after = SearchFail(before, gen, err)
	} else {
		after = SearchResolve(before, gen, res)
	}
	s.profiles[profile] = after
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	observability.CommandsTotal.WithLabelValues("search", result(err)).Inc()
	s.notify(ctx, profile, before, after)
	return after, nil
}

// commit stores next and rewrites every persisted value that changed.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, profile string, prev, next State) {
	s.profiles[profile] = next
	var errs []error
	if !reflect.DeepEqual(prev.Tricks, next.Tricks) {
		errs = append(errs, tricksValue.Save(ctx, s.kv, profile, next.Tricks))
	}
	if !reflect.DeepEqual(prev.Events, next.Events) {
		errs = append(errs, eventsValue.Save(ctx, s.kv, profile, next.Events))
	}
	if !reflect.DeepEqual(prev.Friends, next.Friends) {
		errs = append(errs, s.friendsValue().Save(ctx, s.kv, profile, next.Friends))
	}
	if !reflect.DeepEqual(prev.HomeSkatepark, next.HomeSkatepark) {
		errs = append(errs, homeValue.Save(ctx, s.kv, profile, next.HomeSkatepark))
	}
	if prev.Username != next.Username {
		errs = append(errs, usernameValue.Save(ctx, s.kv, profile, next.Username))
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("failed to persist profile state", slog.String("profile", profile), slog.Any("err", err))
	}
}

// notify runs with s.notifyMu held. Listeners must not call back into the
// store.
func (s *Store) notify(ctx context.Context, profile string, prev, next State) {
	c := Change{Profile: profile, State: next, Spots: DiffSpots(profile, prev, next)}
	for _, e := range c.Spots {
		observability.SpotEventsTotal.WithLabelValues(string(e.Kind), string(e.Op)).Inc()
	}
	for _, l := range s.listeners {
		l.Changed(ctx, c)
	}
}

// DiffSpots lists the tricks and events that appeared or disappeared
// between prev and next.
func DiffSpots(profile string, prev, next State) []models.SpotEvent {
	var out []models.SpotEvent
	emit := func(op models.SpotOp, kind models.SpotKind, id string, at models.Coord) {
		out = append(out, models.SpotEvent{Op: op, Kind: kind, ID: id, ProfileID: profile, Loc: at})
	}

	before := make(map[string]models.Coord, len(prev.Tricks))
	for _, t := range prev.Tricks {
		before[t.ID] = t.Coord()
	}
	for _, t := range next.Tricks {
		if _, ok := before[t.ID]; !ok {
			emit(models.SpotAdded, models.KindTrick, t.ID, t.Coord())
		}
		delete(before, t.ID)
	}
	for _, t := range prev.Tricks {
		if at, ok := before[t.ID]; ok {
			emit(models.SpotDeleted, models.KindTrick, t.ID, at)
		}
	}

	before = make(map[string]models.Coord, len(prev.Events))
	for _, e := range prev.Events {
		before[e.ID] = e.Coord()
	}
	for _, e := range next.Events {
		if _, ok := before[e.ID]; !ok {
			emit(models.SpotAdded, models.KindEvent, e.ID, e.Coord())
		}
		delete(before, e.ID)
	}
	for _, e := range prev.Events {
		if at, ok := before[e.ID]; ok {
			emit(models.SpotDeleted, models.KindEvent, e.ID, at)
		}
	}
	return out
}

func result(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNoPlacement), errors.Is(err, ErrEventFull), errors.Is(err, ErrOrganizerCannotLeave):
		return "rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
