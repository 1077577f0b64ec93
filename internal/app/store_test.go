package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	"github.com/example/skate-spots/internal/kv"
	"github.com/example/skate-spots/internal/logging"
	"github.com/example/skate-spots/internal/models"
)

type recordingListener struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingListener) Changed(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

type fakeSearcher struct {
	res   geocode.Result
	err   error
	calls int
	hook  func()
}

func (f *fakeSearcher) Search(context.Context, string) (geocode.Result, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.res, f.err
}

func newTestStore(store kv.Store, searcher geocode.Searcher) *Store {
	return NewStore(StoreConfig{
		KV:       store,
		Searcher: searcher,
		Now:      func() time.Time { return fixedNow },
		Logger:   logging.Discard(),
	})
}

func TestStoreDefaultsForNewProfile(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), nil)
	st := s.Get(context.Background(), "p1")
	if st.Username != DefaultUsername || len(st.Tricks) != 0 || st.HomeSkatepark != nil {
		t.Fatalf("unexpected defaults %+v", st)
	}
	if len(st.Friends) == 0 || st.Viewport != geo.USABounds.Initial() {
		t.Fatalf("expected starter friends and initial viewport")
	}
}

func TestStorePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	s := newTestStore(mem, nil)

	steps := []Command{
		{Kind: CmdSetUsername, Text: "rodney"},
		{Kind: CmdClickMap, Coord: &models.Coord{Lat: 34.0522, Lng: -118.2437}},
		{Kind: CmdOpenTrickForm},
		{Kind: CmdSubmitTrick, Trick: ptr(kickflipForm())},
		{Kind: CmdSetHomeSkatepark, ID: "stoner-plaza"},
		{Kind: CmdToggleFriendsPanel},
	}
	for _, c := range steps {
		if _, err := s.Apply(ctx, "p1", c); err != nil {
			t.Fatalf("%s: %v", c.Kind, err)
		}
	}

	restarted := newTestStore(mem, nil).Get(ctx, "p1")
	if restarted.Username != "rodney" || len(restarted.Tricks) != 1 || restarted.Tricks[0].Username != "rodney" {
		t.Fatalf("persisted values not restored: %+v", restarted)
	}
	if restarted.HomeSkatepark == nil || restarted.HomeSkatepark.ID != "stoner-plaza" {
		t.Fatalf("home park not restored: %+v", restarted.HomeSkatepark)
	}
	if restarted.ShowFriends {
		t.Fatalf("session state must not be persisted")
	}
}

func TestStoreRecoversFromCorruptedValues(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	_ = mem.Set(ctx, "p1", KeyTricks, []byte("[{"))
	_ = mem.Set(ctx, "p1", KeyUsername, []byte("42"))
	st := newTestStore(mem, nil).Get(ctx, "p1")
	if len(st.Tricks) != 0 || st.Username != DefaultUsername {
		t.Fatalf("expected defaults for corrupted values, got %+v", st)
	}
}

func TestStoreNotifiesSpotEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(kv.NewMemoryStore(), nil)
	rec := &recordingListener{}
	idx := geo.NewIndex()
	s.AddListener(rec)
	s.AddListener(IndexInto(idx))

	_, _ = s.Apply(ctx, "p1", Command{Kind: CmdClickMap, Coord: &models.Coord{Lat: 34.0522, Lng: -118.2437}})
	st, err := s.Apply(ctx, "p1", Command{Kind: CmdSubmitTrick, Trick: ptr(kickflipForm())})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := st.Tricks[0].ID
	if hits := idx.Nearby(34.05, -118.24, 10); len(hits) != 1 || hits[0].Key != "p1:trick:"+id {
		t.Fatalf("expected trick in index, got %+v", hits)
	}

	if _, err := s.Apply(ctx, "p1", Command{Kind: CmdDeleteTrick, ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hits := idx.Nearby(34.05, -118.24, 10); len(hits) != 0 {
		t.Fatalf("expected index to be empty, got %+v", hits)
	}

	last := rec.changes[len(rec.changes)-1]
	if len(last.Spots) != 1 || last.Spots[0].Op != models.SpotDeleted || last.Spots[0].ProfileID != "p1" {
		t.Fatalf("unexpected spot events %+v", last.Spots)
	}
}

func TestStoreRejectedCommandDoesNotNotify(t *testing.T) {
	s := newTestStore(kv.NewMemoryStore(), nil)
	rec := &recordingListener{}
	s.AddListener(rec)
	_, err := s.Apply(context.Background(), "p1", Command{Kind: CmdSubmitTrick, Trick: ptr(kickflipForm())})
	if !errors.Is(err, ErrNoPlacement) {
		t.Fatalf("expected ErrNoPlacement, got %v", err)
	}
	if len(rec.changes) != 0 {
		t.Fatalf("expected no notifications, got %d", len(rec.changes))
	}
}

func TestStoreIndexKeepsProfilesApart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(kv.NewMemoryStore(), nil)
	idx := geo.NewIndex()
	s.AddListener(IndexInto(idx))

	at := models.Coord{Lat: 34.0522, Lng: -118.2437}
	for _, p := range []string{"alice", "bob"} {
		_, _ = s.Apply(ctx, p, Command{Kind: CmdClickMap, Coord: &at})
		if _, err := s.Apply(ctx, p, Command{Kind: CmdSubmitTrick, Trick: ptr(kickflipForm())}); err != nil {
			t.Fatalf("%s submit: %v", p, err)
		}
	}
	id := s.Get(ctx, "alice").Tricks[0].ID
	if other := s.Get(ctx, "bob").Tricks[0].ID; other != id {
		t.Fatalf("expected both profiles to mint %s, got %s", id, other)
	}
	if hits := idx.Nearby(34.05, -118.24, 10); len(hits) != 2 {
		t.Fatalf("expected one entry per profile, got %+v", hits)
	}

	if _, err := s.Apply(ctx, "alice", Command{Kind: CmdDeleteTrick, ID: id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	hits := idx.Nearby(34.05, -118.24, 10)
	if len(hits) != 1 || hits[0].Key != "bob:trick:"+id {
		t.Fatalf("expected bob's trick to stay indexed, got %+v", hits)
	}
}

func TestStoreNotifiesInCommitOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(kv.NewMemoryStore(), nil)
	idx := geo.NewIndex()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.AddListener(ListenerFunc(func(_ context.Context, c Change) {
		for _, e := range c.Spots {
			if e.Op == models.SpotAdded {
				once.Do(func() {
					close(entered)
					<-release
				})
			}
		}
	}))
	s.AddListener(IndexInto(idx))

	_, _ = s.Apply(ctx, "p1", Command{Kind: CmdClickMap, Coord: &models.Coord{Lat: 34.0522, Lng: -118.2437}})
	submitted := make(chan error, 1)
	go func() {
		_, err := s.Apply(ctx, "p1", Command{Kind: CmdSubmitTrick, Trick: ptr(kickflipForm())})
		submitted <- err
	}()
	<-entered

	id := s.Get(ctx, "p1").Tricks[0].ID
	deleted := make(chan error, 1)
	go func() {
		_, err := s.Apply(ctx, "p1", Command{Kind: CmdDeleteTrick, ID: id})
		deleted <- err
	}()
	select {
	case err := <-deleted:
		close(release)
		t.Fatalf("delete returned while the add was still being delivered, err=%v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if err := <-submitted; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(s.Get(ctx, "p1").Tricks); n != 0 {
		t.Fatalf("expected no tricks, got %d", n)
	}
	if hits := idx.Nearby(34.05, -118.24, 10); len(hits) != 0 {
		t.Fatalf("index out of step with state: %+v", hits)
	}
}

func TestStoreSearchRecentersOnSuccess(t *testing.T) {
	ctx := context.Background()
	f := &fakeSearcher{res: geocode.Result{
		Best:        models.Coord{Lat: 39.9541, Lng: -75.1655},
		Suggestions: []geocode.Suggestion{{PrimaryText: "LOVE Park", Coord: models.Coord{Lat: 39.9541, Lng: -75.1655}}},
	}}
	s := newTestStore(kv.NewMemoryStore(), f)
	st, err := s.Search(ctx, "p1", "love park")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if st.Viewport.Latitude != 39.9541 || st.Viewport.Zoom != MarkerFocusZoom || st.Search.Status != geocode.StatusResolved {
		t.Fatalf("unexpected state %+v", st)
	}

	if _, err := s.Search(ctx, "p1", ""); err != nil || f.calls != 1 {
		t.Fatalf("blank search must not reach the geocoder, calls=%d err=%v", f.calls, err)
	}
}

func TestStoreSearchFailureKeepsViewport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(kv.NewMemoryStore(), &fakeSearcher{err: errors.New("boom")})
	before := s.Get(ctx, "p1").Viewport
	st, _ := s.Search(ctx, "p1", "somewhere")
	if st.Viewport != before || st.Search.Status != geocode.StatusFailed || st.Search.Error == "" {
		t.Fatalf("unexpected state after failure %+v", st.Search)
	}
}

func TestStoreSearchDropsSupersededResult(t *testing.T) {
	ctx := context.Background()
	f := &fakeSearcher{res: geocode.Result{Best: models.Coord{Lat: 40, Lng: -75}}}
	s := newTestStore(kv.NewMemoryStore(), f)
	before := s.Get(ctx, "p1").Viewport

	// A second search starts while the first is in flight.
	f.hook = func() {
		f.hook = nil
		s.mu.Lock()
		st := SearchEdit(s.profiles["p1"], "newer")
		st, _, _ = SearchSubmit(st)
		s.profiles["p1"] = st
		s.mu.Unlock()
	}
	st, _ := s.Search(ctx, "p1", "older")
	if st.Viewport != before || st.Search.Status != geocode.StatusSearching {
		t.Fatalf("stale result should be dropped, got %+v", st)
	}
}

func TestDispatchRejectsUnknownAndMissingPayload(t *testing.T) {
	s := newTestState()
	if _, err := Dispatch(s, Command{Kind: "teleport"}, Env{}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	var verr *ValidationError
	if _, err := Dispatch(s, Command{Kind: CmdClickMap}, Env{}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := Dispatch(s, Command{Kind: CmdSetHomeSkatepark, ID: "nowhere"}, Env{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiffSpots(t *testing.T) {
	prev := newTestState()
	prev.Tricks = []models.Trick{{ID: "a"}, {ID: "b"}}
	next := prev
	next.Tricks = []models.Trick{{ID: "c"}, {ID: "a"}}
	next.Events = []models.Event{{ID: "e"}}
	got := DiffSpots("p1", prev, next)
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %+v", got)
	}
	if got[0].ID != "c" || got[0].Op != models.SpotAdded || got[1].ID != "b" || got[1].Op != models.SpotDeleted || got[2].Kind != models.KindEvent {
		t.Fatalf("unexpected diff %+v", got)
	}
}

func ptr[T any](v T) *T { return &v }
