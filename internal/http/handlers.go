// Package httpapi exposes profile state, the directory and the SQL catalog
// over HTTP and websocket.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/skate-spots/internal/app"
	"github.com/example/skate-spots/internal/calendar"
	"github.com/example/skate-spots/internal/directory"
	"github.com/example/skate-spots/internal/dispatch"
	"github.com/example/skate-spots/internal/geo"
	"github.com/example/skate-spots/internal/geocode"
	"github.com/example/skate-spots/internal/mapview"
	"github.com/example/skate-spots/internal/models"
	"github.com/example/skate-spots/internal/storage"
)

// MapConfig is what the client needs to draw the base map.
type MapConfig struct {
	Bounds      geo.MapBounds `json:"bounds"`
	TileURL     string        `json:"tileUrl"`
	Attribution string        `json:"attribution"`
}

type Options struct {
	Store    *app.Store
	Geocoder geocode.Searcher
	Nearby   geo.Nearby
	WS       *dispatch.WSRegistry
	// Repos is nil when no database is configured; the catalog routes are
	// then not registered.
	Repos  *storage.Repos
	Map    MapConfig
	Zone   *time.Location
	Logger *slog.Logger
}

type Server struct {
	store    *app.Store
	dir      *directory.Directory
	geocoder geocode.Searcher
	nearby   geo.Nearby
	ws       *dispatch.WSRegistry
	repos    *storage.Repos
	mapCfg   MapConfig
	zone     *time.Location
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	if opts.Nearby == nil {
		opts.Nearby = geo.NewIndex()
	}
	s := &Server{
		store:    opts.Store,
		dir:      opts.Store.Directory(),
		geocoder: opts.Geocoder,
		nearby:   opts.Nearby,
		ws:       opts.WS,
		repos:    opts.Repos,
		mapCfg:   opts.Map,
		zone:     opts.Zone,
		logger:   opts.Logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/config/map", s.handleMapConfig).Methods(http.MethodGet)
	api.HandleFunc("/directory/skateparks", s.handleDirectoryParks).Methods(http.MethodGet)
	api.HandleFunc("/directory/skateparks/{id}", s.handleDirectoryPark).Methods(http.MethodGet)
	api.HandleFunc("/directory/shops", s.handleDirectoryShops).Methods(http.MethodGet)
	api.HandleFunc("/directory/famous-spots", s.handleDirectoryFamous).Methods(http.MethodGet)

	api.HandleFunc("/profiles/{profile}/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profile}/commands", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{profile}/markers", s.handleMarkers).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profile}/events.ics", s.handleCalendar).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{profile}/search", s.handleProfileSearch).Methods(http.MethodPost)

	api.HandleFunc("/geocode", s.handleGeocode).Methods(http.MethodGet)
	api.HandleFunc("/spots/nearby", s.handleNearby).Methods(http.MethodGet)

	if s.repos != nil {
		s.catalogRoutes(api)
	}
	if s.ws != nil {
		s.mux.HandleFunc("/ws/{profile}", s.handleWS)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleMapConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mapCfg)
}

func (s *Server) handleDirectoryParks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.Skateparks())
}

func (s *Server) handleDirectoryPark(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dir.Skatepark(mux.Vars(r)["id"])
	if !ok {
		writeError(w, app.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDirectoryShops(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.Shops())
}

func (s *Server) handleDirectoryFamous(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dir.FamousSpots())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get(r.Context(), mux.Vars(r)["profile"]))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd app.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	st, err := s.store.Apply(r.Context(), mux.Vars(r)["profile"], cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type markersResponse struct {
	Markers []mapview.Marker         `json:"markers"`
	Counts  map[mapview.Category]int `json:"counts"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	st := s.store.Get(r.Context(), mux.Vars(r)["profile"])
	ms := mapview.Render(st.MarkerInput(s.dir))
	writeJSON(w, http.StatusOK, markersResponse{Markers: ms, Counts: mapview.Count(ms)})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	profile := mux.Vars(r)["profile"]
	st := s.store.Get(r.Context(), profile)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="skate-events.ics"`)
	_, _ = w.Write([]byte(calendar.Export(st.Events, s.zone, s.logger.With(slog.String("profile", profile)))))
}

func (s *Server) handleProfileSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	st, err := s.store.Search(r.Context(), mux.Vars(r)["profile"], body.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		http.Error(w, "geocoding is not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := s.geocoder.Search(r.Context(), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, geocode.ErrEmptyQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, geocode.ErrNoResults):
		writeJSON(w, http.StatusOK, geocode.Result{Suggestions: []geocode.Suggestion{}})
	case err != nil:
		s.logger.Warn("geocode failed", slog.Any("err", err))
		http.Error(w, "Failed to search location", http.StatusBadGateway)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err := errors.Join(err1, err2); err != nil {
		http.Error(w, "lat and lng are required numbers", http.StatusBadRequest)
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	hits := s.nearby.Nearby(lat, lng, limit)
	if hits == nil {
		hits = []geo.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is what a client reports from its map surface. Everything else
// goes through the command endpoint.
type wsMessage struct {
	Type     string           `json:"type"`
	Lat      float64          `json:"lat"`
	Lng      float64          `json:"lng"`
	MarkerID string           `json:"markerId,omitempty"`
	Viewport *models.Viewport `json:"viewport,omitempty"`
}

// handleWS sends the current state and markers once, then every change
// until the client goes away. The session is the tab's map renderer, so
// its clicks and moves come back in as commands.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	profile := mux.Vars(r)["profile"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("profile", profile), slog.Any("err", err))
		return
	}
	sess, remove := s.ws.Add(profile, conn)
	defer func() {
		remove()
		_ = conn.Close()
	}()

	ctx := context.WithoutCancel(r.Context())
	sess.OnClick(func(ev mapview.ClickEvent) {
		s.applyFromWS(ctx, profile, app.ClickCommand(ev))
	})
	sess.OnViewportChange(func(v models.Viewport) {
		s.applyFromWS(ctx, profile, app.Command{Kind: app.CmdChangeViewport, Viewport: &v})
	})

	st := s.store.Get(ctx, profile)
	if err := sess.Send(dispatch.Snapshot{Type: "state", Profile: profile, State: st}); err != nil {
		return
	}
	sess.Render(st.MarkerInput(s.ws.Directory()))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("bad ws message", slog.String("profile", profile), slog.Any("err", err))
			continue
		}
		switch msg.Type {
		case "click":
			sess.Click(models.Coord{Lat: msg.Lat, Lng: msg.Lng}, msg.MarkerID)
		case "move":
			if msg.Viewport != nil {
				sess.Move(*msg.Viewport)
			}
		}
	}
}

func (s *Server) applyFromWS(ctx context.Context, profile string, cmd app.Command) {
	if _, err := s.store.Apply(ctx, profile, cmd); err != nil {
		s.logger.Debug("ws command rejected", slog.String("profile", profile), slog.String("kind", string(cmd.Kind)), slog.Any("err", err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var (
		verr  *app.ValidationError
		vErrs validator.ValidationErrors
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &vErrs):
		fields := make([]string, 0, len(vErrs))
		for _, fe := range vErrs {
			fields = append(fields, fe.Field())
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Field: strings.Join(fields, ",")})
	case errors.Is(err, app.ErrUnknownCommand), errors.Is(err, storage.ErrNoChanges):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrNoPlacement), errors.Is(err, app.ErrEventFull), errors.Is(err, app.ErrOrganizerCannotLeave):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
