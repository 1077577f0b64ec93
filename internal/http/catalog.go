package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/skate-spots/internal/storage"
)

func (s *Server) catalogRoutes(api *mux.Router) {
	api.HandleFunc("/skateparks", s.handleListSkateparks).Methods(http.MethodGet)
	api.HandleFunc("/skateparks", s.handleCreateSkatepark).Methods(http.MethodPost)
	api.HandleFunc("/skateparks/{id}", s.handleGetSkatepark).Methods(http.MethodGet)
	api.HandleFunc("/skateparks/{id}/reviews", s.handleListReviews).Methods(http.MethodGet)
	api.HandleFunc("/skateparks/{id}/reviews", s.handleCreateReview).Methods(http.MethodPost)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/nearby", s.handleNearbyUsers).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/location", s.handleUpdateLocation).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/participants", s.handleParticipants).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/participants/{user}", s.handleSetParticipant).Methods(http.MethodPut)
}

func pageFrom(r *http.Request) storage.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return storage.Page{Limit: limit, Offset: offset}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleListSkateparks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	parks, err := s.repos.Skateparks.FindAll(r.Context(), storage.SkateparkFilter{
		City:            q.Get("city"),
		State:           q.Get("state"),
		DifficultyLevel: q.Get("difficulty"),
		Feature:         q.Get("feature"),
		FreeOnly:        q.Get("free") == "true",
	}, pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if parks == nil {
		parks = []storage.Skatepark{}
	}
	writeJSON(w, http.StatusOK, parks)
}

func (s *Server) handleCreateSkatepark(w http.ResponseWriter, r *http.Request) {
	var in storage.NewSkatepark
	if !decode(w, r, &in) {
		return
	}
	p, err := s.repos.Skateparks.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type skateparkDetail struct {
	storage.Skatepark
	Images      []storage.Image     `json:"images"`
	StreetView  *storage.StreetView `json:"street_view,omitempty"`
	Rating      float64             `json:"rating"`
	ReviewCount int                 `json:"review_count"`
}

func (s *Server) handleGetSkatepark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	p, err := s.repos.Skateparks.FindByID(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := skateparkDetail{Skatepark: p, Images: []storage.Image{}}
	if imgs, err := s.repos.Skateparks.Images(ctx, id); err != nil {
		writeError(w, err)
		return
	} else if imgs != nil {
		out.Images = imgs
	}
	if sv, err := s.repos.Skateparks.StreetView(ctx, id); err == nil {
		out.StreetView = &sv
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, err)
		return
	}
	if out.Rating, out.ReviewCount, err = s.repos.Reviews.AverageRating(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.repos.Reviews.FindBySkatepark(r.Context(), mux.Vars(r)["id"], pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if reviews == nil {
		reviews = []storage.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var in storage.NewReview
	if !decode(w, r, &in) {
		return
	}
	in.SkateparkID = mux.Vars(r)["id"]
	rv, err := s.repos.Reviews.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in storage.NewUser
	if !decode(w, r, &in) {
		return
	}
	u, err := s.repos.Users.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleNearbyUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "lat and lng are required numbers", http.StatusBadRequest)
		return
	}
	radius := 10.0
	if v := q.Get("radius"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			http.Error(w, "radius must be a positive number of miles", http.StatusBadRequest)
			return
		}
		radius = f
	}
	users, err := s.repos.Users.FindNearby(r.Context(), lat, lng, radius, pageFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []storage.NearbyUser{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var body storage.Location
	if !decode(w, r, &body) {
		return
	}
	if err := s.repos.Users.UpdateLocation(r.Context(), mux.Vars(r)["id"], body); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := s.repos.Sessions.Participants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []storage.SessionParticipant{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleSetParticipant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status storage.ParticipantStatus `json:"status"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !body.Status.Valid() {
		http.Error(w, "status must be going, maybe or not_going", http.StatusBadRequest)
		return
	}
	vars := mux.Vars(r)
	if err := s.repos.Sessions.SetParticipant(r.Context(), vars["id"], vars["user"], body.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
