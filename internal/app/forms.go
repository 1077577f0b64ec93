package app

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/example/skate-spots/internal/models"
)

type TrickForm struct {
	TrickName    string         `json:"trickName"`
	LocationName string         `json:"locationName"`
	Description  string         `json:"description"`
	Tries        int            `json:"tries"`
	Stance       models.Stance  `json:"stance"`
	Setup        models.Setup   `json:"setup"`
	Media        []models.Media `json:"media,omitempty"`
}

func NewTrickForm() TrickForm {
	return TrickForm{Tries: 1, Stance: models.StanceRegular}
}

func (f TrickForm) Validate() error {
	var errs []error
	if strings.TrimSpace(f.TrickName) == "" {
		errs = append(errs, invalid("trickName", "required"))
	}
	if strings.TrimSpace(f.LocationName) == "" {
		errs = append(errs, invalid("locationName", "required"))
	}
	if strings.TrimSpace(f.Description) == "" {
		errs = append(errs, invalid("description", "required"))
	}
	if f.Tries < 1 {
		errs = append(errs, invalid("tries", "must be at least 1"))
	}
	if !f.Stance.Valid() {
		errs = append(errs, invalid("stance", "unknown stance"))
	}
	for _, m := range f.Media {
		if m.Type != models.MediaImage && m.Type != models.MediaVideo {
			errs = append(errs, invalid("media", "type must be image or video"))
			break
		}
	}
	return errors.Join(errs...)
}

type EventForm struct {
	Title           string            `json:"title"`
	LocationName    string            `json:"locationName"`
	Description     string            `json:"description"`
	EventDate       string            `json:"eventDate"`
	SkillLevel      models.SkillLevel `json:"skillLevel"`
	MaxParticipants int               `json:"maxParticipants"`
}

func NewEventForm() EventForm {
	return EventForm{SkillLevel: models.SkillAllLevels, MaxParticipants: 10}
}

func (f EventForm) Validate() error {
	var errs []error
	if strings.TrimSpace(f.Title) == "" {
		errs = append(errs, invalid("title", "required"))
	}
	if strings.TrimSpace(f.LocationName) == "" {
		errs = append(errs, invalid("locationName", "required"))
	}
	if strings.TrimSpace(f.Description) == "" {
		errs = append(errs, invalid("description", "required"))
	}
	if _, err := (models.Event{EventDate: f.EventDate}).StartTime(time.UTC); err != nil {
		errs = append(errs, invalid("eventDate", "must be a date and time"))
	}
	if !f.SkillLevel.Valid() {
		errs = append(errs, invalid("skillLevel", "unknown skill level"))
	}
	if f.MaxParticipants < 1 {
		errs = append(errs, invalid("maxParticipants", "must be at least 1"))
	}
	return errors.Join(errs...)
}

func OpenTrickForm(s State) State {
	s.ShowAddTrick = true
	return s
}

func OpenEventForm(s State) State {
	s.ShowAddEvent = true
	return s
}

// CancelForm closes both forms and drops the pending placement.
func CancelForm(s State) State {
	s.ShowAddTrick = false
	s.ShowAddEvent = false
	s.SelectedLocation = nil
	return s
}

func CancelPlacement(s State) State {
	s.SelectedLocation = nil
	return s
}

// NextID derives a record id from the creation time in milliseconds. An id
// already taken is bumped by one until it is free.
func NextID(now time.Time, taken func(string) bool) string {
	ms := now.UnixMilli()
	for taken(strconv.FormatInt(ms, 10)) {
		ms++
	}
	return strconv.FormatInt(ms, 10)
}

func (s State) trickIDTaken(id string) bool {
	for _, t := range s.Tricks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s State) eventIDTaken(id string) bool {
	for _, e := range s.Events {
		if e.ID == id {
			return true
		}
	}
	return false
}

// SubmitTrick turns the form and the pending placement into a trick at the
// head of the list. Without a placement nothing changes and the form stays
// open.
func SubmitTrick(s State, f TrickForm, now time.Time) (State, models.Trick, error) {
	if err := f.Validate(); err != nil {
		return s, models.Trick{}, err
	}
	if s.SelectedLocation == nil {
		return s, models.Trick{}, ErrNoPlacement
	}
	at := *s.SelectedLocation
	photo := DefaultPhotoURL
	if len(f.Media) > 0 && f.Media[0].Preview != "" {
		photo = f.Media[0].Preview
	}
	t := models.Trick{
		ID:           NextID(now, s.trickIDTaken),
		Author:       models.Author{UserID: s.UserID, Username: s.Username},
		TrickName:    f.TrickName,
		LocationName: f.LocationName,
		Description:  f.Description,
		PhotoURL:     photo,
		Lat:          at.Lat,
		Lng:          at.Lng,
		Coordinates:  models.FormatCoordinates(at),
		Tries:        f.Tries,
		Stance:       f.Stance,
		Setup:        f.Setup,
		Media:        append([]models.Media(nil), f.Media...),
		CreatedAt:    now.UTC(),
	}
	s.Tricks = append([]models.Trick{t}, s.Tricks...)
	s.ShowAddTrick = false
	s.SelectedLocation = nil
	sel := SelectionOf(models.NewTrickSpot(t))
	s.SelectedSpot = &sel
	return s, t, nil
}

// SubmitEvent is SubmitTrick for events. The creator is the only initial
// participant.
func SubmitEvent(s State, f EventForm, now time.Time) (State, models.Event, error) {
	if err := f.Validate(); err != nil {
		return s, models.Event{}, err
	}
	if s.SelectedLocation == nil {
		return s, models.Event{}, ErrNoPlacement
	}
	at := *s.SelectedLocation
	e := models.Event{
		ID:              NextID(now, s.eventIDTaken),
		Author:          models.Author{UserID: s.UserID, Username: s.Username},
		Title:           f.Title,
		LocationName:    f.LocationName,
		Description:     f.Description,
		Lat:             at.Lat,
		Lng:             at.Lng,
		Coordinates:     models.FormatCoordinates(at),
		EventDate:       f.EventDate,
		SkillLevel:      f.SkillLevel,
		MaxParticipants: f.MaxParticipants,
		Participants:    []models.Participant{{UserID: s.UserID, Username: s.Username}},
		CreatedAt:       now.UTC(),
	}
	s.Events = append([]models.Event{e}, s.Events...)
	s.ShowAddEvent = false
	s.SelectedLocation = nil
	sel := SelectionOf(models.NewEventSpot(e))
	s.SelectedSpot = &sel
	return s, e, nil
}
