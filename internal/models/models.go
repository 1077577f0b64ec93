package models

import (
	"fmt"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FormatCoordinates renders a coordinate the way spot cards display it.
// The hemisphere letters are fixed; the sign of each value is kept as is.
func FormatCoordinates(c Coord) string {
	return fmt.Sprintf("%.4f°N, %.4f°W", c.Lat, c.Lng)
}

type Author struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Stance string

const (
	StanceRegular Stance = "regular"
	StanceGoofy   Stance = "goofy"
	StanceSwitch  Stance = "switch"
	StanceFakie   Stance = "fakie"
	StanceNollie  Stance = "nollie"
)

func (s Stance) Valid() bool {
	switch s {
	case StanceRegular, StanceGoofy, StanceSwitch, StanceFakie, StanceNollie:
		return true
	}
	return false
}

type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillAllLevels    SkillLevel = "all-levels"
)

func (s SkillLevel) Valid() bool {
	switch s {
	case SkillBeginner, SkillIntermediate, SkillAdvanced, SkillAllLevels:
		return true
	}
	return false
}

type Setup struct {
	Deck   string `json:"deck"`
	Trucks string `json:"trucks"`
	Wheels string `json:"wheels"`
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Media is a client-side file reference. Preview is a transient object URL
// and only lives as long as the page that produced it.
type Media struct {
	Type    MediaType `json:"type"`
	Preview string    `json:"preview"`
}

type Trick struct {
	ID           string    `json:"id"`
	Author                 // userId, username
	TrickName    string    `json:"trickName"`
	LocationName string    `json:"locationName"`
	Description  string    `json:"description"`
	PhotoURL     string    `json:"photoUrl"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Coordinates  string    `json:"coordinates"`
	Tries        int       `json:"tries"`
	Stance       Stance    `json:"stance"`
	Setup        Setup     `json:"setup"`
	Media        []Media   `json:"media,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (t Trick) Coord() Coord { return Coord{Lat: t.Lat, Lng: t.Lng} }

type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Event struct {
	ID              string        `json:"id"`
	Author                        // userId, username
	Title           string        `json:"title"`
	LocationName    string        `json:"locationName"`
	Description     string        `json:"description"`
	Lat             float64       `json:"lat"`
	Lng             float64       `json:"lng"`
	Coordinates     string        `json:"coordinates"`
	EventDate       string        `json:"eventDate"`
	SkillLevel      SkillLevel    `json:"skillLevel"`
	MaxParticipants int           `json:"maxParticipants"`
	Participants    []Participant `json:"participants"`
	CreatedAt       time.Time     `json:"createdAt"`
}

func (e Event) Coord() Coord { return Coord{Lat: e.Lat, Lng: e.Lng} }

// HasParticipant reports whether userID is in the participant list.
func (e Event) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// EventDateLayout is the format produced by a datetime-local input.
const EventDateLayout = "2006-01-02T15:04"

// StartTime parses EventDate in loc. Dates that carry a zone offset are
// accepted as RFC 3339.
func (e Event) StartTime(loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(EventDateLayout, e.EventDate, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, e.EventDate)
}

type Friend struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Viewport struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Zoom      float64 `json:"zoom"`
}

type HomeSkatepark struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	PhotoURL string  `json:"photoUrl"`
}
