package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

type SpotKind string

const (
	KindTrick SpotKind = "trick"
	KindEvent SpotKind = "event"
)

// Spot is a map-placed record of either kind. Exactly one of Trick and Event
// is set and it matches Kind; use NewTrickSpot and NewEventSpot to build one.
type Spot struct {
	Kind  SpotKind
	Trick *Trick
	Event *Event
}

var ErrInvalidSpot = errors.New("invalid spot")

func NewTrickSpot(t Trick) Spot { return Spot{Kind: KindTrick, Trick: &t} }

func NewEventSpot(e Event) Spot { return Spot{Kind: KindEvent, Event: &e} }

func (s Spot) ID() string {
	switch s.Kind {
	case KindTrick:
		if s.Trick != nil {
			return s.Trick.ID
		}
	case KindEvent:
		if s.Event != nil {
			return s.Event.ID
		}
	}
	return ""
}

func (s Spot) Coord() Coord {
	switch {
	case s.Kind == KindTrick && s.Trick != nil:
		return s.Trick.Coord()
	case s.Kind == KindEvent && s.Event != nil:
		return s.Event.Coord()
	}
	return Coord{}
}

func (s Spot) Validate() error {
	switch s.Kind {
	case KindTrick:
		if s.Trick == nil || s.Event != nil {
			return fmt.Errorf("%w: trick spot must carry only a trick", ErrInvalidSpot)
		}
	case KindEvent:
		if s.Event == nil || s.Trick != nil {
			return fmt.Errorf("%w: event spot must carry only an event", ErrInvalidSpot)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpot, s.Kind)
	}
	return nil
}

// MarshalJSON flattens the record and adds its "type" discriminator.
func (s Spot) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindTrick:
		return json.Marshal(struct {
			Type SpotKind `json:"type"`
			Trick
		}{KindTrick, *s.Trick})
	default:
		return json.Marshal(struct {
			Type SpotKind `json:"type"`
			Event
		}{KindEvent, *s.Event})
	}
}

func (s *Spot) UnmarshalJSON(b []byte) error {
	var head struct {
		Type SpotKind `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	switch head.Type {
	case KindTrick:
		var t Trick
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*s = NewTrickSpot(t)
	case KindEvent:
		var e Event
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		*s = NewEventSpot(e)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpot, head.Type)
	}
	return nil
}

type SpotOp string

const (
	SpotAdded   SpotOp = "added"
	SpotDeleted SpotOp = "deleted"
)

// SpotEvent is published whenever a spot enters or leaves a profile.
type SpotEvent struct {
	Op        SpotOp   `json:"op"`
	Kind      SpotKind `json:"kind"`
	ID        string   `json:"id"`
	ProfileID string   `json:"profile_id"`
	Loc       Coord    `json:"loc"`
}

// IndexKey is the member name used for the spot in geo indexes. Spot ids
// are only unique inside one profile, so the profile is part of the key.
func (e SpotEvent) IndexKey() string { return e.ProfileID + ":" + string(e.Kind) + ":" + e.ID }
