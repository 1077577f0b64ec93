// Package calendar renders skate events as an iCalendar feed.
package calendar

import (
	"fmt"
	"log/slog"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/skate-spots/internal/models"
)

const productID = "-//skate-spots//events//EN"

// DefaultDuration is used for DTEND since events only carry a start.
const DefaultDuration = 2 * time.Hour

// Export renders events as VEVENTs. Event dates carry no zone and are read in
// loc. An event whose date does not parse is skipped and logged.
func Export(events []models.Event, loc *time.Location, logger *slog.Logger) string {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetName("Skate sessions")

	for _, e := range events {
		start, err := e.StartTime(loc)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping event with bad date", slog.String("event", e.ID), slog.String("date", e.EventDate))
			}
			continue
		}
		ve := cal.AddEvent(uid(e))
		ve.SetSummary(e.Title)
		ve.SetStartAt(start)
		ve.SetEndAt(start.Add(DefaultDuration))
		ve.SetDtStampTime(stamp(e))
		if e.LocationName != "" {
			ve.SetLocation(e.LocationName)
		} else {
			ve.SetLocation(models.FormatCoordinates(e.Coord()))
		}
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		ve.SetProperty(ical.ComponentPropertyGeo, fmt.Sprintf("%.6f;%.6f", e.Lat, e.Lng))
		ve.SetOrganizer(participantURI(e.UserID), &ical.KeyValues{Key: string(ical.ParameterCn), Value: []string{e.Username}})
		for _, p := range e.Participants {
			ve.AddAttendee(participantURI(p.UserID), &ical.KeyValues{Key: string(ical.ParameterCn), Value: []string{p.Username}})
		}
	}
	return cal.Serialize()
}

func uid(e models.Event) string { return "event-" + e.ID + "@skate-spots" }

func participantURI(userID string) string { return "urn:skate-spots:user:" + userID }

func stamp(e models.Event) time.Time {
	if e.CreatedAt.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return e.CreatedAt.UTC()
}
