package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/example/skate-spots/internal/app"
	"github.com/example/skate-spots/internal/logging"
	"github.com/example/skate-spots/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestChangedPublishesKeyedEvents(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, logging.Discard())

	p.Changed(context.Background(), app.Change{
		Profile: "p1",
		Spots: []models.SpotEvent{
			{Op: models.SpotAdded, Kind: models.KindTrick, ID: "1", ProfileID: "p1", Loc: models.Coord{Lat: 34, Lng: -118}},
			{Op: models.SpotDeleted, Kind: models.KindEvent, ID: "2", ProfileID: "p1"},
		},
	})

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "p1:trick:1" || string(w.msgs[1].Key) != "p1:event:2" {
		t.Fatalf("unexpected keys %q %q", w.msgs[0].Key, w.msgs[1].Key)
	}
	var e models.SpotEvent
	if err := json.Unmarshal(w.msgs[1].Value, &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Op != models.SpotDeleted || e.ProfileID != "p1" {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestChangedWithoutSpotsWritesNothing(t *testing.T) {
	w := &fakeWriter{err: errors.New("should not be called")}
	p := newProducer(w, logging.Discard())
	p.Changed(context.Background(), app.Change{Profile: "p1"})
	if len(w.msgs) != 0 {
		t.Fatalf("expected no messages")
	}
}

func TestPublishReturnsWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newProducer(w, logging.Discard())
	err := p.Publish(context.Background(), models.SpotEvent{Op: models.SpotAdded, Kind: models.KindTrick, ID: "1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	// Changed swallows the error after logging it.
	p.Changed(context.Background(), app.Change{Spots: []models.SpotEvent{{Kind: models.KindTrick, ID: "1"}}})

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to close")
	}
}
