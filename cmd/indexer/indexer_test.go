package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/skate-spots/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	removed  []string
	deleted  []string
	last     *redis.GeoLocation
}

func (f *fakeUpdater) GeoAdd(_ context.Context, _ string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	f.last = loc
	return nil
}

func (f *fakeUpdater) ZRem(_ context.Context, _ string, member string) error {
	f.removed = append(f.removed, member)
	return nil
}

func (f *fakeUpdater) HSet(context.Context, string, map[string]any) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	return nil
}

func (f *fakeUpdater) Del(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

var added = models.SpotEvent{
	Op:        models.SpotAdded,
	Kind:      models.KindTrick,
	ID:        "1772389800000",
	ProfileID: "p1",
	Loc:       models.Coord{Lat: 34.0522, Lng: -118.2437},
}

func TestApplyWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	start := time.Now()
	if err := applyWithRetry(context.Background(), f, "geo", added, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
	if f.last.Name != "p1:trick:1772389800000" || f.last.Longitude != -118.2437 {
		t.Fatalf("unexpected geo member %+v", f.last)
	}
}

func TestApplyWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5}
	if err := applyWithRetry(context.Background(), f, "geo", added, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
	if f.hCalls != 0 {
		t.Fatalf("meta must not be written when the geo add failed")
	}
}

func TestApplyWithRetry_Delete(t *testing.T) {
	f := &fakeUpdater{}
	del := added
	del.Op = models.SpotDeleted
	if err := applyWithRetry(context.Background(), f, "geo", del, 3, time.Millisecond); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.removed) != 1 || f.removed[0] != "p1:trick:1772389800000" {
		t.Fatalf("unexpected removals %v", f.removed)
	}
	if len(f.deleted) != 1 || f.deleted[0] != "spot:meta:p1:trick:1772389800000" {
		t.Fatalf("unexpected meta deletes %v", f.deleted)
	}
}

func TestApplyWithRetry_UnknownOp(t *testing.T) {
	e := added
	e.Op = "moved"
	if err := applyWithRetry(context.Background(), &fakeUpdater{}, "geo", e, 3, time.Millisecond); !errors.Is(err, errUnknownOp) {
		t.Fatalf("expected errUnknownOp, got %v", err)
	}
}
