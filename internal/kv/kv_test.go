package kv

import (
	"context"
	"errors"
	"testing"
)

type failingStore struct{ *MemoryStore }

func (*failingStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}

var names = Value[[]string]{Key: "names", Default: func() []string { return []string{"Skater"} }}

func TestValueDefaultsWhenMissing(t *testing.T) {
	got := names.Load(context.Background(), NewMemoryStore(), "p1", nil)
	if len(got) != 1 || got[0] != "Skater" {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestValueDefaultsWhenCorrupted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Set(ctx, "p1", "names", []byte("{not json")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := names.Load(ctx, s, "p1", nil)
	if len(got) != 1 || got[0] != "Skater" {
		t.Fatalf("expected default on corrupt value, got %v", got)
	}
	if got := names.Load(ctx, &failingStore{NewMemoryStore()}, "p1", nil); got[0] != "Skater" {
		t.Fatalf("expected default on read error, got %v", got)
	}
}

func TestValueRoundTripIsScopedByProfile(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := names.Save(ctx, s, "p1", []string{"a", "b"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := names.Load(ctx, s, "p1", nil); len(got) != 2 || got[1] != "b" {
		t.Fatalf("unexpected value %v", got)
	}
	if got := names.Load(ctx, s, "p2", nil); got[0] != "Skater" {
		t.Fatalf("profiles must not share values, got %v", got)
	}
	if err := s.Delete(ctx, "p1", "names"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "p1", "names"); ok {
		t.Fatalf("expected value to be gone")
	}
}

func TestRedisKeyLayout(t *testing.T) {
	r := NewRedisStore(nil, "skate")
	if got := r.redisKey("p1", "skate-tricks"); got != "skate:p1:skate-tricks" {
		t.Fatalf("unexpected key %q", got)
	}
}
