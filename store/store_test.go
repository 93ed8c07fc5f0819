package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ieee0824/voiceprint-go/store"
)

func newBadgerStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewBadger(store.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]store.Store {
	return map[string]store.Store{
		"badger": newBadgerStore(t),
		"memory": store.NewMemory(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	enrolled := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := &store.Record{
				ID:       "alice",
				Y:        []float64{0.5, -1.25},
				Z:        []float64{0.1, 0.2, 0.3},
				Sessions: 3,
				Enrolled: enrolled,
			}
			if err := s.Put(ctx, want); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.Get(ctx, "alice")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ID != want.ID || got.Sessions != want.Sessions {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if !got.Enrolled.Equal(enrolled) {
				t.Errorf("Enrolled = %v, want %v", got.Enrolled, enrolled)
			}
			for i := range want.Y {
				if got.Y[i] != want.Y[i] {
					t.Errorf("Y[%d] = %v, want %v", i, got.Y[i], want.Y[i])
				}
			}
			for i := range want.Z {
				if got.Z[i] != want.Z[i] {
					t.Errorf("Z[%d] = %v, want %v", i, got.Z[i], want.Z[i])
				}
			}
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, "nobody"); err != nil {
				t.Errorf("Delete unknown: %v", err)
			}
		})
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"carol", "alice", "bob"} {
				if err := s.Put(ctx, &store.Record{ID: id, Y: []float64{1}}); err != nil {
					t.Fatalf("Put %s: %v", id, err)
				}
			}
			ids, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := []string{"alice", "bob", "carol"}
			if len(ids) != len(want) {
				t.Fatalf("List = %v, want %v", ids, want)
			}
			for i := range want {
				if ids[i] != want[i] {
					t.Errorf("List[%d] = %q, want %q", i, ids[i], want[i])
				}
			}

			if err := s.Delete(ctx, "bob"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, "bob"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}
			ids, _ = s.List(ctx)
			if len(ids) != 2 {
				t.Errorf("List after delete = %v", ids)
			}
		})
	}
}

func TestStoreReplace(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s.Put(ctx, &store.Record{ID: "a", Sessions: 1})
			s.Put(ctx, &store.Record{ID: "a", Sessions: 2})
			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatal(err)
			}
			if got.Sessions != 2 {
				t.Errorf("Sessions = %d, want 2", got.Sessions)
			}
		})
	}
}

func TestStoreInvalidID(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, &store.Record{}); !errors.Is(err, store.ErrInvalidID) {
				t.Errorf("Put empty id = %v, want ErrInvalidID", err)
			}
			if _, err := s.Get(ctx, ""); !errors.Is(err, store.ErrInvalidID) {
				t.Errorf("Get empty id = %v, want ErrInvalidID", err)
			}
		})
	}
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	r := &store.Record{ID: "a", Y: []float64{1, 2}}
	s.Put(ctx, r)
	r.Y[0] = 99
	got, _ := s.Get(ctx, "a")
	if got.Y[0] != 1 {
		t.Errorf("stored record aliased caller slice: Y[0] = %v", got.Y[0])
	}
	got.Y[1] = 42
	again, _ := s.Get(ctx, "a")
	if again.Y[1] != 2 {
		t.Errorf("returned record aliased stored data: Y[1] = %v", again.Y[1])
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := store.NewBadger(store.BadgerOptions{}); err == nil {
		t.Error("NewBadger without Dir should fail")
	}
}

func TestBadgerOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.NewBadger(store.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &store.Record{ID: "persist", Sessions: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = store.NewBadger(store.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Sessions != 5 {
		t.Errorf("Sessions = %d, want 5", got.Sessions)
	}
}
