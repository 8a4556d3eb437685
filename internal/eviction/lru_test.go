package eviction

import (
	"context"
	"sync"
	"testing"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// fakeStore records every Purge call; Lookup/GetMissHandler/UpdateMeta are
// unused by the eviction tracker and simply unimplemented.
type fakeStore struct {
	mu     sync.Mutex
	purged []string
}

func (f *fakeStore) Lookup(context.Context, *cachekey.Key) (*cachemeta.Meta, storage.HitHandler, error) {
	return nil, nil, nil
}
func (f *fakeStore) GetMissHandler(context.Context, *cachekey.Key, *cachemeta.Meta) (storage.MissHandler, error) {
	return nil, nil
}
func (f *fakeStore) Purge(_ context.Context, key *cachekey.CompactKey, _ storage.PurgeType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, key.Combined())
	return true, nil
}
func (f *fakeStore) UpdateMeta(context.Context, *cachekey.Key, *cachemeta.Meta) (bool, error) {
	return false, nil
}

func key(path string) *cachekey.CompactKey {
	return cachekey.New(nil, cachekey.Primary("http", "example.com", path), "").Compact()
}

func TestAdmitUnderCapacityDoesNotEvict(t *testing.T) {
	store := &fakeStore{}
	l := New(store, 100)

	l.Admit(context.Background(), key("/a"), 10)
	l.Admit(context.Background(), key("/b"), 10)

	if l.Size() != 20 {
		t.Errorf("Size() = %d, want 20", l.Size())
	}
	if l.Count() != 2 {
		t.Errorf("Count() = %d, want 2", l.Count())
	}
	if len(store.purged) != 0 {
		t.Errorf("expected no purges under capacity, got %v", store.purged)
	}
}

func TestAdmitOverCapacityEvictsLeastRecentlyTouched(t *testing.T) {
	store := &fakeStore{}
	l := New(store, 15)

	a, b := key("/a"), key("/b")
	l.Admit(context.Background(), a, 10)
	l.Admit(context.Background(), b, 10)

	if len(store.purged) != 1 {
		t.Fatalf("expected exactly one eviction, got %v", store.purged)
	}
	if store.purged[0] != a.Combined() {
		t.Errorf("evicted %q, want the least-recently-used %q", store.purged[0], a.Combined())
	}
	if l.Size() != 10 {
		t.Errorf("Size() after eviction = %d, want 10", l.Size())
	}
}

func TestTouchProtectsFromEviction(t *testing.T) {
	store := &fakeStore{}
	l := New(store, 25)

	a, b := key("/a"), key("/b")
	l.Admit(context.Background(), a, 10)
	l.Admit(context.Background(), b, 10)
	// Both fit (20 <= 25). Touching a moves it to the front, so when c
	// pushes the tracker over capacity, b (least recently touched) is
	// evicted instead of a.
	l.Touch(a)

	c := key("/c")
	l.Admit(context.Background(), c, 10)

	found := map[string]bool{}
	for _, p := range store.purged {
		found[p] = true
	}
	if !found[b.Combined()] {
		t.Errorf("expected b to be evicted after a was touched, purged = %v", store.purged)
	}
	if found[a.Combined()] {
		t.Errorf("expected touched a to survive eviction, purged = %v", store.purged)
	}
}

func TestForgetRemovesWithoutPurging(t *testing.T) {
	store := &fakeStore{}
	l := New(store, 0)

	a := key("/a")
	l.Admit(context.Background(), a, 10)
	l.Forget(a)

	if l.Size() != 0 || l.Count() != 0 {
		t.Errorf("expected tracker to be empty after Forget, size=%d count=%d", l.Size(), l.Count())
	}
	if len(store.purged) != 0 {
		t.Errorf("Forget must not call Purge, got %v", store.purged)
	}
}

func TestZeroMaxBytesDisablesEviction(t *testing.T) {
	store := &fakeStore{}
	l := New(store, 0)

	for i := 0; i < 5; i++ {
		l.Admit(context.Background(), key("/many"), 1<<20)
	}
	if len(store.purged) != 0 {
		t.Errorf("expected unbounded tracker (maxBytes=0) to never evict, got %v", store.purged)
	}
}
