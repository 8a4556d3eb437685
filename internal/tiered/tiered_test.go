package tiered

import (
	"context"
	"errors"
	"testing"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/cachemeta"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

type fakeStore struct {
	meta        *cachemeta.Meta
	hit         storage.HitHandler
	lookupErr   error
	missHandler storage.MissHandler
	missErr     error
	purgeErr    error
	purgeCalls  int
	updateCalls int
}

func (f *fakeStore) Lookup(context.Context, *cachekey.Key) (*cachemeta.Meta, storage.HitHandler, error) {
	return f.meta, f.hit, f.lookupErr
}
func (f *fakeStore) GetMissHandler(context.Context, *cachekey.Key, *cachemeta.Meta) (storage.MissHandler, error) {
	return f.missHandler, f.missErr
}
func (f *fakeStore) Purge(context.Context, *cachekey.CompactKey, storage.PurgeType) (bool, error) {
	f.purgeCalls++
	return true, f.purgeErr
}
func (f *fakeStore) UpdateMeta(context.Context, *cachekey.Key, *cachemeta.Meta) (bool, error) {
	f.updateCalls++
	return true, nil
}

type fakeHit struct{}

func (fakeHit) ReadBody(context.Context) ([]byte, error) { return nil, nil }
func (fakeHit) CanSeek() bool                            { return false }
func (fakeHit) Seek(int64, *int64) error                 { return nil }
func (fakeHit) Finish(context.Context) error             { return nil }
func (fakeHit) Weight() int64                            { return 0 }

type fakeMiss struct {
	writeErr  error
	finishErr error
	writes    int
	finished  bool
	aborted   bool
}

func (m *fakeMiss) WriteBody(context.Context, []byte, bool) error {
	m.writes++
	return m.writeErr
}
func (m *fakeMiss) Finish(context.Context) (storage.MissResult, error) {
	m.finished = true
	if m.finishErr != nil {
		return storage.MissResult{}, m.finishErr
	}
	return storage.MissResult{Kind: storage.Created, CreatedBytes: 5}, nil
}
func (m *fakeMiss) Abort() { m.aborted = true }

func testKey() *cachekey.Key {
	return cachekey.New(nil, cachekey.Primary("http", "example.com", "/a"), "")
}

func TestLookupFallsBackToSecondary(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{meta: &cachemeta.Meta{StatusCode: 200}, hit: fakeHit{}}
	s := New(primary, secondary, PrimaryOnly)

	meta, hit, err := s.Lookup(context.Background(), testKey())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if hit == nil || meta.StatusCode != 200 {
		t.Fatalf("expected a hit served from the secondary tier, got meta=%v hit=%v", meta, hit)
	}
}

func TestLookupSecondaryErrorDegradesToMiss(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{lookupErr: errors.New("s3 unavailable")}
	s := New(primary, secondary, PrimaryOnly)

	meta, hit, err := s.Lookup(context.Background(), testKey())
	if err != nil {
		t.Fatalf("expected secondary failure to degrade to a miss, got error %v", err)
	}
	if meta != nil || hit != nil {
		t.Fatalf("expected a miss, got meta=%v hit=%v", meta, hit)
	}
}

func TestGetMissHandlerPrimaryOnlyPolicy(t *testing.T) {
	primaryHandler := &fakeMiss{}
	primary := &fakeStore{missHandler: primaryHandler}
	secondary := &fakeStore{missHandler: &fakeMiss{}}
	s := New(primary, secondary, PrimaryOnly)

	mh, err := s.GetMissHandler(context.Background(), testKey(), nil)
	if err != nil {
		t.Fatalf("GetMissHandler() error = %v", err)
	}
	if mh != primaryHandler {
		t.Fatalf("expected PrimaryOnly policy to return the primary handler directly")
	}
}

func TestGetMissHandlerWriteThroughFansOut(t *testing.T) {
	primaryHandler := &fakeMiss{}
	secondaryHandler := &fakeMiss{}
	primary := &fakeStore{missHandler: primaryHandler}
	secondary := &fakeStore{missHandler: secondaryHandler}
	s := New(primary, secondary, WriteThroughBoth)

	mh, err := s.GetMissHandler(context.Background(), testKey(), nil)
	if err != nil {
		t.Fatalf("GetMissHandler() error = %v", err)
	}

	if err := mh.WriteBody(context.Background(), []byte("hello"), true); err != nil {
		t.Fatalf("WriteBody() error = %v", err)
	}
	if primaryHandler.writes != 1 || secondaryHandler.writes != 1 {
		t.Errorf("expected both tiers to receive the write, primary=%d secondary=%d", primaryHandler.writes, secondaryHandler.writes)
	}

	if _, err := mh.Finish(context.Background()); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !primaryHandler.finished || !secondaryHandler.finished {
		t.Errorf("expected both tiers to finish")
	}
}

func TestFanOutHandlerSecondaryFailureIsBestEffort(t *testing.T) {
	primaryHandler := &fakeMiss{}
	secondaryHandler := &fakeMiss{writeErr: errors.New("secondary down")}
	primary := &fakeStore{missHandler: primaryHandler}
	secondary := &fakeStore{missHandler: secondaryHandler}
	s := New(primary, secondary, WriteThroughBoth)

	mh, err := s.GetMissHandler(context.Background(), testKey(), nil)
	if err != nil {
		t.Fatalf("GetMissHandler() error = %v", err)
	}

	if err := mh.WriteBody(context.Background(), []byte("hello"), false); err != nil {
		t.Fatalf("expected a secondary write failure not to fail the overall write, got %v", err)
	}
	if !secondaryHandler.aborted {
		t.Errorf("expected the secondary handler to be aborted after its write failed")
	}

	if _, err := mh.Finish(context.Background()); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if !primaryHandler.finished {
		t.Errorf("expected the primary tier to still finish")
	}
	if secondaryHandler.finished {
		t.Errorf("expected a failed secondary handler not to be finished")
	}
}

func TestPurgeInvalidationAlwaysFansOutRegardlessOfWritePolicy(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{}
	s := New(primary, secondary, PrimaryOnly)

	if _, err := s.Purge(context.Background(), testKey().Compact(), storage.Invalidation); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if primary.purgeCalls != 1 || secondary.purgeCalls != 1 {
		t.Errorf("expected Invalidation to fan out to both tiers, primary=%d secondary=%d", primary.purgeCalls, secondary.purgeCalls)
	}
}

func TestPurgeEvictionTouchesPrimaryOnly(t *testing.T) {
	primary := &fakeStore{}
	secondary := &fakeStore{}
	s := New(primary, secondary, WriteThroughBoth)

	if _, err := s.Purge(context.Background(), testKey().Compact(), storage.Eviction); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if primary.purgeCalls != 1 {
		t.Errorf("expected Eviction to purge the primary tier, got %d calls", primary.purgeCalls)
	}
	if secondary.purgeCalls != 0 {
		t.Errorf("expected Eviction to leave the secondary tier untouched, got %d calls", secondary.purgeCalls)
	}
}

func TestPurgeInvalidationOrsExistedAcrossTiers(t *testing.T) {
	primary := &fakeStore{} // Purge() returns true
	secondary := &fakeStore{}
	s := New(primary, secondary, PrimaryOnly)

	existed, err := s.Purge(context.Background(), testKey().Compact(), storage.Invalidation)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if !existed {
		t.Errorf("expected existed = true when either tier reports the object existed")
	}
}

func TestNilSecondaryBehavesLikePrimaryAlone(t *testing.T) {
	primary := &fakeStore{meta: &cachemeta.Meta{StatusCode: 200}, hit: fakeHit{}}
	s := New(primary, nil, WriteThroughBoth)

	meta, hit, err := s.Lookup(context.Background(), testKey())
	if err != nil || hit == nil || meta.StatusCode != 200 {
		t.Fatalf("expected a direct passthrough to primary, got meta=%v hit=%v err=%v", meta, hit, err)
	}
}
