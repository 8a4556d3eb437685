// Package eviction tracks recency and size of admitted cache objects and
// drives the Storage purge protocol to keep total size under a
// configured capacity. Grounded on the container/list-based LRU found in
// the pack's FCReverseProxy proxy cache, generalized here to track
// compact keys and byte weights rather than whole in-memory responses.
package eviction

import (
	"container/list"
	"context"
	"sync"

	"github.com/ChrisWhealy/edge-cdn-store/internal/cachekey"
	"github.com/ChrisWhealy/edge-cdn-store/internal/storage"
)

// entry is the value stored at each list element.
type entry struct {
	key    *cachekey.CompactKey
	weight int64
}

// LRU caps total tracked weight (bytes) at maxBytes, evicting the least
// recently touched objects through store.Purge when Admit pushes the
// running total over capacity.
type LRU struct {
	mu       sync.Mutex
	list     *list.List
	index    map[string]*list.Element
	maxBytes int64
	curBytes int64
	store    storage.Storage
}

// New builds an eviction tracker over store, capped at maxBytes of
// tracked object weight.
func New(store storage.Storage, maxBytes int64) *LRU {
	return &LRU{
		list:     list.New(),
		index:    make(map[string]*list.Element),
		maxBytes: maxBytes,
		store:    store,
	}
}

// Touch records key as just accessed, moving it to the front of the
// recency list if already tracked. It does not change curBytes.
func (l *LRU) Touch(key *cachekey.CompactKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.index[key.Combined()]; ok {
		l.list.MoveToFront(el)
	}
}

// Admit records a newly written object of the given weight and evicts
// from the tail, via store.Purge, until the tracked total is back under
// capacity. An object already tracked has its weight replaced in place.
func (l *LRU) Admit(ctx context.Context, key *cachekey.CompactKey, weight int64) {
	l.mu.Lock()
	combined := key.Combined()
	if el, ok := l.index[combined]; ok {
		old := el.Value.(*entry)
		l.curBytes += weight - old.weight
		old.weight = weight
		l.list.MoveToFront(el)
	} else {
		el := l.list.PushFront(&entry{key: key, weight: weight})
		l.index[combined] = el
		l.curBytes += weight
	}

	var toEvict []*cachekey.CompactKey
	for l.maxBytes > 0 && l.curBytes > l.maxBytes && l.list.Len() > 0 {
		back := l.list.Back()
		victim := back.Value.(*entry)
		l.list.Remove(back)
		delete(l.index, victim.key.Combined())
		l.curBytes -= victim.weight
		toEvict = append(toEvict, victim.key)
	}
	l.mu.Unlock()

	for _, victim := range toEvict {
		_, _ = l.store.Purge(ctx, victim, storage.Eviction)
	}
}

// Forget removes key from tracking without purging the store, for use
// after an external Invalidation purge has already removed the object.
func (l *LRU) Forget(key *cachekey.CompactKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	combined := key.Combined()
	if el, ok := l.index[combined]; ok {
		victim := el.Value.(*entry)
		l.list.Remove(el)
		delete(l.index, combined)
		l.curBytes -= victim.weight
	}
}

// Size reports the currently tracked total weight in bytes.
func (l *LRU) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.curBytes
}

// Count reports the number of objects currently tracked.
func (l *LRU) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}
