package services

import (
	"encoding/binary"
	"hash"
	"hash/fnv"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/routing-advisor/node-advisor/internal/types"
)

type cachedSnapshot struct {
	snapshot    types.Snapshot
	fingerprint uint64
}

// SnapshotCache holds the latest complete snapshot and notifies subscribers
// when its content changes. Readers never see a partially stored snapshot.
type SnapshotCache struct {
	current atomic.Pointer[cachedSnapshot]

	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan struct{}
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{subscribers: make(map[int]chan struct{})}
}

// Get returns the latest snapshot and whether one was stored yet.
func (c *SnapshotCache) Get() (types.Snapshot, bool) {
	cached := c.current.Load()
	if cached == nil {
		return types.Snapshot{}, false
	}
	return cached.snapshot, true
}

// Store replaces the cached snapshot. Subscribers are notified only when the
// channels, forwards or payments differ from the previous snapshot. It
// reports whether a notification was sent.
func (c *SnapshotCache) Store(snapshot types.Snapshot) bool {
	next := &cachedSnapshot{snapshot: snapshot, fingerprint: fingerprint(snapshot)}
	prev := c.current.Swap(next)
	if prev != nil && prev.fingerprint == next.fingerprint {
		return false
	}
	c.Notify()
	return true
}

// Subscribe returns a channel that receives a signal after every change and
// a function that cancels the subscription. Signals are coalesced: a slow
// subscriber sees at most one pending signal. A subscriber that joins after a
// snapshot was stored receives a signal right away.
func (c *SnapshotCache) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	if c.current.Load() != nil {
		ch <- struct{}{}
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

// Notify signals all subscribers without changing the snapshot.
func (c *SnapshotCache) Notify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// fingerprint hashes the content of a snapshot. The time the snapshot was
// taken and its window start are left out.
func fingerprint(snapshot types.Snapshot) uint64 {
	h := fnv.New64a()

	for _, id := range slices.Sorted(maps.Keys(snapshot.Channels)) {
		ch := snapshot.Channels[id]
		writeUint(h, id)
		writeString(h, ch.RemotePubkey)
		writeString(h, ch.Alias)
		writeUint(h, uint64(ch.Capacity))
		writeUint(h, uint64(ch.LocalBalance))
		writeUint(h, uint64(ch.BaseFeeMsat))
		writeUint(h, uint64(ch.FeeRatePpm))
	}

	writeUint(h, uint64(len(snapshot.Forwards)))
	for _, f := range snapshot.Forwards {
		writeUint(h, uint64(f.Timestamp.UnixNano()))
		writeUint(h, f.ChanIDIn)
		writeUint(h, f.ChanIDOut)
		writeUint(h, uint64(f.AmtInMsat))
		writeUint(h, uint64(f.AmtOutMsat))
		writeUint(h, uint64(f.FeeMsat))
	}

	writeUint(h, uint64(len(snapshot.Payments)))
	for _, p := range snapshot.Payments {
		writeString(h, p.PaymentHash)
		writeUint(h, p.AttemptID)
		writeUint(h, uint64(p.SettledAt.UnixNano()))
		writeUint(h, uint64(p.TotalAmtMsat))
		writeUint(h, uint64(len(p.Hops)))
		for _, hop := range p.Hops {
			writeUint(h, hop.ChanID)
			writeUint(h, uint64(hop.AmtToForwardMsat))
			writeUint(h, uint64(hop.FeeMsat))
		}
	}

	return h.Sum64()
}

func writeUint(h hash.Hash64, v uint64) {
	_, _ = h.Write(binary.BigEndian.AppendUint64(nil, v))
}

func writeString(h hash.Hash64, s string) {
	writeUint(h, uint64(len(s)))
	_, _ = h.Write([]byte(s))
}
