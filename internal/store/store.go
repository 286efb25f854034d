// Package store holds the RecordStore: the single in-memory source of
// truth assembled from every configured source's RecordSet plus whatever
// remote peers have published. It is never written to disk — restarting
// the process means every source re-populates it from scratch.
package store

import (
	"fmt"
	"sync"
	"time"

	"localns/internal/dnsrecord"
)

// SourceID identifies one record source: the server it runs on plus its
// (source_type, source_name) pair, which is unique within that server.
// ServerID distinguishes this process's own sources from a peer's, once
// a peer's source_records are reported over /v2/records.
type SourceID struct {
	ServerID   string
	SourceType string
	SourceName string
}

func (id SourceID) String() string {
	return fmt.Sprintf("%s/%s/%s", id.ServerID, id.SourceType, id.SourceName)
}

// RemoteServerID identifies a peer localns instance whose /v2/records
// snapshot has been merged into this store.
type RemoteServerID string

// localEntry is one local source's latest published RecordSet plus the
// wall-clock time it was published, so the HTTP API can report a
// timestamp per source_records entry.
type localEntry struct {
	timestamp time.Time
	records   *dnsrecord.RecordSet
}

// Timestamp reports when this source's RecordSet was last published.
func (e *localEntry) Timestamp() time.Time { return e.timestamp }

// Records returns the RecordSet this source last published.
func (e *localEntry) Records() *dnsrecord.RecordSet { return e.records }

// remoteEntry is one peer's latest reported snapshot: its records, the
// wall-clock timestamp it was received at (used for conflict resolution
// against a later poll), and the absolute deadline after which it is
// considered dead.
type remoteEntry struct {
	timestamp time.Time
	expiry    time.Time
	records   *dnsrecord.RecordSet
}

// Data is an immutable snapshot of everything the store currently
// believes: one RecordSet per local source, one per remote peer, and the
// merged view computed from both. Subscribers receive *Data values and
// must never mutate them.
type Data struct {
	Local  map[SourceID]*localEntry
	Remote map[RemoteServerID]*remoteEntry
	Merged *dnsrecord.RecordSet
}

func newData() *Data {
	return &Data{
		Local:  make(map[SourceID]*localEntry),
		Remote: make(map[RemoteServerID]*remoteEntry),
		Merged: dnsrecord.NewRecordSet(nil),
	}
}

func (d *Data) clone() *Data {
	nd := &Data{
		Local:  make(map[SourceID]*localEntry, len(d.Local)),
		Remote: make(map[RemoteServerID]*remoteEntry, len(d.Remote)),
	}
	for k, v := range d.Local {
		nd.Local[k] = v
	}
	for k, v := range d.Remote {
		nd.Remote[k] = v
	}
	return nd
}

// expireRemote drops any remote peer entry whose expiry has passed. It
// runs under the write lock after every mutation, so a snapshot holds no
// peer that was already past its deadline when the snapshot was built.
// Reads do not re-check expiry: a peer whose deadline passes later stays
// in the snapshot until the next mutation.
func (d *Data) expireRemote(now time.Time) {
	for id, e := range d.Remote {
		if !e.expiry.After(now) {
			delete(d.Remote, id)
		}
	}
}

func (d *Data) remerge() {
	sets := make([]*dnsrecord.RecordSet, 0, len(d.Local)+len(d.Remote))
	// Remote sets are merged first and local sets last: records from both
	// are kept side by side, and where a local and a remote record share
	// an IP the local one's synthesized PTR wins.
	for _, e := range d.Remote {
		sets = append(sets, e.records)
	}
	for _, e := range d.Local {
		sets = append(sets, e.records)
	}
	d.Merged = dnsrecord.Merge(sets...)
}

// RecordStore is the mutex-guarded, subscribable holder of Data. Updates
// replace a source's whole RecordSet and republish a fresh Data snapshot
// to every subscriber; there is no in-place editing.
type RecordStore struct {
	mu   sync.RWMutex
	data *Data
	bus  *broadcaster
}

// New creates an empty RecordStore.
func New() *RecordStore {
	return &RecordStore{
		data: newData(),
		bus:  newBroadcaster(newData()),
	}
}

// Snapshot returns the current merged view. The returned value is safe to
// retain — it will never be mutated.
func (s *RecordStore) Snapshot() *Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SetLocal replaces the RecordSet published by a local source, or
// removes it entirely when rs is nil (the source was pruned).
func (s *RecordStore) SetLocal(id SourceID, rs *dnsrecord.RecordSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.data.clone()
	if rs == nil {
		delete(nd.Local, id)
	} else {
		nd.Local[id] = &localEntry{timestamp: time.Now(), records: rs}
	}
	nd.expireRemote(time.Now())
	nd.remerge()
	s.data = nd
	s.bus.publish(nd)
}

// SetRemote merges a peer's reported snapshot per spec.md §4.2: absent ->
// insert; incoming.timestamp strictly newer -> replace; equal timestamp
// -> keep the stored records but extend expiry to the later of the two;
// strictly older -> ignored entirely. rs == nil always clears the peer's
// entry outright (used both for a Remote source that has backed off and
// must stop contributing stale records, and for one being pruned).
func (s *RecordStore) SetRemote(id RemoteServerID, rs *dnsrecord.RecordSet, timestamp, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.data.clone()

	if rs == nil {
		delete(nd.Remote, id)
	} else if existing, ok := nd.Remote[id]; !ok {
		nd.Remote[id] = &remoteEntry{timestamp: timestamp, expiry: expiry, records: rs}
	} else if timestamp.After(existing.timestamp) {
		nd.Remote[id] = &remoteEntry{timestamp: timestamp, expiry: expiry, records: rs}
	} else if timestamp.Equal(existing.timestamp) {
		newExpiry := existing.expiry
		if expiry.After(newExpiry) {
			newExpiry = expiry
		}
		nd.Remote[id] = &remoteEntry{timestamp: existing.timestamp, expiry: newExpiry, records: existing.records}
	}
	// Strictly older incoming timestamps are ignored, leaving existing as-is.

	nd.expireRemote(time.Now())
	nd.remerge()
	s.data = nd
	s.bus.publish(nd)
}

// Subscribe returns a channel that receives the latest Data snapshot
// whenever the store changes. The channel always holds the most recent
// value only — slow subscribers observe the latest state, never a queue
// of stale ones. Call the returned stop func to release the
// subscription.
func (s *RecordStore) Subscribe() (<-chan *Data, func()) {
	return s.bus.subscribe()
}
