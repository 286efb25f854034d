// Package sources defines the Source contract and the Supervisor that
// reconciles a configured list of sources against the RecordStore.
//
// Grounded on the teacher's internal/plugins/plugins.go PluginManager
// (ordered registration, run-until-stop iteration), generalized from a
// fixed per-query plugin chain to long-lived, independently-scheduled
// background loops reconciled by SourceID rather than executed inline.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"localns/internal/dnsrecord"
	"localns/internal/store"
)

// Source is one configured record provider: a file, a DHCP lease file, a
// Docker daemon, a Traefik instance, or a remote peer. Run blocks,
// publishing RecordSets to pub until ctx is canceled, and must itself
// apply any backoff/retry policy it needs (via internal/runloop).
type Source interface {
	// ID is a stable identifier for this configured source instance,
	// used to detect whether a reloaded config changed it.
	ID() store.SourceID
	// Config returns an opaque, comparable representation of this
	// source's configuration, used by the Supervisor to decide whether a
	// reconfigured source can keep running unchanged or must be
	// restarted.
	Config() interface{}
	// Run blocks until ctx is canceled, publishing record set updates via
	// pub as they become known.
	Run(ctx context.Context, pub func(*dnsrecord.RecordSet))
}

// RemoteSource is implemented by sources whose records describe a peer
// server's snapshot rather than this instance's own configuration
// (currently only internal/sources/remote). Such a source publishes
// directly into the store's timestamped, expiring remote-peer namespace
// instead of through the pub callback Supervisor gives every other
// source, so it is identified by RemoteID rather than SourceID for that
// purpose.
type RemoteSource interface {
	Source
	RemoteID() store.RemoteServerID
}

// Supervisor reconciles a fixed, ordered list of configured sources
// (Dhcp, File, Docker, Traefik, Remote — spec order) against the
// RecordStore: sources whose configuration is unchanged keep running,
// changed ones are restarted, and removed ones are pruned from the store.
type Supervisor struct {
	store   *store.RecordStore
	log     *slog.Logger
	running map[store.SourceID]*runningSource
}

type runningSource struct {
	cancel context.CancelFunc
	cfg    interface{}
	done   chan struct{}
	source Source
}

// New creates an empty Supervisor.
func New(s *store.RecordStore, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{store: s, log: log, running: make(map[store.SourceID]*runningSource)}
}

// Reconcile brings the running set of sources in line with desired,
// preserving Dhcp, File, Docker, Traefik, Remote ordering for startup
// (though once started every source runs concurrently and independently).
func (sv *Supervisor) Reconcile(ctx context.Context, desired []Source) {
	rank := map[string]int{"dhcp": 0, "file": 1, "docker": 2, "traefik": 3, "remote": 4}
	ordered := append([]Source(nil), desired...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank[ordered[i].ID().SourceType] < rank[ordered[j].ID().SourceType]
	})

	wanted := make(map[store.SourceID]Source, len(desired))
	for _, s := range desired {
		wanted[s.ID()] = s
	}

	for id, rs := range sv.running {
		if _, ok := wanted[id]; !ok {
			sv.prune(id, rs)
		}
	}

	for _, s := range ordered {
		id := s.ID()
		if existing, ok := sv.running[id]; ok {
			if configEqual(existing.cfg, s.Config()) {
				continue
			}
			sv.log.Info("source config changed, restarting", "source", id)
			sv.prune(id, existing)
		}
		sv.start(ctx, s)
	}
}

func (sv *Supervisor) start(ctx context.Context, s Source) {
	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	sv.running[s.ID()] = &runningSource{cancel: cancel, cfg: s.Config(), done: done, source: s}

	sv.log.Info("starting source", "source", s.ID())
	go func() {
		defer close(done)
		if _, ok := s.(RemoteSource); ok {
			// A RemoteSource publishes straight into the store's
			// remote-peer namespace with its own timestamp/expiry; it
			// never calls the pub callback.
			s.Run(sctx, func(*dnsrecord.RecordSet) {})
			return
		}
		s.Run(sctx, func(rs *dnsrecord.RecordSet) {
			sv.store.SetLocal(s.ID(), rs)
		})
	}()
}

func (sv *Supervisor) prune(id store.SourceID, rs *runningSource) {
	sv.log.Info("pruning source", "source", id)
	rs.cancel()
	<-rs.done
	delete(sv.running, id)
	if remote, ok := rs.source.(RemoteSource); ok {
		sv.store.SetRemote(remote.RemoteID(), nil, time.Time{}, time.Time{})
		return
	}
	sv.store.SetLocal(id, nil)
}

// Shutdown cancels every running source and waits for them to exit.
func (sv *Supervisor) Shutdown() {
	for id, rs := range sv.running {
		sv.prune(id, rs)
	}
}

func configEqual(a, b interface{}) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
