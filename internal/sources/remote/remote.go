// Package remote implements the Remote source: polls a peer localns
// instance's /v2/records HTTP API and republishes what it reports, so a
// fleet of instances can share each other's locally-sourced records.
//
// Grounded on original_source/src/sources/remote.rs: expiry is computed
// locally as received_at + 2*poll_interval rather than trusted from the
// wire, since a compromised or buggy peer could otherwise keep its
// records alive indefinitely. Unlike every other source, Remote
// publishes straight into the store's remote-peer namespace (see
// internal/sources.RemoteSource) rather than through the generic pub
// callback, since a remote peer's records need store-enforced timestamp/
// expiry conflict resolution that a local source's records don't.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"localns/internal/dnsrecord"
	"localns/internal/runloop"
	"localns/internal/store"
)

// Config is one configured Remote source.
type Config struct {
	BaseURL string
	Poll    time.Duration
}

type wireRecord struct {
	Name  string `json:"name"`
	TTL   *int   `json:"ttl"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type wireSourceRecords struct {
	ServerID   string       `json:"server_id"`
	SourceType string       `json:"source_type"`
	SourceName string       `json:"source_name"`
	Timestamp  string       `json:"timestamp"`
	Records    []wireRecord `json:"records"`
}

type wireResponse struct {
	ServerID      string              `json:"server_id"`
	ServerVersion string              `json:"server_version"`
	SourceRecords []wireSourceRecords `json:"source_records"`
}

// Source polls BaseURL's /v2/records endpoint.
type Source struct {
	id     store.SourceID
	cfg    Config
	client *http.Client
	store  *store.RecordStore
}

// New creates a Remote source. rs is the local RecordStore it publishes
// into directly, via store.SetRemote, bypassing the Supervisor's normal
// per-source pub callback (see internal/sources.RemoteSource).
func New(id store.SourceID, cfg Config, rs *store.RecordStore) *Source {
	return &Source{id: id, cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}, store: rs}
}

func (s *Source) ID() store.SourceID  { return s.id }
func (s *Source) Config() interface{} { return s.cfg }

// RemoteID identifies this configured peer within the store's
// remote-peer map; it is derived from this source's own SourceID since
// every configured Remote instance targets a distinct peer.
func (s *Source) RemoteID() store.RemoteServerID {
	return store.RemoteServerID(s.id.String())
}

func (s *Source) Run(ctx context.Context, pub func(*dnsrecord.RecordSet)) {
	loop := runloop.New(runloop.DefaultConfig(s.cfg.Poll))
	loop.Run(ctx, func(ctx context.Context) runloop.Result {
		rs, err := s.load(ctx)
		if err != nil {
			// Per spec.md §4.6/§7, a backoff clears this source's
			// contribution rather than leaving a dead peer's stale
			// records in the store indefinitely.
			s.store.SetRemote(s.RemoteID(), nil, time.Time{}, time.Time{})
			return runloop.Backoff
		}
		now := time.Now()
		s.store.SetRemote(s.RemoteID(), rs, now, now.Add(s.expiry()))
		return runloop.Sleep
	})
}

func (s *Source) load(ctx context.Context) (*dnsrecord.RecordSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/v2/records", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: unexpected status %d", resp.StatusCode)
	}

	var body wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(body.ServerID); err != nil {
		return nil, fmt.Errorf("remote: invalid server_id %q: %w", body.ServerID, err)
	}

	var records []dnsrecord.Record
	for _, sr := range body.SourceRecords {
		for _, wr := range sr.Records {
			rec, ok := toRecord(wr, s.defaultTTL())
			if !ok {
				continue
			}
			records = append(records, rec)
		}
	}
	return dnsrecord.NewRecordSet(records), nil
}

// defaultTTL is used for a wire record that reports a null ttl.
func (s *Source) defaultTTL() time.Duration {
	return s.cfg.Poll
}

// expiry returned on reads is defensive: a remote peer's expiry is never
// trusted directly, it's derived as twice this source's own poll
// interval — if the peer stops answering, its records age out of the
// store on that schedule regardless of what TTL it reported.
func (s *Source) expiry() time.Duration {
	return 2 * s.cfg.Poll
}

func toRecord(wr wireRecord, defaultTTL time.Duration) (dnsrecord.Record, bool) {
	name := dnsrecord.Fqdn(wr.Name)
	ttl := defaultTTL
	if wr.TTL != nil {
		ttl = time.Duration(*wr.TTL) * time.Second
	}

	switch wr.Type {
	case "A", "AAAA":
		ip := net.ParseIP(wr.Value)
		if ip == nil {
			return dnsrecord.Record{}, false
		}
		if wr.Type == "A" {
			return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.A(ip)}, true
		}
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.AAAA(ip)}, true
	case "CNAME":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.CNAME(wr.Value)}, true
	case "ANAME":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.ANAME(wr.Value)}, true
	case "TXT":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.TXT(wr.Value)}, true
	default:
		return dnsrecord.Record{}, false
	}
}
