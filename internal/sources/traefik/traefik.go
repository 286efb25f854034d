// Package traefik implements the Traefik source: polls a Traefik
// instance's HTTP API for configured routers and derives hostnames from
// their Host(`...`) rule.
//
// Grounded on original_source/src/sources/traefik.rs, including its
// explicit limitation: only a bare Host(`name`) rule (optionally one of
// several && Host(...) clauses) is understood — compound rules using
// PathPrefix, Headers, or boolean combinations beyond a simple && chain
// of Host() clauses are skipped, not partially parsed. No Traefik SDK
// exists anywhere in the pack; original_source itself hand-rolls its
// calls over reqwest rather than a Traefik client crate, so the Go
// analogue is also a small hand-rolled client over net/http.
package traefik

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"localns/internal/dnsrecord"
	"localns/internal/runloop"
	"localns/internal/store"
)

// Config is one configured Traefik source.
type Config struct {
	BaseURL string // e.g. "http://localhost:8080"
	Target  string // IP address routers resolve to
	TTL     time.Duration
	Poll    time.Duration
}

type router struct {
	Rule string `json:"rule"`
}

// Source polls BaseURL for its router list.
type Source struct {
	id     store.SourceID
	cfg    Config
	client *http.Client
}

func New(id store.SourceID, cfg Config) *Source {
	return &Source{id: id, cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *Source) ID() store.SourceID  { return s.id }
func (s *Source) Config() interface{} { return s.cfg }

func (s *Source) Run(ctx context.Context, pub func(*dnsrecord.RecordSet)) {
	loop := runloop.New(runloop.DefaultConfig(s.cfg.Poll))
	loop.Run(ctx, func(ctx context.Context) runloop.Result {
		rs, err := s.load(ctx)
		if err != nil {
			pub(dnsrecord.NewRecordSet(nil))
			return runloop.Backoff
		}
		pub(rs)
		return runloop.Sleep
	})
}

func (s *Source) load(ctx context.Context) (*dnsrecord.RecordSet, error) {
	routers, err := s.fetchRouters(ctx)
	if err != nil {
		return nil, err
	}

	ip := net.ParseIP(s.cfg.Target)
	var records []dnsrecord.Record
	for _, r := range routers {
		for _, name := range hostnamesFromRule(r.Rule) {
			records = append(records, dnsrecord.Record{Name: dnsrecord.Fqdn(name), TTL: s.cfg.TTL, Data: dnsrecord.A(ip)})
		}
	}
	return dnsrecord.NewRecordSet(records), nil
}

func (s *Source) fetchRouters(ctx context.Context) ([]router, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/api/http/routers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("traefik: unexpected status %d", resp.StatusCode)
	}

	var routers []router
	if err := json.NewDecoder(resp.Body).Decode(&routers); err != nil {
		return nil, err
	}
	return routers, nil
}

var hostRuleRe = regexp.MustCompile("Host\\(`([^`]+)`\\)")

// hostChainRe matches a rule made only of Host(`...`) clauses joined by &&.
var hostChainRe = regexp.MustCompile("^\\s*Host\\(`[^`]+`\\)(\\s*&&\\s*Host\\(`[^`]+`\\))*\\s*$")

// hostnamesFromRule extracts every Host(`...`) clause from rule. Rules
// using anything beyond a && chain of Host() clauses are not understood
// and contribute no hostnames — this mirrors the original
// implementation's deliberate limitation rather than attempting a full
// rule-language parser.
func hostnamesFromRule(rule string) []string {
	if !hostChainRe.MatchString(rule) {
		return nil
	}
	matches := hostRuleRe.FindAllStringSubmatch(rule, -1)
	if matches == nil {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
