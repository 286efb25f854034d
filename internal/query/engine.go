// Package query implements the per-query resolution algorithm: match the
// query name against configured zones, answer from the in-memory record
// store whenever it knows the name, chase CNAME/ANAME chains, and
// otherwise delegate to the zone's upstream resolvers.
//
// Grounded on the teacher's plugins/authoritative/authoritative.go
// Execute method (longest-suffix zone match, NXDOMAIN/NODATA with SOA in
// Authority, CNAME-following loop), generalized to delegate to upstream
// rather than refuse, and to terminate CNAME/ANAME chasing with a
// seen-name set instead of a fixed depth counter.
package query

import (
	"context"
	"log/slog"

	"github.com/miekg/dns"

	"localns/internal/dnsrecord"
	"localns/internal/store"
	"localns/internal/zone"
)

// Upstream is the subset of *upstream.Upstream the engine depends on,
// narrowed to ease testing with a fake.
type Upstream interface {
	Query(ctx context.Context, candidates []string, req *dns.Msg) (*dns.Msg, error)
}

// Engine answers one query at a time against a RecordStore snapshot and a
// Zones configuration, falling back to Upstream for names the store does
// not know when the client asked for recursion.
type Engine struct {
	store    *store.RecordStore
	zones    *zone.Zones
	upstream Upstream
	log      *slog.Logger
}

// New creates an Engine.
func New(s *store.RecordStore, z *zone.Zones, up Upstream, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: s, zones: z, upstream: up, log: log}
}

// state tracks the names visited while chasing a CNAME/ANAME chain, so a
// cycle terminates instead of looping forever.
type state struct {
	seen map[string]struct{}
}

func newState() *state { return &state{seen: make(map[string]struct{})} }

func (s *state) visit(name string) bool {
	if _, ok := s.seen[name]; ok {
		return false
	}
	s.seen[name] = struct{}{}
	return true
}

// Execute answers req and returns the response to write back to the
// client. It never returns an error for a malformed-but-well-formed DNS
// question; protocol errors short-circuit into a FORMERR/SERVFAIL
// response instead, matching how a DNS server must always reply.
func (e *Engine) Execute(ctx context.Context, req *dns.Msg) *dns.Msg {
	if len(req.Question) == 0 {
		resp := new(dns.Msg)
		resp.SetRcode(req, dns.RcodeFormatError)
		return resp
	}

	q := req.Question[0]
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Compress = true
	resp.RecursionAvailable = true

	if opt := req.IsEdns0(); opt != nil {
		e.applyEDNS0(resp, opt)
		if opt.Version() != 0 {
			resp.SetEdns0(4096, false)
			resp.Rcode = dns.RcodeBadVers
			return resp
		}
	}

	snapshot := e.store.Snapshot().Merged
	zcfg := e.zones.Match(q.Name)
	rd := req.RecursionDesired
	attachesSOA := zcfg.Authoritative && zcfg.Origin != ""

	st := newState()
	name := dnsrecord.Fqdn(q.Name)

	if e.resolveName(resp, snapshot, zcfg, name, q.Qtype, st, rd) {
		resp.Authoritative = attachesSOA
		if len(resp.Answer) > 0 {
			return resp
		}
		// Name is known but nothing of this type exists: NODATA.
		resp.Rcode = dns.RcodeSuccess
		if attachesSOA {
			e.addSOA(resp, zcfg)
		}
		return resp
	}

	if rd && len(zcfg.Upstreams) > 0 {
		return e.delegate(ctx, req, resp, zcfg.Upstreams)
	}

	resp.Rcode = dns.RcodeNameError
	if attachesSOA {
		resp.Authoritative = true
		e.addSOA(resp, zcfg)
	}
	return resp
}

// resolveName looks up name in the store, following CNAME/ANAME chains
// through the local store only: a chain target the store does not hold
// adds no answer, and it is not forwarded upstream. It returns false if
// name is entirely unknown to the store, or if name holds a CNAME/ANAME
// the caller is not allowed to chase because recursion was not desired —
// both cases distinguish NXDOMAIN from a direct answer or NODATA. A name
// whose CNAME/ANAME is chased returns true whatever the target yields.
func (e *Engine) resolveName(resp *dns.Msg, rs *dnsrecord.RecordSet, zcfg zone.Config, name string, qtype uint16, st *state, rd bool) bool {
	if !st.visit(name) {
		// Cycle detected; stop here with whatever we've already collected.
		return true
	}

	if !rs.HasName(name) {
		// The zone apex is always "known" even with no explicit records
		// for it, so a bare query for the apex is NODATA, not NXDOMAIN.
		return name == zcfg.Origin
	}

	direct := rs.Lookup(name, qtype)
	if qtype == dns.TypeANY || len(direct) > 0 {
		for _, r := range direct {
			resp.Answer = append(resp.Answer, r.ToRR())
		}
		return true
	}

	// No direct match: check for CNAME, then ANAME (internal-only, never
	// placed on the wire — only its resolved target records are). Per
	// spec.md §4.3, a CNAME/ANAME target is only chased — or even
	// reported — when the client asked for recursion.
	if cnames := rs.Lookup(name, dns.TypeCNAME); len(cnames) > 0 {
		if !rd {
			return false
		}
		resp.Answer = append(resp.Answer, cnames[0].ToRR())
		e.resolveName(resp, rs, zcfg, cnames[0].Data.Name, qtype, st, rd)
		return true
	}
	for _, r := range rs.Lookup(name, 0) {
		if r.Data.Kind == dnsrecord.KindANAME {
			if !rd {
				return false
			}
			e.resolveName(resp, rs, zcfg, r.Data.Name, qtype, st, rd)
			return true
		}
	}

	return true
}

func (e *Engine) addSOA(resp *dns.Msg, zcfg zone.Config) {
	resp.Ns = append(resp.Ns, zcfg.SOA())
}

func (e *Engine) delegate(ctx context.Context, req *dns.Msg, resp *dns.Msg, candidates []string) *dns.Msg {
	if len(candidates) == 0 {
		resp.Rcode = dns.RcodeRefused
		return resp
	}
	upResp, err := e.upstream.Query(ctx, candidates, req)
	if err != nil {
		e.log.Warn("upstream delegation failed", "name", req.Question[0].Name, "error", err)
		resp.Rcode = dns.RcodeServerFailure
		return resp
	}
	upResp.Id = req.Id
	return upResp
}

func (e *Engine) applyEDNS0(resp *dns.Msg, reqOpt *dns.OPT) {
	payload := reqOpt.UDPSize()
	if payload < 512 {
		payload = 512
	}
	resp.SetEdns0(payload, false)
}
