// Package zone implements authoritative zone configuration: which names
// this server is authoritative for, their upstream delegation (if any),
// and synthesized SOA records. Grounded on the longest-suffix zone
// matching and SOA generation in the teacher's authoritative plugin,
// generalized from a single flat zone map to an ascending-specificity
// overlay fold the way original_source/src/config/mod.rs's zone_config
// folds the defaults baseline with every ancestor zone entry.
package zone

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"

	"localns/internal/dnsrecord"
)

// Config is the resolved zone configuration for a particular query name:
// the result of overlaying defaults with every configured zone whose
// origin is an ancestor of (or equal to) the name.
type Config struct {
	// Origin is the most specific configured zone's apex, e.g.
	// "example.com." (always FQDN). Empty means no configured zone
	// matched at all — only defaults apply.
	Origin string
	// Upstreams are the resolver addresses ("host:port") queries outside
	// this zone's known names are forwarded to, most-specific zone first.
	Upstreams []string
	// TTL is used for synthesized SOA/NS records.
	TTL time.Duration
	// Authoritative reports whether this server should answer
	// authoritatively (with SOA in Authority on NXDOMAIN/NODATA) for
	// names under Origin. Only meaningful when Origin != "".
	Authoritative bool
}

// Entry is one configured zone override. Fields left nil inherit from
// whatever the overlay fold has accumulated from less-specific zones.
type Entry struct {
	Origin        string
	Upstream      string // single upstream address; "" means none configured here
	TTL           *time.Duration
	Authoritative *bool
}

// Defaults is the baseline applied to every name before any zone-specific
// override, matching spec's top-level defaults{upstream?,ttl?} block. It
// is never itself authoritative.
type Defaults struct {
	Upstream string
	TTL      time.Duration
}

// Zones resolves a query name by folding Defaults with every configured
// Entry whose origin is an ancestor of (or equal to) the name, in
// ascending zone-specificity order.
type Zones struct {
	defaults Defaults
	entries  []Entry // sorted ascending by origin length (least specific first)
}

// New builds a Zones index from defaults and a list of zone entries.
func New(defaults Defaults, entries []Entry) *Zones {
	z := &Zones{defaults: defaults}
	z.entries = make([]Entry, len(entries))
	for i, e := range entries {
		e.Origin = dnsrecord.Fqdn(e.Origin)
		z.entries[i] = e
	}
	sort.SliceStable(z.entries, func(i, j int) bool {
		return len(z.entries[i].Origin) < len(z.entries[j].Origin)
	})
	return z
}

// Match folds defaults with every entry whose origin is an ancestor of
// name (or name itself), most-specific last so its own upstream ends up
// tried first. Returns a Config even when no entry matches — Origin is
// then "" and only defaults apply.
func (z *Zones) Match(name string) Config {
	name = dnsrecord.Fqdn(name)

	cfg := Config{TTL: z.defaults.TTL, Authoritative: false}
	if z.defaults.Upstream != "" {
		cfg.Upstreams = []string{z.defaults.Upstream}
	}

	for _, e := range z.entries {
		if !isAncestorOrSelf(e.Origin, name) {
			continue
		}
		cfg.Origin = e.Origin
		if e.Upstream != "" {
			// Most-specific zone's upstream is tried first.
			cfg.Upstreams = append([]string{e.Upstream}, cfg.Upstreams...)
		}
		if e.TTL != nil {
			cfg.TTL = *e.TTL
		}
		if e.Authoritative != nil {
			cfg.Authoritative = *e.Authoritative
		} else {
			cfg.Authoritative = true
		}
	}
	return cfg
}

func isAncestorOrSelf(origin, name string) bool {
	if origin == "" {
		return false
	}
	return name == origin || strings.HasSuffix(name, "."+origin)
}

// SOA synthesizes an SOA record for the zone per spec: ns.<origin> as
// MNAME, hostmaster.<origin> as RNAME, serial 0, refresh/retry = ttl,
// expire = 10*ttl, minimum 60.
func (c Config) SOA() dns.RR {
	ttl := int(c.TTL.Seconds())
	soaStr := fmt.Sprintf(
		"%s %d IN SOA ns.%s hostmaster.%s 0 %d %d %d 60",
		c.Origin, ttl, c.Origin, c.Origin, ttl, ttl, 10*ttl,
	)
	rr, err := dns.NewRR(soaStr)
	if err != nil {
		// c.Origin is always a validated FQDN by the time SOA is called;
		// this format cannot fail for a well-formed origin.
		panic(fmt.Sprintf("zone: failed to synthesize SOA for %s: %v", c.Origin, err))
	}
	return rr
}

// NS synthesizes the single authority NS record matching the SOA's MNAME.
func (c Config) NS() dns.RR {
	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN NS ns.%s", c.Origin, int(c.TTL.Seconds()), c.Origin))
	if err != nil {
		panic(fmt.Sprintf("zone: failed to synthesize NS for %s: %v", c.Origin, err))
	}
	return rr
}
