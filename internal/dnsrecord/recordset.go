package dnsrecord

import (
	"net"

	"github.com/miekg/dns"
)

// RecordSet is an immutable, source-agnostic collection of records plus
// their derived reverse (PTR) and known-name indexes. It is built once by
// a source and never mutated afterward — the store replaces the whole
// value rather than editing it in place, mirroring the longest-suffix
// zone indexing idiom this package's records are designed to be merged
// into.
type RecordSet struct {
	forward map[string][]Record // owner name -> records
	reverse map[string]Record   // ip.String() -> synthesized PTR record
	names   map[string]struct{} // every owner name this set has an opinion about
}

// NewRecordSet builds a RecordSet from a flat slice of records, deriving
// the reverse (PTR) index from any A/AAAA record automatically.
func NewRecordSet(records []Record) *RecordSet {
	rs := &RecordSet{
		forward: make(map[string][]Record),
		reverse: make(map[string]Record),
		names:   make(map[string]struct{}),
	}
	for _, r := range records {
		rs.insert(r)
	}
	return rs
}

func (rs *RecordSet) insert(r Record) {
	for _, existing := range rs.forward[r.Name] {
		if existing.Equal(r) {
			return
		}
	}
	rs.forward[r.Name] = append(rs.forward[r.Name], r)
	rs.addNames(r.Name)

	switch r.Data.Kind {
	case KindA, KindAAAA:
		// Last writer wins: a later source's record for the same IP
		// replaces whatever PTR an earlier one synthesized.
		key := r.Data.IP.String()
		ptrName, err := ReverseName(r.Data.IP)
		if err == nil {
			rs.reverse[key] = Record{Name: ptrName, TTL: r.TTL, Data: PTR(r.Name)}
		}
	}
}

// addNames registers name and every proper ancestor of name with at
// least two labels, so HasName can distinguish "zone apex or delegated
// name with no direct records" from a name entirely outside the set.
func (rs *RecordSet) addNames(name string) {
	rs.names[name] = struct{}{}
	labels := dns.SplitDomainName(name)
	for i := 1; i < len(labels)-1; i++ {
		ancestor := Fqdn(joinLabels(labels[i:]))
		rs.names[ancestor] = struct{}{}
	}
}

func joinLabels(labels []string) string {
	out := labels[0]
	for _, l := range labels[1:] {
		out += "." + l
	}
	return out
}

// Lookup returns every record for name matching qtype. qtype of 0
// returns every record regardless of type; dns.TypeANY matches no
// record. Only the forward index is read: synthesized reverse (PTR)
// records are not returned here and are reached only through LookupPTR,
// by IP address.
func (rs *RecordSet) Lookup(name string, qtype uint16) []Record {
	if qtype == 0 {
		return append([]Record(nil), rs.forward[name]...)
	}

	var out []Record
	for _, r := range rs.forward[name] {
		if r.Data.WireType() == qtype || (qtype == 0) {
			out = append(out, r)
		}
	}
	return out
}

// LookupPTR resolves ip to its synthesized reverse record, if any source
// has ever registered an A/AAAA record for it.
func (rs *RecordSet) LookupPTR(ip net.IP) (Record, bool) {
	r, ok := rs.reverse[ip.String()]
	return r, ok
}

// HasName reports whether this set has any opinion at all about name,
// used by the query engine to distinguish NXDOMAIN from NODATA.
func (rs *RecordSet) HasName(name string) bool {
	_, ok := rs.names[name]
	return ok
}

// All returns every record in the forward index; synthesized reverse
// (PTR) records are not included.
func (rs *RecordSet) All() []Record {
	out := make([]Record, 0, len(rs.forward))
	for _, recs := range rs.forward {
		out = append(out, recs...)
	}
	return out
}

// Merge builds the union of sets: every distinct record of every set is
// kept, including records for an owner name present in several sets.
// Only the synthesized reverse (PTR) index is last-writer-wins, so a
// later set's record for an IP replaces an earlier set's PTR. Used by
// the store to rebuild its merged view from every source's set.
func Merge(sets ...*RecordSet) *RecordSet {
	var all []Record
	for _, s := range sets {
		if s == nil {
			continue
		}
		all = append(all, s.All()...)
	}
	return NewRecordSet(all)
}
