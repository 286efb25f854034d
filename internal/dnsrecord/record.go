// Package dnsrecord defines the record types shared by every source, the
// store, and the query engine. A Record is source-agnostic: it knows
// nothing about where it came from, only its owner name, type, and data.
package dnsrecord

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Fqdn canonicalizes a name the same way every lookup in this package
// expects it: lower-cased, trailing dot.
func Fqdn(name string) string {
	return dns.Fqdn(strings.ToLower(name))
}

// Kind identifies which field of RData is populated.
type Kind int

const (
	KindA Kind = iota
	KindAAAA
	KindCNAME
	KindANAME
	KindTXT
	KindPTR
)

func (k Kind) String() string {
	switch k {
	case KindA:
		return "A"
	case KindAAAA:
		return "AAAA"
	case KindCNAME:
		return "CNAME"
	case KindANAME:
		return "ANAME"
	case KindTXT:
		return "TXT"
	case KindPTR:
		return "PTR"
	default:
		return "UNKNOWN"
	}
}

// RData is a tagged union over the record kinds this server understands.
// ANAME never appears on the wire — it is resolved away by the query
// engine before a response is built.
type RData struct {
	Kind Kind
	IP   net.IP // A, AAAA
	Name string // CNAME, ANAME, PTR target (FQDN)
	Text string // TXT
}

func A(ip net.IP) RData        { return RData{Kind: KindA, IP: ip} }
func AAAA(ip net.IP) RData     { return RData{Kind: KindAAAA, IP: ip} }
func CNAME(name string) RData  { return RData{Kind: KindCNAME, Name: Fqdn(name)} }
func ANAME(name string) RData  { return RData{Kind: KindANAME, Name: Fqdn(name)} }
func TXT(text string) RData    { return RData{Kind: KindTXT, Text: text} }
func PTR(name string) RData    { return RData{Kind: KindPTR, Name: Fqdn(name)} }

// WireType returns the miekg/dns RR type this RData answers, or 0 for
// ANAME, which has no wire representation.
func (r RData) WireType() uint16 {
	switch r.Kind {
	case KindA:
		return dns.TypeA
	case KindAAAA:
		return dns.TypeAAAA
	case KindCNAME:
		return dns.TypeCNAME
	case KindTXT:
		return dns.TypeTXT
	case KindPTR:
		return dns.TypePTR
	default:
		return 0
	}
}

func (r RData) String() string {
	switch r.Kind {
	case KindA, KindAAAA:
		return r.IP.String()
	case KindCNAME, KindANAME, KindPTR:
		return r.Name
	case KindTXT:
		return r.Text
	default:
		return ""
	}
}

// Record is a single owner-name/type/data tuple with a TTL.
type Record struct {
	Name string // FQDN, canonicalized
	TTL  time.Duration
	Data RData
}

// ToRR renders a Record as a miekg/dns resource record. It panics if
// called on an ANAME record — callers must resolve those away first.
func (r Record) ToRR() dns.RR {
	hdr := dns.RR_Header{
		Name:   r.Name,
		Rrtype: r.Data.WireType(),
		Class:  dns.ClassINET,
		Ttl:    uint32(r.TTL.Seconds()),
	}
	switch r.Data.Kind {
	case KindA:
		return &dns.A{Hdr: hdr, A: r.Data.IP}
	case KindAAAA:
		return &dns.AAAA{Hdr: hdr, AAAA: r.Data.IP}
	case KindCNAME:
		return &dns.CNAME{Hdr: hdr, Target: r.Data.Name}
	case KindTXT:
		return &dns.TXT{Hdr: hdr, Txt: []string{r.Data.Text}}
	case KindPTR:
		return &dns.PTR{Hdr: hdr, Ptr: r.Data.Name}
	default:
		panic(fmt.Sprintf("dnsrecord: cannot render %s record to wire format", r.Data.Kind))
	}
}

// Equal reports whether r and other are the same record in every field
// that matters on the wire — owner name, TTL, and data — used by
// RecordSet to de-duplicate by full record equality rather than by
// owner name alone.
func (r Record) Equal(other Record) bool {
	if r.Name != other.Name || r.TTL != other.TTL || r.Data.Kind != other.Data.Kind {
		return false
	}
	switch r.Data.Kind {
	case KindA, KindAAAA:
		return r.Data.IP.Equal(other.Data.IP)
	case KindCNAME, KindANAME, KindPTR:
		return r.Data.Name == other.Data.Name
	case KindTXT:
		return r.Data.Text == other.Data.Text
	default:
		return true
	}
}

// ReverseName returns the in-addr.arpa/ip6.arpa name for ip.
func ReverseName(ip net.IP) (string, error) {
	rev, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("dnsrecord: reverse name for %s: %w", ip, err)
	}
	return rev, nil
}
