package query

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"localns/internal/dnsrecord"
	"localns/internal/store"
	"localns/internal/zone"
)

type fakeUpstream struct {
	resp *dns.Msg
	err  error
}

func (f *fakeUpstream) Query(ctx context.Context, candidates []string, req *dns.Msg) (*dns.Msg, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.resp.Copy()
	r.Id = req.Id
	return r, nil
}

var fileSourceID = store.SourceID{ServerID: "self", SourceType: "file", SourceName: "0"}

// newRequest builds a recursion-desired query, matching what any ordinary
// stub client sends; tests that care about RD=0 set it explicitly.
func newRequest(name string, qtype uint16) *dns.Msg {
	req := new(dns.Msg)
	req.SetQuestion(name, qtype)
	req.RecursionDesired = true
	return req
}

func TestExecuteAnswersFromStore(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "example.com."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("host.example.com.", dns.TypeA))
	require.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	require.True(t, resp.Authoritative)
}

func TestExecuteNodataWhenNameKnownButTypeMissing(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "example.com."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("host.example.com.", dns.TypeAAAA))
	require.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Empty(t, resp.Answer)
	require.NotEmpty(t, resp.Ns)
}

func TestExecuteNxdomainWhenNameUnknown(t *testing.T) {
	s := store.New()
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "example.com."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("missing.example.com.", dns.TypeA))
	require.Equal(t, dns.RcodeNameError, resp.Rcode)
	require.NotEmpty(t, resp.Ns)
}

func TestExecuteFollowsCnameChain(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "alias.example.com.", TTL: time.Minute, Data: dnsrecord.CNAME("host.example.com.")},
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "example.com."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("alias.example.com.", dns.TypeA))
	require.Len(t, resp.Answer, 2)
}

func TestExecuteDetectsCnameCycle(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "a.example.com.", TTL: time.Minute, Data: dnsrecord.CNAME("b.example.com.")},
		{Name: "b.example.com.", TTL: time.Minute, Data: dnsrecord.CNAME("a.example.com.")},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "example.com."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("a.example.com.", dns.TypeA))
	require.Len(t, resp.Answer, 2)
}

func TestExecuteDelegatesOutsideZones(t *testing.T) {
	s := store.New()
	z := zone.New(zone.Defaults{Upstream: "1.1.1.1:53"}, []zone.Entry{{Origin: "example.com."}})

	upResp := new(dns.Msg)
	rr, _ := dns.NewRR("other.org. 60 IN A 9.9.9.9")
	upResp.Answer = append(upResp.Answer, rr)
	e := New(s, z, &fakeUpstream{resp: upResp}, nil)

	resp := e.Execute(context.Background(), newRequest("other.org.", dns.TypeA))
	require.Len(t, resp.Answer, 1)
	require.False(t, resp.Authoritative)
}

// TestExecuteWithoutRecursionWithholdsCnameAnswer exercises spec.md's
// recursion-desired gate: the same query that returns the CNAME with
// RD=1 must return NXDOMAIN with no answers at all when RD=0, since an
// unchaseable CNAME is not a usable answer for a client that refused
// recursion.
func TestExecuteWithoutRecursionWithholdsCnameAnswer(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "test.home.local.", TTL: time.Minute, Data: dnsrecord.CNAME("other.home.local.")},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "home.local."}})
	e := New(s, z, &fakeUpstream{}, nil)

	req := newRequest("test.home.local.", dns.TypeA)
	req.RecursionDesired = false

	resp := e.Execute(context.Background(), req)
	require.Equal(t, dns.RcodeNameError, resp.Rcode)
	require.Empty(t, resp.Answer)
}

func TestExecuteWithRecursionReturnsCnameAnswerWithNoTarget(t *testing.T) {
	s := store.New()
	s.SetLocal(fileSourceID, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "test.home.local.", TTL: time.Minute, Data: dnsrecord.CNAME("other.home.local.")},
	}))
	z := zone.New(zone.Defaults{}, []zone.Entry{{Origin: "home.local."}})
	e := New(s, z, &fakeUpstream{}, nil)

	resp := e.Execute(context.Background(), newRequest("test.home.local.", dns.TypeA))
	require.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
}

func TestExecuteWithoutRecursionAndNoUpstreamIsNxdomain(t *testing.T) {
	s := store.New()
	z := zone.New(zone.Defaults{}, nil)
	e := New(s, z, &fakeUpstream{}, nil)

	req := newRequest("anywhere.example.", dns.TypeA)
	req.RecursionDesired = false

	resp := e.Execute(context.Background(), req)
	require.Equal(t, dns.RcodeNameError, resp.Rcode)
	require.Empty(t, resp.Answer)
}
