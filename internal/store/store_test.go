package store

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"localns/internal/dnsrecord"
)

func sid(name string) SourceID {
	return SourceID{ServerID: "self", SourceType: "file", SourceName: name}
}

func TestSetLocalMergesAndPublishes(t *testing.T) {
	s := New()
	sub, stop := s.Subscribe()
	defer stop()

	rs := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	})
	s.SetLocal(sid("file"), rs)

	select {
	case d := <-sub:
		require.True(t, d.Merged.HasName("host.example.com."))
	case <-time.After(time.Second):
		t.Fatal("expected a publish after SetLocal")
	}

	require.True(t, s.Snapshot().Merged.HasName("host.example.com."))
}

func TestSetLocalNilRemovesSource(t *testing.T) {
	s := New()
	rs := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	})
	s.SetLocal(sid("file"), rs)
	require.True(t, s.Snapshot().Merged.HasName("host.example.com."))

	s.SetLocal(sid("file"), nil)
	require.False(t, s.Snapshot().Merged.HasName("host.example.com."))
}

func TestLocalAndRemoteRecordsAreBothKept(t *testing.T) {
	s := New()
	local := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.9"))},
	})
	remote := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	})
	now := time.Now()
	s.SetRemote("peer-1", remote, now, now.Add(time.Hour))
	s.SetLocal(sid("file"), local)

	recs := s.Snapshot().Merged.Lookup("host.example.com.", 0)
	require.Len(t, recs, 2)
}

func TestSetRemoteIgnoresOlderTimestamp(t *testing.T) {
	s := New()
	now := time.Now()
	first := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "peer.example.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("1.2.3.4"))},
	})
	stale := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "peer.example.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("9.9.9.9"))},
	})

	s.SetRemote("peer-1", first, now, now.Add(time.Hour))
	s.SetRemote("peer-1", stale, now.Add(-time.Minute), now.Add(2*time.Hour))

	recs := s.Snapshot().Merged.Lookup("peer.example.", 0)
	require.Len(t, recs, 1)
	require.Equal(t, "1.2.3.4", recs[0].Data.IP.String())
}

func TestSetRemoteEqualTimestampExtendsExpiryOnly(t *testing.T) {
	s := New()
	now := time.Now()
	rs := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "peer.example.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("1.2.3.4"))},
	})
	other := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "peer.example.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("5.6.7.8"))},
	})

	s.SetRemote("peer-1", rs, now, now.Add(50*time.Millisecond))
	s.SetRemote("peer-1", other, now, now.Add(time.Hour))

	recs := s.Snapshot().Merged.Lookup("peer.example.", 0)
	require.Len(t, recs, 1)
	require.Equal(t, "1.2.3.4", recs[0].Data.IP.String())
}

func TestSetRemoteExpiredEntryDropsFromSnapshot(t *testing.T) {
	s := New()
	now := time.Now()
	rs := dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "peer.example.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("1.2.3.4"))},
	})
	s.SetRemote("peer-1", rs, now.Add(-time.Hour), now.Add(-time.Minute))

	require.False(t, s.Snapshot().Merged.HasName("peer.example."))
}
