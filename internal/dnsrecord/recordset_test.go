package dnsrecord

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInsertDedupesByFullRecordEquality(t *testing.T) {
	rs := NewRecordSet([]Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.1"))},
		{Name: "host.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.1"))},
	})
	require.Len(t, rs.Lookup("host.example.com.", 0), 1)
}

func TestInsertKeepsDistinctRecordsForSameName(t *testing.T) {
	rs := NewRecordSet([]Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.1"))},
		{Name: "host.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.2"))},
	})
	require.Len(t, rs.Lookup("host.example.com.", 0), 2)
}

func TestReversePTRIsLastWriterWins(t *testing.T) {
	rs := NewRecordSet([]Record{
		{Name: "first.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.5"))},
		{Name: "second.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.5"))},
	})
	ptr, ok := rs.LookupPTR(net.ParseIP("10.0.0.5"))
	require.True(t, ok)
	require.Equal(t, "second.example.com.", ptr.Data.Name)
}

func TestHasNameRegistersProperAncestors(t *testing.T) {
	rs := NewRecordSet([]Record{
		{Name: "a.b.example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.1"))},
	})
	require.True(t, rs.HasName("a.b.example.com."))
	require.True(t, rs.HasName("b.example.com."))
	require.True(t, rs.HasName("example.com."))
	require.False(t, rs.HasName("com."))
	require.False(t, rs.HasName("other.com."))
}

func TestHasNameForTwoLabelNameRegistersNoAncestor(t *testing.T) {
	rs := NewRecordSet([]Record{
		{Name: "example.com.", TTL: time.Minute, Data: A(net.ParseIP("10.0.0.1"))},
	})
	require.True(t, rs.HasName("example.com."))
	require.False(t, rs.HasName("com."))
}
