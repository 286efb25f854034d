package zone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ttlPtr(d time.Duration) *time.Duration { return &d }
func boolPtr(b bool) *bool                  { return &b }

func TestMatchPrefersMostSpecific(t *testing.T) {
	z := New(Defaults{}, []Entry{
		{Origin: "example.com.", TTL: ttlPtr(time.Minute)},
		{Origin: "internal.example.com.", TTL: ttlPtr(2 * time.Minute)},
	})

	c := z.Match("host.internal.example.com.")
	require.Equal(t, "internal.example.com.", c.Origin)
	require.Equal(t, 2*time.Minute, c.TTL)

	c = z.Match("host.example.com.")
	require.Equal(t, "example.com.", c.Origin)
	require.Equal(t, time.Minute, c.TTL)

	c = z.Match("host.other.org.")
	require.Equal(t, "", c.Origin)
}

func TestMatchOverlaysAncestorUpstreamWhenChildOnlySetsTTL(t *testing.T) {
	z := New(Defaults{}, []Entry{
		{Origin: "example.com.", Upstream: "10.0.0.53:53"},
		{Origin: "internal.example.com.", TTL: ttlPtr(time.Minute)},
	})

	c := z.Match("host.internal.example.com.")
	require.Equal(t, "internal.example.com.", c.Origin)
	require.Equal(t, []string{"10.0.0.53:53"}, c.Upstreams)
}

func TestMatchPrependsMostSpecificUpstream(t *testing.T) {
	z := New(Defaults{}, []Entry{
		{Origin: "example.com.", Upstream: "10.0.0.1:53"},
		{Origin: "internal.example.com.", Upstream: "10.0.0.2:53"},
	})

	c := z.Match("host.internal.example.com.")
	require.Equal(t, []string{"10.0.0.2:53", "10.0.0.1:53"}, c.Upstreams)
}

func TestMatchDefaultsToNonAuthoritativeWithoutAnyZone(t *testing.T) {
	z := New(Defaults{Upstream: "1.1.1.1:53"}, nil)
	c := z.Match("nowhere.local.")
	require.Equal(t, "", c.Origin)
	require.False(t, c.Authoritative)
	require.Equal(t, []string{"1.1.1.1:53"}, c.Upstreams)
}

func TestMatchAuthoritativeDefaultsTrueOnceAZoneMatches(t *testing.T) {
	z := New(Defaults{}, []Entry{{Origin: "example.com."}})
	c := z.Match("example.com.")
	require.True(t, c.Authoritative)
}

func TestMatchAuthoritativeExplicitFalseOverrides(t *testing.T) {
	z := New(Defaults{}, []Entry{{Origin: "example.com.", Authoritative: boolPtr(false)}})
	c := z.Match("example.com.")
	require.False(t, c.Authoritative)
}

func TestSOASynthesisIsStable(t *testing.T) {
	z := New(Defaults{}, []Entry{{Origin: "example.com.", TTL: ttlPtr(time.Minute)}})
	c := z.Match("example.com.")
	soa := c.SOA()
	require.Equal(t, "example.com.", soa.Header().Name)
}
