package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"localns/internal/store"
)

func TestToRecordParsesA(t *testing.T) {
	ttl := 60
	rec, ok := toRecord(wireRecord{Name: "host.example.com.", Type: "A", TTL: &ttl, Value: "10.0.0.1"}, 300*time.Second)
	require.True(t, ok)
	require.Equal(t, "host.example.com.", rec.Name)
	require.Equal(t, 60*time.Second, rec.TTL)
}

func TestToRecordFallsBackToDefaultTTLWhenNull(t *testing.T) {
	rec, ok := toRecord(wireRecord{Name: "host.example.com.", Type: "A", Value: "10.0.0.1"}, 300*time.Second)
	require.True(t, ok)
	require.Equal(t, 300*time.Second, rec.TTL)
}

func TestToRecordRejectsUnknownType(t *testing.T) {
	ttl := 60
	_, ok := toRecord(wireRecord{Name: "host.example.com.", Type: "MX", TTL: &ttl, Value: "mail.example.com."}, time.Minute)
	require.False(t, ok)
}

func TestExpiryIsDerivedNotTrusted(t *testing.T) {
	s := &Source{cfg: Config{Poll: 30 * time.Second}}
	require.Equal(t, 60*time.Second, s.expiry())
}

func TestRemoteIDIsDerivedFromSourceID(t *testing.T) {
	id := store.SourceID{ServerID: "self", SourceType: "remote", SourceName: "peer-1"}
	s := &Source{id: id}
	require.Equal(t, id.String(), string(s.RemoteID()))
}
