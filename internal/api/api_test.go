package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"localns/internal/dnsrecord"
	"localns/internal/store"
)

func TestHandleRecordsServesLocalSourcesOnly(t *testing.T) {
	s := store.New()
	serverID := "3f9a1c2e-8b4d-4c1a-9f3e-1234567890ab"
	id := store.SourceID{ServerID: serverID, SourceType: "file", SourceName: "0"}
	s.SetLocal(id, dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "host.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.1"))},
	}))
	s.SetRemote("peer-1", dnsrecord.NewRecordSet([]dnsrecord.Record{
		{Name: "other.example.com.", TTL: time.Minute, Data: dnsrecord.A(net.ParseIP("10.0.0.2"))},
	}), time.Now(), time.Now().Add(time.Hour))

	srv := New(s, serverID)
	req := httptest.NewRequest(http.MethodGet, "/v2/records", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body wireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, serverID, body.ServerID)
	require.Equal(t, serverVersion, body.ServerVersion)
	require.Len(t, body.SourceRecords, 1)

	sr := body.SourceRecords[0]
	require.Equal(t, serverID, sr.ServerID)
	require.Equal(t, "file", sr.SourceType)
	require.Equal(t, "0", sr.SourceName)
	require.Len(t, sr.Records, 1)
	require.Equal(t, "A", sr.Records[0].Type)
	require.Equal(t, "host.example.com.", sr.Records[0].Name)
	require.Equal(t, "10.0.0.1", sr.Records[0].Value)
	require.NotNil(t, sr.Records[0].TTL)
	require.Equal(t, 60, *sr.Records[0].TTL)
}

func TestHandleRecordsEmptyStoreReturnsNoSourceRecords(t *testing.T) {
	s := store.New()
	srv := New(s, "server-1")
	req := httptest.NewRequest(http.MethodGet, "/v2/records", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body wireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Empty(t, body.SourceRecords)
}
