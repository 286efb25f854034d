// Package api exposes the HTTP interface every localns instance serves:
// /v2/records, the JSON snapshot a Remote source on a peer instance
// polls, and /metrics, the Prometheus scrape endpoint.
//
// Grounded on the teacher's internal/dashboard/dashboard.go
// http.HandleFunc + JSON-marshal response pattern, narrowed to this
// server's own two-endpoint surface (the HTML dashboard itself is
// dropped — see DESIGN.md).
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localns/internal/dnsrecord"
	"localns/internal/store"
)

const serverVersion = "localns/2"

type wireRecord struct {
	Name  string `json:"name"`
	TTL   *int   `json:"ttl"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type wireSourceRecords struct {
	ServerID   string       `json:"server_id"`
	SourceType string       `json:"source_type"`
	SourceName string       `json:"source_name"`
	Timestamp  string       `json:"timestamp"`
	Records    []wireRecord `json:"records"`
}

type wireResponse struct {
	ServerID      string              `json:"server_id"`
	ServerVersion string              `json:"server_version"`
	SourceRecords []wireSourceRecords `json:"source_records"`
}

// Server serves the HTTP API over a RecordStore.
type Server struct {
	store    *store.RecordStore
	serverID string
	mux      *http.ServeMux
}

// New builds a Server. serverID is this instance's UUID, reported in
// every /v2/records response so peers can tell which instance answered.
func New(s *store.RecordStore, serverID string) *Server {
	srv := &Server{store: s, serverID: serverID, mux: http.NewServeMux()}
	srv.mux.HandleFunc("/v2/records", srv.handleRecords)
	srv.mux.Handle("/metrics", promhttp.Handler())
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleRecords reports this instance's own directly-configured
// sources — not records already merged in from remote peers. A peer
// re-publishing what it learned from a third peer would let the same
// records propagate indefinitely through a mesh; every instance only
// ever reports what it is itself the source of truth for.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	snapshot := s.store.Snapshot()

	resp := wireResponse{ServerID: s.serverID, ServerVersion: serverVersion}
	for id, entry := range snapshot.Local {
		sr := wireSourceRecords{
			ServerID:   id.ServerID,
			SourceType: id.SourceType,
			SourceName: id.SourceName,
			Timestamp:  entry.Timestamp().Format(time.RFC3339),
		}
		for _, rec := range entry.Records().All() {
			sr.Records = append(sr.Records, toWire(rec))
		}
		resp.SourceRecords = append(resp.SourceRecords, sr)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toWire(r dnsrecord.Record) wireRecord {
	ttl := int(r.TTL / time.Second)
	return wireRecord{
		Name:  r.Name,
		TTL:   &ttl,
		Type:  r.Data.Kind.String(),
		Value: r.Data.String(),
	}
}
