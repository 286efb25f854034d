// Package server implements DnsServer: the UDP+TCP listener pair that
// hands every incoming query to a query.Engine and can rebind to a new
// address without dropping in-flight work.
//
// Grounded on main.go's dual dns.Server{PacketConn:...}/
// dns.Server{Listener:...} bind pattern driven by a sync.WaitGroup,
// generalized to support rebinding the way
// original_source/src/dns/mod.rs's DnsServer::restart drains in-flight
// work (there via block_until_done) before rebuilding the listeners.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Engine is the subset of query.Engine the server depends on.
type Engine interface {
	Execute(ctx context.Context, req *dns.Msg) *dns.Msg
}

// OnAnswered is called after every query is answered, with the rcode and
// handling latency, for metrics recording.
type OnAnswered func(q dns.Question, rcode int, d time.Duration)

// DnsServer binds UDP and TCP listeners on the address passed to Start
// and answers every query via Engine.
type DnsServer struct {
	engine Engine
	log    *slog.Logger
	onDone OnAnswered

	mu  sync.Mutex
	udp *dns.Server
	tcp *dns.Server
	wg  sync.WaitGroup
}

// New creates a DnsServer that is not yet bound to any address.
func New(engine Engine, onDone OnAnswered, log *slog.Logger) *DnsServer {
	if log == nil {
		log = slog.Default()
	}
	return &DnsServer{
		engine: engine,
		onDone: onDone,
		log:    log,
	}
}

// Start binds addr and serves until ctx is canceled.
func (s *DnsServer) Start(ctx context.Context, addr string) error {
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		s.handle(w, req)
	})

	packetConn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		packetConn.Close()
		return err
	}

	s.mu.Lock()
	s.udp = &dns.Server{PacketConn: packetConn, Handler: handler, UDPSize: 65535}
	s.tcp = &dns.Server{Listener: listener, Handler: handler}
	s.mu.Unlock()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.udp.ActivateAndServe(); err != nil {
			s.log.Warn("udp server stopped", "error", err)
		}
	}()
	go func() {
		defer s.wg.Done()
		if err := s.tcp.ActivateAndServe(); err != nil {
			s.log.Warn("tcp server stopped", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop closes both listeners and waits for in-flight handlers to finish.
func (s *DnsServer) Stop() {
	s.mu.Lock()
	if s.udp != nil {
		s.udp.Shutdown()
	}
	if s.tcp != nil {
		s.tcp.Shutdown()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Close stops the listeners.
func (s *DnsServer) Close() {
	s.Stop()
}

// Rebind stops the current listeners, if any, and binds addr in their
// place — draining in-flight work first so no query is dropped mid-reply.
func (s *DnsServer) Rebind(ctx context.Context, addr string) error {
	s.Stop()
	return s.Start(ctx, addr)
}

func (s *DnsServer) handle(w dns.ResponseWriter, req *dns.Msg) {
	start := time.Now()
	resp := s.engine.Execute(context.Background(), req)
	if err := w.WriteMsg(resp); err != nil {
		s.log.Warn("failed to write response", "error", err)
	}
	if s.onDone != nil && len(req.Question) > 0 {
		s.onDone(req.Question[0], resp.Rcode, time.Since(start))
	}
}
