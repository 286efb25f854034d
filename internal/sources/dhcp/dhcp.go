// Package dhcp implements the Dhcp source: a dnsmasq-format lease file
// polled on an interval, republishing an A (or, for an IPv6 lease, AAAA)
// record per active lease.
//
// Grounded on original_source/src/sources/dhcp.rs for the lease-file
// format and expiry semantics; the fixed five-column dnsmasq lease
// format (expiry mac ip hostname client-id) is parsed with the standard
// library rather than a dependency — see DESIGN.md for why no pack
// library covers this format.
package dhcp

import (
	"bufio"
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"localns/internal/dnsrecord"
	"localns/internal/runloop"
	"localns/internal/store"
)

// Config is one configured Dhcp source.
type Config struct {
	LeaseFile string
	Domain    string // suffix appended to bare hostnames, e.g. "lan."
	TTL       time.Duration
	Poll      time.Duration
}

// Source polls LeaseFile for changes on Poll's cadence.
type Source struct {
	id  store.SourceID
	cfg Config
}

func New(id store.SourceID, cfg Config) *Source {
	return &Source{id: id, cfg: cfg}
}

func (s *Source) ID() store.SourceID  { return s.id }
func (s *Source) Config() interface{} { return s.cfg }

func (s *Source) Run(ctx context.Context, pub func(*dnsrecord.RecordSet)) {
	loop := runloop.New(runloop.DefaultConfig(s.cfg.Poll))
	loop.Run(ctx, func(ctx context.Context) runloop.Result {
		rs, err := s.load()
		if err != nil {
			pub(dnsrecord.NewRecordSet(nil))
			return runloop.Backoff
		}
		pub(rs)
		return runloop.Sleep
	})
}

func (s *Source) load() (*dnsrecord.RecordSet, error) {
	f, err := os.Open(s.cfg.LeaseFile)
	if err != nil {
		if os.IsNotExist(err) {
			return dnsrecord.NewRecordSet(nil), nil
		}
		return nil, err
	}
	defer f.Close()

	now := time.Now().Unix()
	var records []dnsrecord.Record

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		expiry, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || expiry != 0 && expiry < now {
			continue
		}
		ip := net.ParseIP(fields[2])
		hostname := fields[3]
		if ip == nil || hostname == "" || hostname == "*" {
			continue
		}

		name := hostname
		if s.cfg.Domain != "" {
			name = hostname + "." + strings.TrimSuffix(s.cfg.Domain, ".")
		}
		name = dnsrecord.Fqdn(name)

		if ip4 := ip.To4(); ip4 != nil {
			records = append(records, dnsrecord.Record{Name: name, TTL: s.cfg.TTL, Data: dnsrecord.A(ip4)})
		} else {
			records = append(records, dnsrecord.Record{Name: name, TTL: s.cfg.TTL, Data: dnsrecord.AAAA(ip)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dnsrecord.NewRecordSet(records), nil
}
