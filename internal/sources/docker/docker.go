// Package docker implements the Docker source: containers advertise
// hostnames via the localns.hostname/localns.network/localns.exposed
// labels, discovered from the running container list and kept in sync by
// watching the Docker events stream.
//
// Grounded on original_source/src/sources/docker.rs (the label contract
// and the connect/list/watch-events sequence, there implemented over
// bollard) reimplemented over github.com/docker/docker/client, the Go
// SDK the corpus's Docker-adjacent examples point at.
package docker

import (
	"context"
	"net"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	dockerclient "github.com/docker/docker/client"

	"localns/internal/dnsrecord"
	"localns/internal/runloop"
	"localns/internal/store"
)

const (
	labelHostname = "localns.hostname"
	labelNetwork  = "localns.network"
	labelExposed  = "localns.exposed"
)

// Config is one configured Docker source.
type Config struct {
	Host string // e.g. "unix:///var/run/docker.sock", empty for the SDK default
	TTL  time.Duration
}

// Source watches a Docker daemon's container list.
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
	loop := runloop.New(runloop.DefaultConfig(time.Second))
	loop.Run(ctx, func(ctx context.Context) runloop.Result {
		opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
		if s.cfg.Host != "" {
			opts = append(opts, dockerclient.WithHost(s.cfg.Host))
		}
		cli, err := dockerclient.NewClientWithOpts(opts...)
		if err != nil {
			pub(dnsrecord.NewRecordSet(nil))
			return runloop.Backoff
		}
		defer cli.Close()

		if rs, err := s.snapshot(ctx, cli); err == nil {
			pub(rs)
		} else {
			pub(dnsrecord.NewRecordSet(nil))
			return runloop.Backoff
		}

		evCh, errCh := cli.Events(ctx, types.EventsOptions{
			Filters: filters.NewArgs(filters.Arg("type", string(events.ContainerEventType))),
		})
		for {
			select {
			case <-ctx.Done():
				return runloop.Quit
			case <-evCh:
				rs, err := s.snapshot(ctx, cli)
				if err != nil {
					pub(dnsrecord.NewRecordSet(nil))
					return runloop.Backoff
				}
				pub(rs)
			case err := <-errCh:
				if err != nil {
					pub(dnsrecord.NewRecordSet(nil))
					return runloop.Backoff
				}
			}
		}
	})
}

func (s *Source) snapshot(ctx context.Context, cli *dockerclient.Client) (*dnsrecord.RecordSet, error) {
	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		return nil, err
	}

	var records []dnsrecord.Record
	for _, c := range containers {
		hostname, ok := c.Labels[labelHostname]
		if !ok {
			continue
		}
		if exposed, ok := c.Labels[labelExposed]; ok && exposed == "false" {
			continue
		}
		wantNetwork := c.Labels[labelNetwork]

		name := dnsrecord.Fqdn(hostname)
		for netName, net := range c.NetworkSettings.Networks {
			if wantNetwork != "" && netName != wantNetwork {
				continue
			}
			if ip := parseIP(net.IPAddress); ip != nil {
				records = append(records, dnsrecord.Record{Name: name, TTL: s.cfg.TTL, Data: dnsrecord.A(ip)})
			}
		}
	}
	return dnsrecord.NewRecordSet(records), nil
}

func parseIP(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}
