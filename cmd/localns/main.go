// Command localns runs the DNS server: it loads configuration, starts
// every configured record source, and answers queries by combining
// their records with recursive upstream resolution.
//
// Grounded on main.go's flag parsing / dual UDP+TCP bind / WaitGroup
// shutdown shape, generalized to supervise the source fleet and HTTP
// API alongside the DNS listeners via golang.org/x/sync/errgroup, the
// way original_source/src/lib.rs's run() drives its server, api, and
// source-reconciliation futures together with tokio::select!.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"localns/internal/config"
	"localns/internal/query"
	"localns/internal/server"
	"localns/internal/sources"
	"localns/internal/sources/dhcp"
	"localns/internal/sources/docker"
	"localns/internal/sources/file"
	"localns/internal/sources/remote"
	"localns/internal/sources/traefik"
	"localns/internal/store"
	"localns/internal/upstream"
	"localns/internal/zone"

	"localns/internal/api"
	"localns/internal/metrics"

	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (defaults to LOCALNS_CONFIG or ./config.yaml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = flag.Arg(0)
	}
	cfg, err := config.Load(config.ResolveConfigPath(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "localns: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	writePIDFile(cfg.PIDFile, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	recordStore := store.New()
	serverID := uuid.New().String()
	zones := zone.New(zoneDefaults(cfg), zoneEntries(cfg))

	up := upstream.New(cfg.UpstreamTimeout, cfg.CacheSize, log)
	engine := query.New(recordStore, zones, up, log)

	dnsServer := server.New(engine, metrics.RecordQuery, log)
	defer dnsServer.Close()

	apiServer := api.New(recordStore, serverID)
	httpServer := &http.Server{Addr: cfg.APIAddr, Handler: apiServer}

	supervisor := sources.New(recordStore, log)
	defer supervisor.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dnsServer.Start(gctx, cfg.ListenAddr)
	})

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			return httpServer.Shutdown(context.Background())
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}
	})

	g.Go(func() error {
		metrics.StartHostSampler(gctx, 15*time.Second)
		return nil
	})

	g.Go(func() error {
		supervisor.Reconcile(gctx, buildSources(cfg, serverID, recordStore))
		<-gctx.Done()
		return nil
	})

	log.Info("localns started", "listen_addr", cfg.ListenAddr, "api_addr", cfg.APIAddr, "server_id", serverID)
	return g.Wait()
}

func buildSources(cfg *config.Config, serverID string, recordStore *store.RecordStore) []sources.Source {
	built := make([]sources.Source, 0, len(cfg.Sources))
	for i, sc := range cfg.Sources {
		id := store.SourceID{
			ServerID:   serverID,
			SourceType: string(sc.Kind),
			SourceName: strconv.Itoa(i),
		}
		switch sc.Kind {
		case config.KindFile:
			built = append(built, file.New(id, file.Config{Path: sc.Path, TTL: sc.TTL}))
		case config.KindDhcp:
			built = append(built, dhcp.New(id, dhcp.Config{
				LeaseFile: sc.LeaseFile,
				Domain:    sc.Domain,
				TTL:       sc.TTL,
				Poll:      orDefault(sc.Poll, 30*time.Second),
			}))
		case config.KindDocker:
			built = append(built, docker.New(id, docker.Config{Host: sc.Host, TTL: sc.TTL}))
		case config.KindTraefik:
			built = append(built, traefik.New(id, traefik.Config{
				BaseURL: sc.BaseURL,
				Target:  sc.Target,
				TTL:     sc.TTL,
				Poll:    orDefault(sc.Poll, 30*time.Second),
			}))
		case config.KindRemote:
			built = append(built, remote.New(id, remote.Config{
				BaseURL: sc.BaseURL,
				Poll:    orDefault(sc.Poll, 30*time.Second),
			}, recordStore))
		}
	}
	return built
}

// zoneDefaults builds the baseline every name starts from before the
// query engine's overlay fold walks any matching zone entry.
func zoneDefaults(cfg *config.Config) zone.Defaults {
	return zone.Defaults{Upstream: cfg.Defaults.Upstream, TTL: cfg.Defaults.TTL}
}

// zoneEntries converts the zones map, keyed by origin, into the ordered
// entry list zone.New sorts by ascending specificity.
func zoneEntries(cfg *config.Config) []zone.Entry {
	out := make([]zone.Entry, 0, len(cfg.Zones))
	for origin, z := range cfg.Zones {
		out = append(out, zone.Entry{
			Origin:        origin,
			Upstream:      z.Upstream,
			TTL:           z.TTL,
			Authoritative: z.Authoritative,
		})
	}
	return out
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// writePIDFile writes the current process ID to path, warning rather
// than failing the whole process if it cannot be written.
func writePIDFile(path string, log *slog.Logger) {
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		log.Warn("failed to write PID file", "path", path, "error", err)
	}
}
