// Package file implements the File source: a YAML document mapping
// owner names to record data, republished whenever the file changes on
// disk.
//
// Grounded on original_source/src/sources/file.rs and
// original_source/src/watcher.rs for the watch semantics (create/modify/
// rename-in produce a fresh snapshot, remove/rename-out produce an empty
// one), reimplemented with fsnotify + a debounce timer instead of Rust's
// notify crate + custom Debounced stream combinator.
package file

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"localns/internal/dnsrecord"
	"localns/internal/errs"
	"localns/internal/store"
)

// Config is one configured File source.
type Config struct {
	Path string
	TTL  time.Duration
}

// recordYAML is the on-disk shape: owner name -> list of "TYPE value"
// strings, e.g. "host.example.com.": ["A 10.0.0.1", "TXT hello"].
type recordYAML map[string][]string

// Source watches Path for changes and republishes its parsed contents.
type Source struct {
	id  store.SourceID
	cfg Config
}

// New creates a File source identified by id.
func New(id store.SourceID, cfg Config) *Source {
	return &Source{id: id, cfg: cfg}
}

func (s *Source) ID() store.SourceID  { return s.id }
func (s *Source) Config() interface{} { return s.cfg }

// Run loads Path immediately, then watches it for changes via fsnotify,
// debouncing bursts of filesystem events into a single reload.
func (s *Source) Run(ctx context.Context, pub func(*dnsrecord.RecordSet)) {
	pub(s.load())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer watcher.Close()

	// Watch the parent directory so the file being created or renamed
	// into place is observed, not only changes to an existing file.
	if err := watcher.Add(filepath.Dir(s.cfg.Path)); err != nil {
		return
	}

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.cfg.Path) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(200 * time.Millisecond)
			} else {
				debounce.Reset(200 * time.Millisecond)
			}
			debounceC = debounce.C
		case <-debounceC:
			pub(s.load())
			debounceC = nil
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (s *Source) load() *dnsrecord.RecordSet {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dnsrecord.NewRecordSet(nil)
		}
		return dnsrecord.NewRecordSet(nil)
	}

	var parsed recordYAML
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return dnsrecord.NewRecordSet(nil)
	}

	var records []dnsrecord.Record
	for name, values := range parsed {
		name = dnsrecord.Fqdn(name)
		for _, v := range values {
			rec, err := parseRecordLine(name, v, s.cfg.TTL)
			if err != nil {
				continue
			}
			records = append(records, rec)
		}
	}
	return dnsrecord.NewRecordSet(records)
}

func parseRecordLine(name, line string, ttl time.Duration) (dnsrecord.Record, error) {
	var kind, value string
	if _, err := fmt.Sscanf(line, "%s", &kind); err != nil {
		return dnsrecord.Record{}, fmt.Errorf("file: %w: %q", errs.ErrFileType, line)
	}
	value = line[len(kind):]
	for len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}

	switch kind {
	case "A", "AAAA":
		ip := net.ParseIP(value)
		if ip == nil {
			return dnsrecord.Record{}, fmt.Errorf("file: %w: invalid ip %q", errs.ErrFileType, value)
		}
		if kind == "A" {
			return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.A(ip)}, nil
		}
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.AAAA(ip)}, nil
	case "CNAME":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.CNAME(value)}, nil
	case "ANAME":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.ANAME(value)}, nil
	case "TXT":
		return dnsrecord.Record{Name: name, TTL: ttl, Data: dnsrecord.TXT(value)}, nil
	default:
		return dnsrecord.Record{}, fmt.Errorf("file: %w: unknown record kind %q", errs.ErrFileType, kind)
	}
}
