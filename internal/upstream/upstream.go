// Package upstream forwards queries this server is not authoritative for
// to a zone's configured upstream resolvers, trying each candidate in
// order until one answers.
//
// Grounded on the teacher's internal/resolver/resolver.go query() method:
// a *dns.Client with ExchangeContext under a per-candidate timeout,
// iterating a candidate list and logging-and-continuing on failure.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miekg/dns"

	"localns/internal/errs"
)

// Upstream queries a fixed, ordered list of resolver addresses.
type Upstream struct {
	client  *dns.Client
	timeout time.Duration
	cache   *Cache
	log     *slog.Logger
}

// New creates an Upstream with the given per-candidate query timeout and
// response cache capacity.
func New(timeout time.Duration, cacheSize int, log *slog.Logger) *Upstream {
	if log == nil {
		log = slog.Default()
	}
	return &Upstream{
		client:  new(dns.Client),
		timeout: timeout,
		cache:   NewCache(cacheSize),
		log:     log,
	}
}

// Query forwards req to the first of candidates that responds, checking
// the response cache first. It returns errs.ErrDNSProto-wrapped errors
// when every candidate fails.
func (u *Upstream) Query(ctx context.Context, candidates []string, req *dns.Msg) (*dns.Msg, error) {
	if len(req.Question) == 0 {
		return nil, fmt.Errorf("upstream: %w: empty question section", errs.ErrDNSProto)
	}
	q := req.Question[0]

	if cached, ok := u.cache.Get(q); ok {
		resp := cached.Copy()
		resp.Id = req.Id
		return resp, nil
	}

	var lastErr error
	for _, addr := range candidates {
		qCtx, cancel := context.WithTimeout(ctx, u.timeout)
		resp, _, err := u.client.ExchangeContext(qCtx, req, addr)
		cancel()
		if err != nil {
			u.log.Warn("upstream query failed", "addr", addr, "name", q.Name, "error", err)
			lastErr = err
			continue
		}
		u.cache.Set(q, resp)
		return resp, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no upstream candidates configured")
	}
	return nil, fmt.Errorf("upstream: %w: %v", errs.ErrDNSProto, lastErr)
}
