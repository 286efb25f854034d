package upstream

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Cache is a bounded, TTL-aware, in-memory LRU cache of upstream
// responses, adapted from the teacher's LRUCache (container/list + map)
// with an added per-entry expiry derived from the response's own answer
// TTLs — the teacher's variant never expired entries on its own, relying
// on eviction alone, which is wrong for a cache whose whole purpose is to
// not outlive the records it holds.
type Cache struct {
	maxSize int
	mu      sync.Mutex
	ll      *list.List
	entries map[string]*list.Element
}

type cacheEntry struct {
	key     string
	value   *dns.Msg
	expires time.Time
}

// NewCache creates a Cache holding at most maxSize entries.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Cache{
		maxSize: maxSize,
		ll:      list.New(),
		entries: make(map[string]*list.Element),
	}
}

func key(q dns.Question) string {
	return fmt.Sprintf("%s:%d:%d", q.Name, q.Qtype, q.Qclass)
}

// Get returns a cached response for q, if present and not yet expired.
func (c *Cache) Get(q dns.Question) (*dns.Msg, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(q)
	elem, hit := c.entries[k]
	if !hit {
		return nil, false
	}
	e := elem.Value.(*cacheEntry)
	if time.Now().After(e.expires) {
		c.ll.Remove(elem)
		delete(c.entries, k)
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return e.value.Copy(), true
}

// Set stores resp for its question, expiring it after the lowest TTL
// among its answer records (or one minute for answers with no records,
// i.e. NXDOMAIN/NODATA responses).
func (c *Cache) Set(q dns.Question, resp *dns.Msg) {
	ttl := minAnswerTTL(resp)

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(q)
	entry := &cacheEntry{key: k, value: resp.Copy(), expires: time.Now().Add(ttl)}
	if elem, hit := c.entries[k]; hit {
		c.ll.MoveToFront(elem)
		elem.Value = entry
		return
	}

	elem := c.ll.PushFront(entry)
	c.entries[k] = elem
	if c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

func minAnswerTTL(msg *dns.Msg) time.Duration {
	if len(msg.Answer) == 0 {
		return time.Minute
	}
	min := msg.Answer[0].Header().Ttl
	for _, rr := range msg.Answer[1:] {
		if ttl := rr.Header().Ttl; ttl < min {
			min = ttl
		}
	}
	return time.Duration(min) * time.Second
}
