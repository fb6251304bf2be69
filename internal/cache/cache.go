// Package cache stores serialized analysis reports for a short TTL so repeat
// lookups of one address skip the explorer round trips.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/liamashdown/cryptoguard/internal/address"
	"github.com/liamashdown/cryptoguard/internal/config"
	"github.com/liamashdown/cryptoguard/internal/metrics"
)

// Cache is implemented by the in-process and Redis backends
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Key builds the cache key for a report. Parse has already lowercased addr,
// so case variants share one entry.
func Key(kind, chain string, addr address.Address) string {
	return fmt.Sprintf("%s:%s:%s", kind, strings.ToLower(chain), addr.String())
}

// New picks Redis when an address is configured, memory otherwise
func New(cfg *config.Config) Cache {
	if cfg.RedisAddr != "" {
		return NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
	return NewMemory()
}

// Memory is a mutex-guarded map with per-entry expiry
type Memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry), now: time.Now}
}

// Get returns a copy of the stored value if present and not expired
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if ok && !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		ok = false
	}
	if !ok {
		metrics.RecordCacheLookup("memory", "miss")
		return nil, false, nil
	}
	metrics.RecordCacheLookup("memory", "hit")
	return append([]byte(nil), e.b...), true, nil
}

// Set stores val; a non-positive ttl keeps it until overwritten
func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
	return nil
}

// Len reports the number of stored entries, expired ones included
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
