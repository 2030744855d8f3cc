package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	identityHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boostfix_verifier_identity_cache_hits_total",
		Help: "Platform identity lookups served from cache.",
	})
	identityMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "boostfix_verifier_identity_cache_miss_total",
		Help: "Platform identity lookups that reached the platform.",
	})
)

func init() {
	prometheus.MustRegister(identityHits, identityMiss)
}

type identity struct {
	userID    string
	fetchedAt time.Time
}

// identityCache maps an access token to the platform user id it belongs to.
// Tokens are stored hashed.
type identityCache struct {
	mu    sync.RWMutex
	items map[string]identity
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time

	// bounds a shared lookup, which outlives the caller that started it
	timeout time.Duration
}

func newIdentityCache(ttl, timeout time.Duration) *identityCache {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &identityCache{
		items:   make(map[string]identity),
		ttl:     ttl,
		now:     time.Now,
		timeout: timeout,
	}
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (c *identityCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	if !ok || (c.ttl > 0 && c.now().Sub(v.fetchedAt) > c.ttl) {
		return "", false
	}
	return v.userID, true
}

func (c *identityCache) set(key, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = identity{userID: userID, fetchedAt: c.now()}
}

func (c *identityCache) invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, tokenKey(token))
}

// resolve returns the cached user id for token, or calls fetch once no matter
// how many callers are waiting on the same token.
func (c *identityCache) resolve(ctx context.Context, token string, fetch func(context.Context) (string, error)) (string, error) {
	key := tokenKey(token)
	if id, ok := c.get(key); ok {
		identityHits.Inc()
		return id, nil
	}
	identityMiss.Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		if id, ok := c.get(key); ok {
			return id, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		id, err := fetch(fctx)
		if err != nil {
			return "", err
		}
		c.set(key, id)
		return id, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrTransient, ctx.Err())
	}
}
