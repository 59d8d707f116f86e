package context

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/hrygo/homesense/plugin/ai/cache"
	"github.com/hrygo/homesense/plugin/ai/memory"
	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// BuildFunc produces a fresh payload on a cache miss.
type BuildFunc func(ctx context.Context) (*Payload, error)

// ResponseCache keeps the last payload per session key.
// Expiry is decided at read time against the caller's ttl.
type ResponseCache struct {
	backend         cache.CacheService
	log             *memory.ResponseLog
	suggestionLimit int
	group           singleflight.Group
	now             func() time.Time
}

// cacheEnvelope stores a payload together with its capture time so both are
// read back in one Get.
type cacheEnvelope struct {
	CapturedAt time.Time       `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewResponseCache creates a response cache over a byte cache backend.
// log may be nil.
func NewResponseCache(backend cache.CacheService, log *memory.ResponseLog, suggestionLimit int) *ResponseCache {
	if suggestionLimit <= 0 {
		suggestionLimit = 3
	}
	return &ResponseCache{
		backend:         backend,
		log:             log,
		suggestionLimit: suggestionLimit,
		now:             time.Now,
	}
}

func (c *ResponseCache) withClock(now func() time.Time) *ResponseCache {
	c.now = now
	return c
}

// GetOrBuild returns the cached payload for the session when it is not older
// than ttl, else builds, stores and returns a fresh one. Incognito sessions
// neither read nor write the cache.
func (c *ResponseCache) GetOrBuild(ctx context.Context, sessionKey string, ttl time.Duration, incognito bool, build BuildFunc) (*Payload, error) {
	payload, _, err := c.getOrBuild(ctx, sessionKey, ttl, incognito, build)
	return payload, err
}

func (c *ResponseCache) getOrBuild(ctx context.Context, sessionKey string, ttl time.Duration, incognito bool, build BuildFunc) (*Payload, bool, error) {
	if incognito {
		payload, err := build(ctx)
		return payload, false, err
	}

	key := cache.Key("context", sessionKey)
	if cached, ok := c.lookup(ctx, key, ttl); ok {
		cached.RecentSuggestions = c.suggestions(sessionKey)
		return cached, true, nil
	}

	// The build is shared by every waiter on the key, so one caller going
	// away must not fail the others.
	ch := c.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout.BuildTimeout)
		defer cancel()
		payload, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		c.store(buildCtx, key, payload, ttl)
		return payload, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, errors.Wrap(ctx.Err(), "context build abandoned")
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Payload).clone(), false, nil
	}
}

// lookup decodes a live entry. Expired entries are left for the backend to evict.
func (c *ResponseCache) lookup(ctx context.Context, key string, ttl time.Duration) (*Payload, bool) {
	data, ok := c.backend.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("failed to decode cached context", "key", key, "error", err)
		return nil, false
	}
	if c.now().Sub(env.CapturedAt) > ttl {
		return nil, false
	}

	payload := &Payload{}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		slog.Warn("failed to decode cached payload", "key", key, "error", err)
		return nil, false
	}
	return payload, true
}

func (c *ResponseCache) store(ctx context.Context, key string, payload *Payload, ttl time.Duration) {
	data, err := encodeEnvelope(c.now(), payload)
	if err != nil {
		slog.Warn("failed to encode context for cache", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("failed to cache context", "key", key, "error", err)
	}
}

func encodeEnvelope(capturedAt time.Time, payload *Payload) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal payload")
	}
	data, err := json.Marshal(cacheEnvelope{CapturedAt: capturedAt, Payload: raw})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal cache envelope")
	}
	return data, nil
}

func (c *ResponseCache) suggestions(sessionKey string) []string {
	if c.log == nil {
		return nil
	}
	return c.log.Recent(sessionKey, c.suggestionLimit)
}
