package redisad

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"rentalyzer/internal/adapters/observability"
	"rentalyzer/internal/domain"
)

const keyPrefix = "analysis:payload:"

// Cache is a hot tier in front of the durable store. Redis trouble is logged and
// bypassed; the durable store stays authoritative.
type Cache struct {
	c         *redis.Client
	next      domain.CacheStore
	freshness time.Duration
	maxTTL    time.Duration
	now       func() time.Time
}

type entry struct {
	Payload     json.RawMessage `json:"payload"`
	LastFetched time.Time       `json:"last_fetched"`
}

func NewClient(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

// New wraps next. Entries live for the remaining freshness window, capped at maxTTL (0 = no cap).
func New(c *redis.Client, next domain.CacheStore, freshness, maxTTL time.Duration) *Cache {
	return &Cache{c: c, next: next, freshness: freshness, maxTTL: maxTTL, now: time.Now}
}

func (r *Cache) Get(ctx context.Context, address string) (domain.CacheEntry, bool, error) {
	v, err := r.c.Get(ctx, keyPrefix+address).Bytes()
	switch {
	case err == nil:
		var e entry
		if uerr := json.Unmarshal(v, &e); uerr == nil {
			observability.ObserveCache("redis", observability.CacheHit)
			return domain.CacheEntry{Address: address, Payload: e.Payload, LastFetched: e.LastFetched}, true, nil
		}
		log.Warn().Str("address", address).Msg("undecodable redis entry; falling through")
	case err == redis.Nil:
		observability.ObserveCache("redis", observability.CacheMiss)
	default:
		observability.ObserveCache("redis", observability.CacheError)
		log.Warn().Err(err).Str("address", address).Msg("redis get failed; falling through")
	}

	e, found, err := r.next.Get(ctx, address)
	if err != nil || !found {
		return e, found, err
	}
	r.set(ctx, e)
	return e, true, nil
}

func (r *Cache) Upsert(ctx context.Context, e domain.CacheEntry) error {
	if err := r.next.Upsert(ctx, e); err != nil {
		return err
	}
	r.set(ctx, e)
	return nil
}

func (r *Cache) set(ctx context.Context, e domain.CacheEntry) {
	ttl := r.freshness - r.now().Sub(e.LastFetched)
	if r.maxTTL > 0 && ttl > r.maxTTL {
		ttl = r.maxTTL
	}
	if ttl <= 0 {
		return // stale; let the reconciler decide
	}
	b, err := json.Marshal(entry{Payload: e.Payload, LastFetched: e.LastFetched})
	if err != nil {
		log.Warn().Err(err).Str("address", e.Address).Msg("marshal redis entry failed")
		return
	}
	if err := r.c.Set(ctx, keyPrefix+e.Address, b, ttl).Err(); err != nil {
		observability.ObserveCache("redis", observability.CacheError)
		log.Warn().Err(err).Str("address", e.Address).Msg("redis set failed")
		return
	}
	observability.ObserveCache("redis", observability.CacheSet)
}
