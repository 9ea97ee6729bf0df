package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rentalyzer/internal/domain"
)

// DefaultFreshness is how long a stored provider response is reused.
const DefaultFreshness = 30 * 24 * time.Hour

type Source string

const (
	SourceCache              Source = "cache"
	SourceAPI                Source = "api"
	SourceAPIDueToCacheError Source = "api_due_to_cache_error"
)

type Resolution struct {
	Payload   json.RawMessage
	Source    Source
	FetchedAt time.Time
}

// CacheReconciler decides between a stored provider response and a fresh fetch.
// Reads are cache-first; writes are best-effort.
type CacheReconciler struct {
	store     domain.CacheStore
	provider  domain.ProviderClient
	alerts    domain.AlertSink
	freshness time.Duration
	now       func() time.Time
}

func NewCacheReconciler(store domain.CacheStore, provider domain.ProviderClient, alerts domain.AlertSink, freshness time.Duration) *CacheReconciler {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &CacheReconciler{store: store, provider: provider, alerts: alerts, freshness: freshness, now: time.Now}
}

// WithClock swaps the time source (tests).
func (r *CacheReconciler) WithClock(now func() time.Time) *CacheReconciler {
	r.now = now
	return r
}

// NormalizeAddress is the cache key for an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (r *CacheReconciler) Resolve(ctx context.Context, q domain.PropertyQuery) (Resolution, error) {
	key := NormalizeAddress(q.Address)
	source := SourceAPI

	// 1) CheckCache
	entry, found, err := r.store.Get(ctx, key)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Debug().Err(err).Str("address", key).Msg("request ended during cache lookup")
		return Resolution{}, fmt.Errorf("resolve %q: %w", key, ctx.Err())
	case err != nil:
		log.Warn().Err(err).Str("address", key).Msg("cache lookup failed; fetching from provider")
		r.alert(ctx, domain.AlertCacheCheckFailed, key, "cache lookup failed", err)
		source = SourceAPIDueToCacheError
	case found && r.isFresh(entry):
		log.Debug().Str("address", key).Time("last_fetched", entry.LastFetched).Msg("cache hit")
		return Resolution{Payload: entry.Payload, Source: SourceCache, FetchedAt: entry.LastFetched}, nil
	case found:
		log.Debug().Str("address", key).Time("last_fetched", entry.LastFetched).Msg("cache entry stale")
	}

	// 2) FetchFresh (no retry)
	payload, err := r.provider.FetchProperty(ctx, q)
	if err != nil && ctx.Err() != nil {
		log.Debug().Err(err).Str("address", key).Msg("request ended during provider fetch")
		return Resolution{Source: source}, fmt.Errorf("fetch %q: %w", key, ctx.Err())
	}
	if err != nil {
		log.Error().Err(err).Str("address", key).Str("source", string(source)).Msg("provider fetch failed")
		r.alert(ctx, domain.AlertProviderFetchFailed, key, "provider fetch failed", err)
		return Resolution{Source: source}, fmt.Errorf("fetch %q: %w: %w", key, domain.ErrProviderUnavailable, err)
	}

	// 3) Validate before anything is persisted
	if _, err := validatePayload(payload); err != nil {
		log.Error().Err(err).Str("address", key).Msg("provider payload rejected")
		r.alert(ctx, domain.AlertMalformedPayload, key, "provider returned an unexpected payload", err)
		return Resolution{Source: source}, err
	}

	// 4) Persist; failure never fails the request
	fetchedAt := r.now().UTC()
	if err := r.store.Upsert(ctx, domain.CacheEntry{Address: key, Payload: payload, LastFetched: fetchedAt}); err != nil {
		log.Warn().Err(err).Str("address", key).Msg("cache persist failed; serving fresh payload")
		r.alert(ctx, domain.AlertCachePersistFailed, key, "cache persist failed", err)
	}

	return Resolution{Payload: payload, Source: source, FetchedAt: fetchedAt}, nil
}

func (r *CacheReconciler) isFresh(e domain.CacheEntry) bool {
	return r.now().Sub(e.LastFetched) < r.freshness
}

func (r *CacheReconciler) alert(ctx context.Context, kind domain.AlertKind, address, msg string, err error) {
	if r.alerts == nil {
		return
	}
	r.alerts.Alert(ctx, domain.Alert{
		Kind:    kind,
		Message: msg,
		Err:     err,
		QueryID: QueryIDFrom(ctx),
		Address: address,
		At:      r.now().UTC(),
	})
}
