package domain

import (
	"context"
	"encoding/json"
)

type CacheStore interface {
	Get(ctx context.Context, address string) (CacheEntry, bool, error)
	Upsert(ctx context.Context, e CacheEntry) error
}

type ProviderClient interface {
	FetchProperty(ctx context.Context, q PropertyQuery) (json.RawMessage, error)
}

// AlertSink must not block the caller; delivery failures are the sink's problem.
type AlertSink interface {
	Alert(ctx context.Context, a Alert)
}

type QueryRecorder interface {
	RecordQuery(ctx context.Context, q QueryLog) error
	RecordQueryError(ctx context.Context, e QueryError) error
}
