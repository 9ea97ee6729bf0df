package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rentalyzer/internal/adapters/observability"
	"rentalyzer/internal/domain"
)

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Repo is the durable cache store and the query audit log.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, address string) (domain.CacheEntry, bool, error) {
	var (
		payload     []byte
		lastFetched time.Time
	)
	err := r.db.QueryRowContext(ctx, getCacheEntrySQL, address).Scan(&payload, &lastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		observability.ObserveCache("mysql", observability.CacheMiss)
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		observability.ObserveCache("mysql", observability.CacheError)
		return domain.CacheEntry{}, false, err
	}
	observability.ObserveCache("mysql", observability.CacheHit)
	return domain.CacheEntry{Address: address, Payload: payload, LastFetched: lastFetched.UTC()}, true, nil
}

func (r *Repo) Upsert(ctx context.Context, e domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, upsertCacheEntrySQL, e.Address, string(e.Payload), e.LastFetched.UTC())
	if err != nil {
		observability.ObserveCache("mysql", observability.CacheError)
		return err
	}
	observability.ObserveCache("mysql", observability.CacheSet)
	return nil
}

func (r *Repo) RecordQuery(ctx context.Context, q domain.QueryLog) error {
	_, err := r.db.ExecContext(ctx, insertQuerySQL,
		q.ID,
		q.Address,
		valInt(q.Bedrooms),
		valF64(q.Bathrooms),
		q.Accommodates,
		valStr(q.Source),
		q.Success,
		q.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) RecordQueryError(ctx context.Context, e domain.QueryError) error {
	_, err := r.db.ExecContext(ctx, insertQueryErrorSQL,
		e.QueryID,
		string(e.Kind),
		e.Message,
		valStr(e.Detail),
		e.CreatedAt.UTC(),
	)
	return err
}
