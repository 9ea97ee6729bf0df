package app_test

import (
	"context"
	"encoding/json"
	"sync"

	"rentalyzer/internal/domain"
)

// ---- fakes ----

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
	getErr  error
	putErr  error
	gets    int
	upserts []domain.CacheEntry
}

func (f *fakeStore) Get(ctx context.Context, address string) (domain.CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := ctx.Err(); err != nil {
		return domain.CacheEntry{}, false, err
	}
	if f.getErr != nil {
		return domain.CacheEntry{}, false, f.getErr
	}
	e, ok := f.entries[address]
	return e, ok, nil
}

func (f *fakeStore) Upsert(ctx context.Context, e domain.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, e)
	if f.putErr != nil {
		return f.putErr
	}
	if f.entries == nil {
		f.entries = map[string]domain.CacheEntry{}
	}
	f.entries[e.Address] = e
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	payload json.RawMessage
	err     error
	block   bool // wait for ctx to end, like a hung upstream
	calls   []domain.PropertyQuery
}

func (f *fakeProvider) FetchProperty(ctx context.Context, q domain.PropertyQuery) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, q)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type fakeAlerts struct {
	mu  sync.Mutex
	got []domain.Alert
}

func (f *fakeAlerts) Alert(ctx context.Context, a domain.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, a)
}

func (f *fakeAlerts) kinds() []domain.AlertKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AlertKind, 0, len(f.got))
	for _, a := range f.got {
		out = append(out, a.Kind)
	}
	return out
}

type fakeQueries struct {
	mu      sync.Mutex
	queries []domain.QueryLog
	errs    []domain.QueryError
	ctxErrs []error // ctx.Err() seen by each write
	failAll error
}

func (f *fakeQueries) RecordQuery(ctx context.Context, q domain.QueryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.failAll
}

func (f *fakeQueries) RecordQueryError(ctx context.Context, e domain.QueryError) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, e)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.failAll
}

// noJitter exposes pre-jitter figures.
type noJitter struct{}

func (noJitter) Apply(v float64) float64 { return v }

// panicJitter simulates an unexpected failure inside the calculation.
type panicJitter struct{}

func (panicJitter) Apply(v float64) float64 { panic("jitter exploded") }

// ---- payload fixtures ----

const validPayload = `{
  "data": {
    "property_details": {"address": "1 Main St", "bedrooms": 3},
    "property_statistics": {
      "revenue": {"ltm": 1000},
      "cleaning_fee": {"ltm": 100},
      "occupancy": {"ltm": 0.5},
      "adr": {"ltm": 210.456}
    },
    "comps": [
      {"id": "c1", "stats": {"adr": {"ltm": 300}}},
      {"id": "c2", "stats": {"adr": {"ltm": 200}}},
      {"id": "c3", "stats": {"adr": {"ltm": 100}}},
      {"id": "c4", "stats": {"adr": {"ltm": 50}}}
    ],
    "combined_market_info": {
      "market_name": "Austin",
      "submarket_name": "Downtown",
      "market_score": 87,
      "submarket_score": 91
    }
  }
}`

const missingMarketPayload = `{
  "data": {
    "property_details": {},
    "property_statistics": {"revenue": {"ltm": 1}}
  }
}`

func ptr[T any](v T) *T { return &v }
