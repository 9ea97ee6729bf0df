package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"rentalyzer/internal/app"
	"rentalyzer/internal/domain"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newReconciler(store *fakeStore, prov *fakeProvider, alerts *fakeAlerts) *app.CacheReconciler {
	return app.NewCacheReconciler(store, prov, alerts, 0).WithClock(func() time.Time { return now })
}

func TestNormalizeAddress(t *testing.T) {
	if got := app.NormalizeAddress("  1  Main   St,\tAustin TX "); got != "1 main st, austin tx" {
		t.Fatalf("got %q", got)
	}
}

func TestResolve_CacheHitSkipsProvider(t *testing.T) {
	store := &fakeStore{entries: map[string]domain.CacheEntry{
		"1 main st": {Address: "1 main st", Payload: json.RawMessage(validPayload), LastFetched: now.Add(-29 * 24 * time.Hour)},
	}}
	prov := &fakeProvider{err: errors.New("must not be called")}
	alerts := &fakeAlerts{}

	res, err := newReconciler(store, prov, alerts).Resolve(context.Background(), domain.PropertyQuery{Address: " 1 Main St "})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Source != app.SourceCache || string(res.Payload) != validPayload {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if len(prov.calls) != 0 {
		t.Fatalf("cache hit issued %d provider calls", len(prov.calls))
	}
	if len(store.upserts) != 0 || len(alerts.got) != 0 {
		t.Fatalf("cache hit must not write or alert")
	}
}

func TestResolve_StaleEntryRefetches(t *testing.T) {
	store := &fakeStore{entries: map[string]domain.CacheEntry{
		"1 main st": {Address: "1 main st", Payload: json.RawMessage(`{"old":true}`), LastFetched: now.Add(-30 * 24 * time.Hour)},
	}}
	prov := &fakeProvider{payload: json.RawMessage(validPayload)}

	res, err := newReconciler(store, prov, &fakeAlerts{}).Resolve(context.Background(), domain.PropertyQuery{Address: "1 Main St"})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Source != app.SourceAPI || len(prov.calls) != 1 {
		t.Fatalf("expected a fresh fetch, got %+v calls=%d", res, len(prov.calls))
	}
	e := store.entries["1 main st"]
	if string(e.Payload) != validPayload || !e.LastFetched.Equal(now) {
		t.Fatalf("stale entry not overwritten: %+v", e)
	}
}

func TestResolve_MissFetchesAndPersists(t *testing.T) {
	store := &fakeStore{}
	prov := &fakeProvider{payload: json.RawMessage(validPayload)}
	q := domain.PropertyQuery{Address: "9 Elm Rd", Bedrooms: ptr(2), Accommodates: ptr(4)}

	res, err := newReconciler(store, prov, &fakeAlerts{}).Resolve(context.Background(), q)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if res.Source != app.SourceAPI || !res.FetchedAt.Equal(now) {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if len(prov.calls) != 1 || prov.calls[0].Address != "9 Elm Rd" || *prov.calls[0].Accommodates != 4 {
		t.Fatalf("provider got %+v", prov.calls)
	}
	if len(store.upserts) != 1 || store.upserts[0].Address != "9 elm rd" {
		t.Fatalf("expected one upsert keyed by normalized address, got %+v", store.upserts)
	}
}

func TestResolve_CacheErrorFallsThroughToProvider(t *testing.T) {
	store := &fakeStore{getErr: errors.New("connection refused")}
	prov := &fakeProvider{payload: json.RawMessage(validPayload)}
	alerts := &fakeAlerts{}

	ctx := app.WithQueryID(context.Background(), "q-42")
	res, err := newReconciler(store, prov, alerts).Resolve(ctx, domain.PropertyQuery{Address: "1 Main St"})
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if res.Source != app.SourceAPIDueToCacheError {
		t.Fatalf("source = %s", res.Source)
	}
	if k := alerts.kinds(); len(k) != 1 || k[0] != domain.AlertCacheCheckFailed {
		t.Fatalf("alerts = %v", k)
	}
	if alerts.got[0].QueryID != "q-42" {
		t.Fatalf("alert should carry the query id, got %q", alerts.got[0].QueryID)
	}
}

func TestResolve_PersistFailureStillSucceeds(t *testing.T) {
	store := &fakeStore{putErr: errors.New("disk full")}
	prov := &fakeProvider{payload: json.RawMessage(validPayload)}
	alerts := &fakeAlerts{}

	res, err := newReconciler(store, prov, alerts).Resolve(context.Background(), domain.PropertyQuery{Address: "1 Main St"})
	if err != nil {
		t.Fatalf("persist failure must not fail the request: %v", err)
	}
	if string(res.Payload) != validPayload || res.Source != app.SourceAPI {
		t.Fatalf("unexpected resolution: %+v", res)
	}
	if k := alerts.kinds(); len(k) != 1 || k[0] != domain.AlertCachePersistFailed {
		t.Fatalf("alerts = %v", k)
	}
}

func TestResolve_ProviderFailureIsTerminal(t *testing.T) {
	store := &fakeStore{}
	prov := &fakeProvider{err: errors.New("remote 503")}
	alerts := &fakeAlerts{}

	_, err := newReconciler(store, prov, alerts).Resolve(context.Background(), domain.PropertyQuery{Address: "1 Main St"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if len(prov.calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(prov.calls))
	}
	if len(store.upserts) != 0 {
		t.Fatalf("nothing should be persisted")
	}
	if k := alerts.kinds(); len(k) != 1 || k[0] != domain.AlertProviderFetchFailed {
		t.Fatalf("alerts = %v", k)
	}
}

func TestResolve_ProviderTimeoutIsProviderUnavailable(t *testing.T) {
	prov := &fakeProvider{err: context.DeadlineExceeded}
	_, err := newReconciler(&fakeStore{}, prov, &fakeAlerts{}).Resolve(context.Background(), domain.PropertyQuery{Address: "x"})
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
}

func TestResolve_MalformedFreshPayloadNotPersisted(t *testing.T) {
	for name, body := range map[string]string{
		"missing market info": missingMarketPayload,
		"no data":             `{"error":"quota"}`,
		"not json":            `<html>`,
		"null details":        `{"data":{"property_details":null,"property_statistics":{},"combined_market_info":{}}}`,
	} {
		store := &fakeStore{}
		alerts := &fakeAlerts{}
		prov := &fakeProvider{payload: json.RawMessage(body)}

		_, err := newReconciler(store, prov, alerts).Resolve(context.Background(), domain.PropertyQuery{Address: "x"})
		if !errors.Is(err, domain.ErrMalformedPayload) {
			t.Fatalf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
		if len(store.upserts) != 0 {
			t.Fatalf("%s: malformed payload persisted", name)
		}
		if k := alerts.kinds(); len(k) != 1 || k[0] != domain.AlertMalformedPayload {
			t.Fatalf("%s: alerts = %v", name, k)
		}
	}
}

func TestResolve_CacheErrorThenProviderFailure(t *testing.T) {
	store := &fakeStore{getErr: errors.New("db down")}
	prov := &fakeProvider{err: errors.New("remote 500")}
	alerts := &fakeAlerts{}

	res, err := newReconciler(store, prov, alerts).Resolve(context.Background(), domain.PropertyQuery{Address: "x"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("got %v", err)
	}
	if res.Source != app.SourceAPIDueToCacheError {
		t.Fatalf("source = %s", res.Source)
	}
	k := alerts.kinds()
	if len(k) != 2 || k[0] != domain.AlertCacheCheckFailed || k[1] != domain.AlertProviderFetchFailed {
		t.Fatalf("alerts = %v", k)
	}
}

func TestResolve_NilAlertSinkIsTolerated(t *testing.T) {
	rec := app.NewCacheReconciler(&fakeStore{getErr: errors.New("down")}, &fakeProvider{payload: json.RawMessage(validPayload)}, nil, time.Hour)
	if _, err := rec.Resolve(context.Background(), domain.PropertyQuery{Address: "x"}); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestResolve_CancelledRequestSkipsAlertAndFetch(t *testing.T) {
	store := &fakeStore{}
	prov := &fakeProvider{payload: json.RawMessage(validPayload)}
	alerts := &fakeAlerts{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReconciler(store, prov, alerts).Resolve(ctx, domain.PropertyQuery{Address: "1 Main St"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("a cancelled caller is not a provider outage: %v", err)
	}
	if store.gets != 1 || len(prov.calls) != 0 || len(store.upserts) != 0 {
		t.Fatalf("gets=%d provider calls=%d upserts=%d", store.gets, len(prov.calls), len(store.upserts))
	}
	if len(alerts.got) != 0 {
		t.Fatalf("cancelled request must not alert, got %v", alerts.kinds())
	}
}

func TestResolve_CallerDeadlineDuringFetchIsNotAlerted(t *testing.T) {
	prov := &fakeProvider{block: true}
	alerts := &fakeAlerts{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newReconciler(&fakeStore{}, prov, alerts).Resolve(ctx, domain.PropertyQuery{Address: "1 Main St"})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("expected the caller's deadline, got %v", err)
	}
	if len(prov.calls) != 1 || len(alerts.got) != 0 {
		t.Fatalf("calls=%d alerts=%v", len(prov.calls), alerts.kinds())
	}
}

func TestResolve_ProviderNotFoundKeepsCause(t *testing.T) {
	prov := &fakeProvider{err: fmt.Errorf("status 404: %w", domain.ErrNotFound)}
	_, err := newReconciler(&fakeStore{}, prov, &fakeAlerts{}).Resolve(context.Background(), domain.PropertyQuery{Address: "nowhere"})
	if !errors.Is(err, domain.ErrProviderUnavailable) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v", err)
	}
}
