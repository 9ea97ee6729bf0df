package domain

import "time"

type AlertKind string

const (
	AlertCacheCheckFailed    AlertKind = "cache_check_failed"
	AlertProviderFetchFailed AlertKind = "provider_fetch_failed"
	AlertMalformedPayload    AlertKind = "malformed_payload"
	AlertCachePersistFailed  AlertKind = "cache_persist_failed"
	AlertInternalError       AlertKind = "internal_error"

	// KindRequestAborted is recorded in the query error log only; the caller
	// gave up, so nobody is paged.
	KindRequestAborted AlertKind = "request_aborted"
)

type Alert struct {
	Kind    AlertKind
	Message string
	Err     error
	QueryID string // optional
	Address string
	Stack   string // only for internal errors
	At      time.Time
}
