package domain

import (
	"encoding/json"
	"time"
)

// MarketStatistics are the provider's last-twelve-months aggregates for a property.
type MarketStatistics struct {
	RevenueLTM     float64
	CleaningFeeLTM float64
	OccupancyLTM   float64 // fraction in [0,1]
}

type ComparableProperty struct {
	ID     string
	ADRLTM float64 // <= 0 when the provider has no rate
}

type ProjectedRevenue struct {
	Typical float64
	Top25   float64
	Top10   float64
}

// CacheEntry is the stored raw provider response for one normalized address.
type CacheEntry struct {
	Address     string
	Payload     json.RawMessage
	LastFetched time.Time
}

// PropertyQuery is what the provider is asked for.
type PropertyQuery struct {
	Address      string
	Bedrooms     *int
	Bathrooms    *float64
	Accommodates *int
}
