package app

import (
	"sort"

	"github.com/rs/zerolog/log"

	"rentalyzer/internal/domain"
)

const daysPerYear = 365

// RevenueCalculator turns market statistics and comps into three projections.
type RevenueCalculator struct {
	jitter Jitterer
}

func NewRevenueCalculator(j Jitterer) *RevenueCalculator {
	if j == nil {
		j = NewRandomJitter(DefaultJitterSpread)
	}
	return &RevenueCalculator{jitter: j}
}

func (c *RevenueCalculator) Calculate(stats domain.MarketStatistics, comps []domain.ComparableProperty) domain.ProjectedRevenue {
	p := projectRevenues(stats, comps)
	return domain.ProjectedRevenue{
		Typical: c.jitter.Apply(p.Typical),
		Top25:   c.jitter.Apply(p.Top25),
		Top10:   c.jitter.Apply(p.Top10),
	}
}

// projectRevenues is the pre-jitter computation.
func projectRevenues(stats domain.MarketStatistics, comps []domain.ComparableProperty) domain.ProjectedRevenue {
	revenue := finite(stats.RevenueLTM)
	cleaning := finite(stats.CleaningFeeLTM)
	occupancy := finite(stats.OccupancyLTM)

	out := domain.ProjectedRevenue{Typical: revenue + cleaning}

	adrs := make([]float64, 0, len(comps))
	for _, c := range comps {
		if a := finite(c.ADRLTM); a > 0 {
			adrs = append(adrs, a)
		}
	}
	if len(adrs) == 0 || occupancy <= 0 {
		log.Warn().
			Int("comps", len(comps)).
			Int("comps_with_adr", len(adrs)).
			Float64("occupancy_ltm", occupancy).
			Msg("top-tier projections unavailable; reporting 0")
		return out
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(adrs)))
	n := len(adrs)
	out.Top25 = meanOf(adrs[:tierSize(n, 25)])*occupancy*daysPerYear + cleaning
	out.Top10 = meanOf(adrs[:tierSize(n, 10)])*occupancy*daysPerYear + cleaning
	return out
}

// tierSize is ceil(n*pct/100) clamped to [1, n]; integer math keeps 30*10% at 3.
func tierSize(n, pct int) int {
	k := (n*pct + 99) / 100
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
