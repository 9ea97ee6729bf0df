package app

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"rentalyzer/internal/domain"
)

/********** alias registries **********/

var marketAliases = map[string][]string{
	"market_name":     {"market_name", "market.name", "name"},
	"submarket_name":  {"submarket_name", "submarket.name"},
	"market_score":    {"market_score", "market.score", "score"},
	"submarket_score": {"submarket_score", "submarket.score"},
}

// requiredDataKeys must be present (non-null) under the top-level "data" object.
var requiredDataKeys = []string{"property_details", "property_statistics", "combined_market_info"}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return &s
		}
	}
	return nil
}

// firstPresentAlias returns the first non-null value for an alias set, untouched.
func firstPresentAlias(m map[string]any, aliases map[string][]string, key string) any {
	for _, p := range aliases[key] {
		if v := lookupAny(m, p); v != nil {
			return v
		}
	}
	return nil
}

// getFloatFlexible: number from several paths (float64/int/numeric string).
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case string:
			if f, ok := parseNumeric(v); ok {
				return &f
			}
		}
	}
	return nil
}

var (
	thousandsRe    = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	decimalCommaRe = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
)

// parseNumeric accepts "52400", "$52,400", "1,234.56" and decimal-comma values
// like "8,5". Anything else with a comma is ambiguous and rejected.
func parseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	if s == "" {
		return 0, false
	}
	switch {
	case !strings.Contains(s, ","):
	case thousandsRe.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case decimalCommaRe.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// floatOrZero never returns NaN or Inf.
func floatOrZero(m map[string]any, paths ...string) float64 {
	f := getFloatFlexible(m, paths...)
	if f == nil {
		return 0
	}
	return finite(*f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

/********** payload shape **********/

// validatePayload decodes a raw provider response and returns its "data" object
// once every structural key is known to be present.
func validatePayload(raw json.RawMessage) (map[string]any, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrMalformedPayload, err)
	}
	data, ok := root["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing data object", domain.ErrMalformedPayload)
	}
	var missing []string
	for _, k := range requiredDataKeys {
		if data[k] == nil {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedPayload, strings.Join(missing, ", "))
	}
	return data, nil
}

/********** extraction **********/

func extractStatistics(data map[string]any) domain.MarketStatistics {
	return domain.MarketStatistics{
		RevenueLTM:     floatOrZero(data, "property_statistics.revenue.ltm"),
		CleaningFeeLTM: floatOrZero(data, "property_statistics.cleaning_fee.ltm"),
		OccupancyLTM:   floatOrZero(data, "property_statistics.occupancy.ltm"),
	}
}

// extractComps keeps every comp, including ones without a usable ADR; filtering
// belongs to the calculator.
func extractComps(data map[string]any) []domain.ComparableProperty {
	raw, _ := data["comps"].([]any)
	out := make([]domain.ComparableProperty, 0, len(raw))
	for _, it := range raw {
		c, ok := it.(map[string]any)
		if !ok {
			continue
		}
		cp := domain.ComparableProperty{ADRLTM: floatOrZero(c, "stats.adr.ltm")}
		switch id := c["id"].(type) {
		case string:
			cp.ID = id
		case float64:
			cp.ID = strconv.FormatFloat(id, 'f', -1, 64)
		}
		out = append(out, cp)
	}
	return out
}

func buildAnalysisData(data map[string]any, stats domain.MarketStatistics, rev domain.ProjectedRevenue) *domain.AnalysisData {
	market, _ := data["combined_market_info"].(map[string]any)

	comps := data["comps"]
	if comps == nil {
		comps = []any{}
	}

	return &domain.AnalysisData{
		PropertyDetails:         data["property_details"],
		PropertyStatistics:      data["property_statistics"],
		Comps:                   comps,
		MarketName:              firstNonEmptyAlias(market, marketAliases, "market_name"),
		SubmarketName:           firstNonEmptyAlias(market, marketAliases, "submarket_name"),
		MarketScore:             firstPresentAlias(market, marketAliases, "market_score"),
		SubmarketScore:          firstPresentAlias(market, marketAliases, "submarket_score"),
		ARD:                     formatADR(getFloatFlexible(data, "property_statistics.adr.ltm")),
		Occupancy:               formatOccupancy(stats.OccupancyLTM),
		ProjectedRevenueTypical: roundCents(rev.Typical),
		ProjectedRevenueTop25:   roundCents(rev.Top25),
		ProjectedRevenueTop10:   roundCents(rev.Top10),
	}
}

func formatADR(adr *float64) string {
	if adr == nil || finite(*adr) <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *adr)
}

func formatOccupancy(occ float64) string {
	return fmt.Sprintf("%.0f%%", finite(occ)*100)
}

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }
