package analysis

import (
	"sort"
	"strings"

	"github.com/siriwat/flight-season-api/pkg/apperr"
)

// airportAliases maps textual locations (city names, Thai names, codes) to
// airport code sets. Multi-airport cities expand to sets; the list is a
// policy choice seeded with Bangkok and extensible via AddAlias.
var airportAliases = map[string][]string{
	"bangkok":     {"BKK", "DMK"},
	"กรุงเทพ":     {"BKK", "DMK"},
	"กรุงเทพฯ":    {"BKK", "DMK"},
	"phuket":      {"HKT"},
	"ภูเก็ต":      {"HKT"},
	"chiang mai":  {"CNX"},
	"เชียงใหม่":   {"CNX"},
	"chiang rai":  {"CEI"},
	"krabi":       {"KBV"},
	"กระบี่":      {"KBV"},
	"surat thani": {"URT"},
	"koh samui":   {"USM"},
	"samui":       {"USM"},
	"hat yai":     {"HDY"},
	"หาดใหญ่":     {"HDY"},
	"udon thani":  {"UTH"},
	"ubon":        {"UBP"},
	"nakhon si thammarat": {"NST"},
}

// knownAirports is the set of airport codes the engine recognizes directly.
var knownAirports = map[string]bool{
	"BKK": true, "DMK": true, "HKT": true, "CNX": true, "CEI": true,
	"KBV": true, "URT": true, "USM": true, "HDY": true, "UTH": true,
	"UBP": true, "NST": true,
}

// airportProvince maps destination airport codes to the province used for
// weather lookups. Airports with no mapping get a neutral weather score.
var airportProvince = map[string]string{
	"BKK": "Bangkok",
	"DMK": "Bangkok",
	"HKT": "Phuket",
	"CNX": "Chiang Mai",
	"CEI": "Chiang Rai",
	"KBV": "Krabi",
	"URT": "Surat Thani",
	"USM": "Surat Thani",
	"HDY": "Songkhla",
	"UTH": "Udon Thani",
	"UBP": "Ubon Ratchathani",
	"NST": "Nakhon Si Thammarat",
}

// ResolveLocation converts a textual location into one or more airport
// codes. Lookup is deterministic: exact code match first, then the alias
// table. Unresolved locations fail fast with an input error.
func ResolveLocation(location string) ([]string, error) {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return nil, apperr.Input("empty location")
	}

	upper := strings.ToUpper(trimmed)
	if len(upper) == 3 && knownAirports[upper] {
		return []string{upper}, nil
	}

	if codes, ok := airportAliases[strings.ToLower(trimmed)]; ok {
		out := make([]string, len(codes))
		copy(out, codes)
		return out, nil
	}

	return nil, apperr.Input("unresolved location %q", location)
}

// ProvinceForAirport returns the weather province for a destination airport
// code, or false when no mapping exists.
func ProvinceForAirport(code string) (string, bool) {
	p, ok := airportProvince[strings.ToUpper(code)]
	return p, ok
}

// Airport is one entry of the supported-airport catalog.
type Airport struct {
	Code     string `json:"code"`
	Province string `json:"province,omitempty"`
}

// Airports lists the supported airport codes with their weather provinces,
// sorted by code.
func Airports() []Airport {
	out := make([]Airport, 0, len(knownAirports))
	for code := range knownAirports {
		out = append(out, Airport{Code: code, Province: airportProvince[code]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// AddAlias registers an additional location alias at startup. Not safe for
// concurrent use with ResolveLocation.
func AddAlias(name string, codes []string) {
	airportAliases[strings.ToLower(strings.TrimSpace(name))] = codes
	for _, c := range codes {
		knownAirports[strings.ToUpper(c)] = true
	}
}
