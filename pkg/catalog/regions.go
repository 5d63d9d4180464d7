package catalog

import (
	"strconv"
	"strings"
)

// Granularity selects the grouping level for aggregation.
type Granularity string

const (
	// GranularityState groups by the 27 federative-unit codes
	GranularityState Granularity = "state"
	// GranularityRegion groups by the 5 macro-region codes
	GranularityRegion Granularity = "region"
)

// ibgeToSigla maps the IBGE numeric state code to the two-letter state
// abbreviation used in all published tables.
var ibgeToSigla = map[int]string{
	11: "RO", 12: "AC", 13: "AM", 14: "RR", 15: "PA", 16: "AP", 17: "TO",
	21: "MA", 22: "PI", 23: "CE", 24: "RN", 25: "PB", 26: "PE", 27: "AL", 28: "SE", 29: "BA",
	31: "MG", 32: "ES", 33: "RJ", 35: "SP", 41: "PR", 42: "SC", 43: "RS",
	50: "MS", 51: "MT", 52: "GO", 53: "DF",
}

// ufToRegion maps the state abbreviation to its macro region.
var ufToRegion = map[string]string{
	"RO": "Norte", "AC": "Norte", "AM": "Norte", "RR": "Norte", "PA": "Norte", "AP": "Norte", "TO": "Norte",
	"MA": "Nordeste", "PI": "Nordeste", "CE": "Nordeste", "RN": "Nordeste", "PB": "Nordeste",
	"PE": "Nordeste", "AL": "Nordeste", "SE": "Nordeste", "BA": "Nordeste",
	"MG": "Sudeste", "ES": "Sudeste", "RJ": "Sudeste", "SP": "Sudeste",
	"PR": "Sul", "SC": "Sul", "RS": "Sul",
	"MS": "Centro-Oeste", "MT": "Centro-Oeste", "GO": "Centro-Oeste", "DF": "Centro-Oeste",
}

// Regions is a lookup of group keys valid for each granularity. It is
// constructed once at package init and must be treated as read-only.
type Regions struct {
	ibgeToSigla map[int]string
	ufToRegion  map[string]string
	regionSet   map[string]bool
}

// NewRegions builds the canonical lookup tables.
func NewRegions() *Regions {
	regionSet := make(map[string]bool)
	for _, r := range ufToRegion {
		regionSet[r] = true
	}
	return &Regions{
		ibgeToSigla: ibgeToSigla,
		ufToRegion:  ufToRegion,
		regionSet:   regionSet,
	}
}

// RegionOf returns the macro region for a state abbreviation.
func (r *Regions) RegionOf(uf string) (string, bool) {
	region, ok := r.ufToRegion[strings.ToUpper(strings.TrimSpace(uf))]
	return region, ok
}

// StateCount returns the number of federative units.
func (r *Regions) StateCount() int { return len(r.ufToRegion) }

// Normalize canonicalizes a raw group-key cell to the closed set for the
// chosen granularity. Accepted inputs are IBGE numeric codes (as written,
// including float renderings like "35.0"), state abbreviations, and, for
// region granularity, macro-region names. The second return is false when
// the value is outside the closed set; callers drop such rows rather than
// creating a new group.
func (r *Regions) Normalize(raw string, g Granularity) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	uf, ok := r.normalizeUF(s)
	if !ok {
		if g == GranularityRegion {
			if region, found := r.matchRegion(s); found {
				return region, true
			}
		}
		return "", false
	}

	if g == GranularityRegion {
		return r.ufToRegion[uf], true
	}
	return uf, true
}

func (r *Regions) normalizeUF(s string) (string, bool) {
	if _, ok := r.ufToRegion[s]; ok {
		return s, true
	}

	// Numeric IBGE code, possibly float-formatted by the exporter.
	if dot := strings.IndexAny(s, ".,"); dot > 0 {
		s = s[:dot]
	}
	code, err := strconv.Atoi(s)
	if err != nil {
		return "", false
	}
	uf, ok := r.ibgeToSigla[code]
	return uf, ok
}

func (r *Regions) matchRegion(s string) (string, bool) {
	for region := range r.regionSet {
		if strings.EqualFold(region, s) {
			return region, true
		}
	}
	// Short region codes as used in some SAEB exports.
	switch s {
	case "N":
		return "Norte", true
	case "NE":
		return "Nordeste", true
	case "SE":
		return "Sudeste", true
	case "S":
		return "Sul", true
	case "CO":
		return "Centro-Oeste", true
	}
	return "", false
}
