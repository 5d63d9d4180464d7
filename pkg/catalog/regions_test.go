package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeState(t *testing.T) {
	r := NewRegions()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"abbreviation", "SP", "SP", true},
		{"lowercase abbreviation", "rj", "RJ", true},
		{"padded abbreviation", " MG ", "MG", true},
		{"ibge code", "35", "SP", true},
		{"float rendered ibge code", "35.0", "SP", true},
		{"comma rendered ibge code", "43,0", "RS", true},
		{"unknown code", "99", "", false},
		{"empty", "", "", false},
		{"garbage", "XX", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Normalize(tt.input, GranularityState)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRegion(t *testing.T) {
	r := NewRegions()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"state folds to region", "SP", "Sudeste", true},
		{"ibge code folds to region", "23", "Nordeste", true},
		{"region name", "Nordeste", "Nordeste", true},
		{"region name case insensitive", "SUL", "Sul", true},
		{"short code north", "N", "Norte", true},
		{"short code center west", "CO", "Centro-Oeste", true},
		{"unknown", "Atlantida", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Normalize(tt.input, GranularityRegion)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// SE is both Sergipe's abbreviation and a short code for Sudeste. The
// state reading wins at both granularities, so Sergipe rows are never
// silently rebadged as the Sudeste macro region.
func TestNormalizeSEPrefersSergipe(t *testing.T) {
	r := NewRegions()

	got, ok := r.Normalize("SE", GranularityState)
	assert.True(t, ok)
	assert.Equal(t, "SE", got)

	got, ok = r.Normalize("SE", GranularityRegion)
	assert.True(t, ok)
	assert.Equal(t, "Nordeste", got)
}

func TestRegionOf(t *testing.T) {
	r := NewRegions()

	region, ok := r.RegionOf("df")
	assert.True(t, ok)
	assert.Equal(t, "Centro-Oeste", region)

	_, ok = r.RegionOf("ZZ")
	assert.False(t, ok)
}

func TestStateCount(t *testing.T) {
	assert.Equal(t, 27, NewRegions().StateCount())
}
