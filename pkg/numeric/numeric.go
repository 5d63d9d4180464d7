// Package numeric provides the locale-tolerant numeric coercion shared by
// the row filter and the streaming aggregator.
package numeric

import (
	"math"
	"strconv"
	"strings"
)

// Parse coerces a raw cell to a float64. Decimal-comma values ("512,3")
// are normalized before parsing. The second return is false for empty or
// unparseable cells; callers treat those as missing, never as zero.
// Non-finite literals ("NaN", "Inf") count as unparseable: a single NaN
// folded into an accumulator would poison every statistic of its group.
func Parse(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	if strings.ContainsRune(s, ',') {
		s = strings.ReplaceAll(s, ",", ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
