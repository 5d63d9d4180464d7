package aggregate

import (
	"math"

	"github.com/edusurvey/microagg/pkg/catalog"
)

// Stat is the finalized statistic for one (group, measure) pair. Nil
// pointers mean "undefined": a simple mean with zero observations, or a
// weighted mean with zero weight mass, reports as missing rather than
// dividing by zero.
type Stat struct {
	Count        int64
	Mean         *float64
	WeightedMean *float64
	StdDev       *float64
}

// GroupStats is one finalized output row: every measure's statistics for
// one group key, plus the derived overall score.
type GroupStats struct {
	Group  string
	Fields map[string]Stat

	// GlobalMean is the row-wise mean of the already-finalized means of
	// the global-component measures. It is computed after finalization,
	// never accumulated, so subject-specific missingness cannot skew the
	// weighting. Per component the weighted mean is preferred when
	// defined, matching how the source pipelines build the general score.
	GlobalMean *float64

	// Observations is the largest observation count across the global
	// components; WeightTotal the largest accumulated weight mass.
	// Together they back the published per-group N.
	Observations int64
	WeightTotal  float64
}

// Options controls finalization.
type Options struct {
	// WithStdDev adds the sum-of-squares standard deviation per measure.
	WithStdDev bool
}

// Finalize converts an accumulator table into finalized per-group rows,
// ordered by group key. No input row is re-read and no full-size
// intermediate is built; this is a pure fold over the accumulators.
func Finalize(t Table, cat *catalog.Catalog, opts Options) []GroupStats {
	globalComponents := make(map[string]bool)
	for _, m := range cat.Measures() {
		if m.InGlobalMean {
			globalComponents[m.Name] = true
		}
	}
	// A catalog that never marks components gets the overall score over
	// every measure.
	if len(globalComponents) == 0 {
		for _, m := range cat.Measures() {
			globalComponents[m.Name] = true
		}
	}

	out := make([]GroupStats, 0, len(t))
	for _, group := range t.Groups() {
		gs := GroupStats{
			Group:  group,
			Fields: make(map[string]Stat, len(t[group])),
		}

		var globalSum float64
		var globalN int
		for measure, acc := range t[group] {
			stat := finalizeOne(acc, opts.WithStdDev)
			gs.Fields[measure] = stat

			if globalComponents[measure] {
				if stat.WeightedMean != nil {
					globalSum += *stat.WeightedMean
					globalN++
				} else if stat.Mean != nil {
					globalSum += *stat.Mean
					globalN++
				}
				if acc.Count > gs.Observations {
					gs.Observations = acc.Count
				}
				if acc.WeightSum > gs.WeightTotal {
					gs.WeightTotal = acc.WeightSum
				}
			}
		}

		if globalN > 0 {
			g := globalSum / float64(globalN)
			gs.GlobalMean = &g
		}

		out = append(out, gs)
	}
	return out
}

func finalizeOne(acc *Accumulator, withStdDev bool) Stat {
	stat := Stat{Count: acc.Count}

	if acc.Count > 0 {
		mean := acc.Sum / float64(acc.Count)
		stat.Mean = &mean

		if withStdDev {
			// Round-off can push the radicand slightly negative; the
			// guard keeps Sqrt out of NaN territory.
			radicand := acc.SumSquares/float64(acc.Count) - mean*mean
			sd := math.Sqrt(math.Max(0, radicand))
			stat.StdDev = &sd
		}
	}

	if acc.WeightSum > 0 {
		wm := acc.WeightedSum / acc.WeightSum
		stat.WeightedMean = &wm
	}

	return stat
}
