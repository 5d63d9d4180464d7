// Package analysis implements the downstream statistics computed over the
// engine's finalized tables: rank concordance across waves, correlation,
// and a one-factor principal component summary. It consumes small
// per-group tables only; it never touches raw microdata.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/edusurvey/microagg/pkg/errors"
)

// Ranks returns descending ranks (1 = highest value) with ties sharing
// their average rank.
func Ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Tied block [i, j] shares the average of its positions.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// KendallW computes Kendall's coefficient of concordance for m rankings
// of the same n subjects: W = 12*S / (m^2 * (n^3 - n)), where S is the
// squared deviation of per-subject rank sums from their mean.
func KendallW(rankings [][]float64) (float64, error) {
	m := len(rankings)
	if m < 2 {
		return 0, errors.New(errors.ErrorTypeAnalysis, "concordance needs at least two rankings")
	}
	n := len(rankings[0])
	if n < 2 {
		return 0, errors.New(errors.ErrorTypeAnalysis, "concordance needs at least two subjects")
	}
	for _, r := range rankings {
		if len(r) != n {
			return 0, errors.New(errors.ErrorTypeAnalysis, "rankings have mismatched lengths")
		}
	}

	sums := make([]float64, n)
	for _, r := range rankings {
		for i, v := range r {
			sums[i] += v
		}
	}

	meanSum := float64(m) * float64(n+1) / 2
	var s float64
	for _, v := range sums {
		d := v - meanSum
		s += d * d
	}

	fm, fn := float64(m), float64(n)
	return 12 * s / (fm * fm * (fn*fn*fn - fn)), nil
}

// Pearson returns the Pearson correlation of two equal-length series.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, errors.New(errors.ErrorTypeAnalysis, "correlation needs two equal series of length >= 2")
	}
	return stat.Correlation(x, y, nil), nil
}

// Spearman returns the rank correlation of two equal-length series.
func Spearman(x, y []float64) (float64, error) {
	if len(x) != len(y) || len(x) < 2 {
		return 0, errors.New(errors.ErrorTypeAnalysis, "correlation needs two equal series of length >= 2")
	}
	return stat.Correlation(Ranks(x), Ranks(y), nil), nil
}

// PCAResult summarizes a one-factor principal component fit over
// standardized indicator columns.
type PCAResult struct {
	// ExplainedVariance is the share of total variance carried by the
	// first component.
	ExplainedVariance float64
	// Loadings are the first component's weights per input column.
	Loadings []float64
}

// FirstComponent standardizes each column of data (rows = groups,
// columns = indicators) and fits a PCA, reporting the first component.
func FirstComponent(data *mat.Dense) (*PCAResult, error) {
	r, c := data.Dims()
	if r < 2 || c < 2 {
		return nil, errors.New(errors.ErrorTypeAnalysis, "pca needs at least 2 rows and 2 columns")
	}

	std := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, data)
		mean, sd := stat.MeanStdDev(col, nil)
		if sd == 0 {
			return nil, errors.New(errors.ErrorTypeAnalysis, "pca input column has zero variance").
				WithDetail("column", j)
		}
		for i := 0; i < r; i++ {
			std.Set(i, j, (col[i]-mean)/sd)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(std, nil); !ok {
		return nil, errors.New(errors.ErrorTypeAnalysis, "principal component decomposition failed")
	}

	vars := pc.VarsTo(nil)
	var total float64
	for _, v := range vars {
		total += v
	}
	if total == 0 {
		return nil, errors.New(errors.ErrorTypeAnalysis, "pca produced zero total variance")
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)

	loadings := make([]float64, c)
	for j := 0; j < c; j++ {
		loadings[j] = vectors.At(j, 0)
	}

	return &PCAResult{
		ExplainedVariance: vars[0] / total,
		Loadings:          loadings,
	}, nil
}
