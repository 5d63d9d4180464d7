package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edusurvey/microagg/pkg/catalog"
	"github.com/edusurvey/microagg/pkg/rowfilter"
	"github.com/edusurvey/microagg/pkg/schema"
)

var enemHeader = []string{
	"SG_UF_PROVA", "TP_ST_CONCLUSAO", "NU_NOTA_CN", "NU_NOTA_CH", "NU_NOTA_LC", "NU_NOTA_MT", "NU_NOTA_REDACAO",
}

var saebHeader = []string{
	"ID_UF", "ID_DEPENDENCIA_ADM", "MEDIA_3EM_LP", "MEDIA_3EM_MT", "NU_PRESENTES_3EM",
}

func newENEMAggregator(t *testing.T, crit rowfilter.Criterion) *Aggregator {
	t.Helper()
	cat := catalog.ENEMStudent()
	resolved, missing := schema.Resolve(enemHeader, cat)
	require.Empty(t, missing)

	log := zaptest.NewLogger(t)
	filter := rowfilter.New(crit, resolved, log)
	agg, err := New(cat, resolved, catalog.NewRegions(), catalog.GranularityState, filter, log)
	require.NoError(t, err)
	return agg
}

func newSAEBAggregator(t *testing.T, granularity catalog.Granularity) *Aggregator {
	t.Helper()
	cat := catalog.SAEBSchool()
	resolved, missing := schema.Resolve(saebHeader, cat)
	require.Empty(t, missing)

	log := zaptest.NewLogger(t)
	filter := rowfilter.New(rowfilter.Unconditional(), resolved, log)
	agg, err := New(cat, resolved, catalog.NewRegions(), granularity, filter, log)
	require.NoError(t, err)
	return agg
}

func TestAggregatorSimpleMeans(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.Unconditional())

	agg.ConsumeChunk([][]string{
		{"SP", "2", "500", "510", "520", "530", "540"},
		{"SP", "1", "600", "610", "620", "630", "640"},
		{"RJ", "2", "450", "460", "470", "480", "490"},
	})

	assert.Equal(t, int64(3), agg.RowsSeen)
	assert.Equal(t, int64(3), agg.RowsKept)

	acc := agg.Totals().At("SP", "score_cn")
	assert.Equal(t, int64(2), acc.Count)
	assert.Equal(t, 1100.0, acc.Sum)
}

// Results must be identical whether rows arrive as one chunk or many.
func TestAggregatorChunkInvariance(t *testing.T) {
	rows := [][]string{
		{"SP", "2", "500", "510", "520", "530", "540"},
		{"SP", "2", "600", "610", "620", "630", "640"},
		{"RJ", "2", "450", "460", "470", "480", "490"},
		{"MG", "1", "700", "710", "720", "730", "740"},
	}

	oneShot := newENEMAggregator(t, rowfilter.Unconditional())
	oneShot.ConsumeChunk(rows)

	chunked := newENEMAggregator(t, rowfilter.Unconditional())
	chunked.ConsumeChunk(rows[:1])
	chunked.ConsumeChunk(rows[1:3])
	chunked.ConsumeChunk(rows[3:])

	assert.Equal(t, oneShot.Totals(), chunked.Totals())
	assert.Equal(t, oneShot.RowsSeen, chunked.RowsSeen)
}

func TestAggregatorZeroScoreIsMissing(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.Unconditional())

	agg.ConsumeChunk([][]string{
		{"SP", "2", "0", "510", "520", "530", "540"},
		{"SP", "2", "500", "510", "520", "530", "540"},
	})

	acc := agg.Totals().At("SP", "score_cn")
	assert.Equal(t, int64(1), acc.Count, "a literal 0 score is an absent candidate")
	assert.Equal(t, 500.0, acc.Sum)
	assert.Equal(t, int64(1), agg.CellsMissing)
}

func TestAggregatorMalformedCellsGoToMissingChannel(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.Unconditional())

	agg.ConsumeChunk([][]string{
		{"SP", "2", "abc", "510", "", "530", "540"},
	})

	assert.Equal(t, int64(1), agg.RowsKept, "malformed cells never drop the row")
	assert.Equal(t, int64(2), agg.CellsMissing)
	assert.Equal(t, int64(1), agg.Totals().At("SP", "score_ch").Count)
}

// Pandas-written exports spell missing values as the literal "NaN", which
// strconv.ParseFloat happily accepts. Such cells must land in the missing
// channel; one NaN folded into a sum would poison the whole group.
func TestAggregatorNonFiniteCellsGoToMissingChannel(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.Unconditional())

	agg.ConsumeChunk([][]string{
		{"SP", "2", "500", "510", "520", "530", "540"},
		{"SP", "2", "NaN", "Inf", "-Infinity", "530", "540"},
	})

	acc := agg.Totals().At("SP", "score_cn")
	assert.Equal(t, int64(1), acc.Count)
	assert.Equal(t, 500.0, acc.Sum)
	assert.False(t, math.IsNaN(acc.Sum))
	assert.Equal(t, int64(3), agg.CellsMissing)
}

func TestAggregatorNaNWeightFallsBackToUnweighted(t *testing.T) {
	agg := newSAEBAggregator(t, catalog.GranularityState)

	agg.ConsumeChunk([][]string{
		{"35", "2", "250", "260", "NaN"},
		{"35", "2", "270", "280", "100"},
	})

	acc := agg.Totals().At("SP", "score_lp")
	assert.Equal(t, int64(2), acc.Count)
	assert.False(t, math.IsNaN(acc.WeightSum), "a NaN weight must not enter the weight sum")
	assert.Equal(t, 100.0, acc.WeightSum)
	assert.Equal(t, 270.0*100, acc.WeightedSum)
}

func TestAggregatorDropsOutOfSetGroups(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.Unconditional())

	agg.ConsumeChunk([][]string{
		{"99", "2", "500", "510", "520", "530", "540"},
		{"", "2", "500", "510", "520", "530", "540"},
		{"SP", "2", "500", "510", "520", "530", "540"},
	})

	assert.Equal(t, int64(2), agg.RowsBadGroup)
	assert.Equal(t, []string{"SP"}, agg.Totals().Groups())
}

func TestAggregatorFilterCounts(t *testing.T) {
	agg := newENEMAggregator(t, rowfilter.EqualsValue("completion_status", 2))

	agg.ConsumeChunk([][]string{
		{"SP", "2", "500", "510", "520", "530", "540"},
		{"SP", "1", "600", "610", "620", "630", "640"},
		{"SP", "3", "600", "610", "620", "630", "640"},
	})

	assert.Equal(t, int64(1), agg.RowsKept)
	assert.Equal(t, int64(2), agg.RowsFiltered)
	assert.Equal(t, int64(1), agg.Totals().At("SP", "score_cn").Count)
}

func TestAggregatorWeightedObservations(t *testing.T) {
	agg := newSAEBAggregator(t, catalog.GranularityState)

	agg.ConsumeChunk([][]string{
		{"35", "2", "550", "560", "100"},
		{"35", "2", "650", "660", "100"},
	})

	acc := agg.Totals().At("SP", "score_lp")
	assert.Equal(t, int64(2), acc.Count)
	assert.Equal(t, 200.0, acc.WeightSum)
	assert.Equal(t, 550.0*100+650.0*100, acc.WeightedSum)
}

// A missing or non-positive weight downgrades that row to an unweighted
// observation instead of discarding it.
func TestAggregatorWeightFallback(t *testing.T) {
	agg := newSAEBAggregator(t, catalog.GranularityState)

	agg.ConsumeChunk([][]string{
		{"35", "2", "550", "560", "100"},
		{"35", "2", "650", "660", ""},
		{"35", "2", "600", "610", "0"},
	})

	acc := agg.Totals().At("SP", "score_lp")
	assert.Equal(t, int64(3), acc.Count)
	assert.Equal(t, 100.0, acc.WeightSum, "only the weighted row contributes weight mass")
	assert.Equal(t, 55000.0, acc.WeightedSum)
}

func TestAggregatorRegionGranularity(t *testing.T) {
	agg := newSAEBAggregator(t, catalog.GranularityRegion)

	agg.ConsumeChunk([][]string{
		{"35", "2", "550", "560", "10"}, // SP
		{"33", "2", "650", "660", "10"}, // RJ
		{"23", "2", "450", "460", "10"}, // CE
	})

	assert.Equal(t, []string{"Nordeste", "Sudeste"}, agg.Totals().Groups())
	assert.Equal(t, int64(2), agg.Totals().At("Sudeste", "score_lp").Count)
}

func TestAggregatorMergeFrom(t *testing.T) {
	a := newENEMAggregator(t, rowfilter.Unconditional())
	b := newENEMAggregator(t, rowfilter.Unconditional())

	a.ConsumeChunk([][]string{{"SP", "2", "500", "510", "520", "530", "540"}})
	b.ConsumeChunk([][]string{{"SP", "2", "600", "610", "620", "630", "640"}})

	a.MergeFrom(b)
	assert.Equal(t, int64(2), a.RowsSeen)
	assert.Equal(t, int64(2), a.Totals().At("SP", "score_cn").Count)
	assert.Equal(t, 1100.0, a.Totals().At("SP", "score_cn").Sum)
}

// Weighted data with a zero-sentinel score: the sentinel row contributes
// neither to the count nor to the weight mass of that measure.
func TestAggregatorZeroSentinelWithWeights(t *testing.T) {
	cat := &catalog.Catalog{
		Dataset: "test",
		Fields: []catalog.Field{
			{Name: "uf", Role: catalog.RoleGroupKey, Candidates: []string{"UF"}, Mandatory: true},
			{Name: "score", Role: catalog.RoleMeasure, Candidates: []string{"SCORE"}, ZeroAsMissing: true},
			{Name: "w", Role: catalog.RoleWeight, Candidates: []string{"W"}},
		},
	}
	resolved, missing := schema.Resolve([]string{"UF", "SCORE", "W"}, cat)
	require.Empty(t, missing)

	log := zaptest.NewLogger(t)
	agg, err := New(cat, resolved, catalog.NewRegions(), catalog.GranularityState,
		rowfilter.New(rowfilter.Unconditional(), resolved, log), log)
	require.NoError(t, err)

	agg.ConsumeChunk([][]string{
		{"SP", "600", "2"},
		{"SP", "0", "1"},
		{"RJ", "500", "1"},
	})

	stats := Finalize(agg.Totals(), cat, Options{})
	require.Len(t, stats, 2)

	sp := stats[1] // RJ sorts first
	require.Equal(t, "SP", sp.Group)
	require.NotNil(t, sp.Fields["score"].Mean)
	assert.Equal(t, 600.0, *sp.Fields["score"].Mean)
	require.NotNil(t, sp.Fields["score"].WeightedMean)
	assert.Equal(t, 600.0, *sp.Fields["score"].WeightedMean)
	assert.Equal(t, int64(1), sp.Fields["score"].Count)

	rj := stats[0]
	require.NotNil(t, rj.Fields["score"].Mean)
	assert.Equal(t, 500.0, *rj.Fields["score"].Mean)
	require.NotNil(t, rj.Fields["score"].WeightedMean)
	assert.Equal(t, 500.0, *rj.Fields["score"].WeightedMean)
}

func TestAccumulatorMergeAssociative(t *testing.T) {
	obs := [][]float64{{500, 1}, {600, 2}, {700, 3}}

	build := func(split int) Accumulator {
		var left, right Accumulator
		for i, o := range obs {
			target := &left
			if i >= split {
				target = &right
			}
			target.ObserveWeighted(o[0], o[1])
		}
		left.Merge(right)
		return left
	}

	assert.Equal(t, build(1), build(2))
	assert.Equal(t, build(0), build(3))
}
