package aggregate

import (
	"go.uber.org/zap"

	"github.com/edusurvey/microagg/pkg/catalog"
	"github.com/edusurvey/microagg/pkg/metrics"
	"github.com/edusurvey/microagg/pkg/numeric"
	"github.com/edusurvey/microagg/pkg/rowfilter"
	"github.com/edusurvey/microagg/pkg/schema"
)

// measureBinding is one resolved measure column with its cleaning rules.
type measureBinding struct {
	name          string
	index         int
	zeroAsMissing bool
}

// Aggregator folds chunked rows into a running accumulator table for one
// (file, criterion) run. It owns the table exclusively for the duration
// of the run; a partially consumed aggregator is always in a valid,
// mergeable state.
type Aggregator struct {
	resolved    *schema.Resolved
	regions     *catalog.Regions
	granularity catalog.Granularity
	filter      *rowfilter.Filter
	logger      *zap.Logger

	groupIndex  int
	measures    []measureBinding
	weightIndex int
	hasWeight   bool

	total Table

	// Run counters, surfaced in logs and prometheus.
	RowsSeen     int64
	RowsKept     int64
	RowsFiltered int64
	RowsBadGroup int64
	CellsMissing int64
}

// New binds an aggregator to a resolved schema. The group key must have
// resolved; measures and the weight bind to whatever columns the file
// actually carries.
func New(cat *catalog.Catalog, resolved *schema.Resolved, regions *catalog.Regions,
	granularity catalog.Granularity, filter *rowfilter.Filter, logger *zap.Logger) (*Aggregator, error) {

	groupField := cat.GroupKey()
	groupIndex, ok := resolved.Index(groupField.Name)
	if !ok {
		return nil, schema.MissingMandatoryError(cat.Dataset, []string{groupField.Name}, resolved.Header)
	}

	a := &Aggregator{
		resolved:    resolved,
		regions:     regions,
		granularity: granularity,
		filter:      filter,
		logger:      logger,
		groupIndex:  groupIndex,
		total:       make(Table),
	}

	for _, m := range cat.Measures() {
		idx, ok := resolved.Index(m.Name)
		if !ok {
			continue
		}
		a.measures = append(a.measures, measureBinding{
			name:          m.Name,
			index:         idx,
			zeroAsMissing: m.ZeroAsMissing,
		})
	}

	if w := cat.Weight(); w != nil {
		if idx, ok := resolved.Index(w.Name); ok {
			a.weightIndex = idx
			a.hasWeight = true
		}
	}

	return a, nil
}

// HasWeight reports whether the sampling weight resolved for this file.
func (a *Aggregator) HasWeight() bool { return a.hasWeight }

// MeasureNames returns the logical names of the measures that resolved,
// in catalog order.
func (a *Aggregator) MeasureNames() []string {
	names := make([]string, len(a.measures))
	for i, m := range a.measures {
		names[i] = m.name
	}
	return names
}

// ConsumeChunk folds one chunk of physical rows into the running totals.
// The chunk is folded into a chunk-local table first and merged key-wise,
// so the running totals only ever grow by accumulator addition. The row
// buffer is not retained.
func (a *Aggregator) ConsumeChunk(rows [][]string) {
	chunk := make(Table)

	for _, row := range rows {
		a.RowsSeen++

		group, ok := a.groupOf(row)
		if !ok {
			a.RowsBadGroup++
			metrics.RowsDroppedBadGroup.Inc()
			continue
		}

		if !a.filter.Keep(row) {
			a.RowsFiltered++
			metrics.RowsFiltered.Inc()
			continue
		}
		a.RowsKept++

		weight, weightOK := 0.0, false
		if a.hasWeight && a.weightIndex < len(row) {
			weight, weightOK = numeric.Parse(row[a.weightIndex])
			if weightOK && weight <= 0 {
				weightOK = false
			}
		}

		for _, m := range a.measures {
			if m.index >= len(row) {
				continue
			}
			value, ok := numeric.Parse(row[m.index])
			if !ok {
				// Malformed or empty cells enter the missing-value
				// channel; they never abort the loop.
				a.CellsMissing++
				metrics.CellsMalformed.Inc()
				continue
			}
			if m.zeroAsMissing && value == 0 {
				a.CellsMissing++
				continue
			}

			acc := chunk.At(group, m.name)
			if weightOK {
				acc.ObserveWeighted(value, weight)
			} else {
				acc.Observe(value)
			}
		}
	}

	a.total.Merge(chunk)
}

// Totals returns the running accumulator table. The caller must not
// mutate it while the aggregator is still consuming chunks.
func (a *Aggregator) Totals() Table { return a.total }

// MergeFrom folds another aggregator's totals into this one. Used when
// several files contribute to one logical dataset; merge order is
// irrelevant by construction.
func (a *Aggregator) MergeFrom(other *Aggregator) {
	a.total.Merge(other.total)
	a.RowsSeen += other.RowsSeen
	a.RowsKept += other.RowsKept
	a.RowsFiltered += other.RowsFiltered
	a.RowsBadGroup += other.RowsBadGroup
	a.CellsMissing += other.CellsMissing
}

func (a *Aggregator) groupOf(row []string) (string, bool) {
	if a.groupIndex >= len(row) {
		return "", false
	}
	return a.regions.Normalize(row[a.groupIndex], a.granularity)
}
