// Package aggregate implements the streaming per-group statistics engine.
// Rows are folded chunk by chunk into additive accumulators; accumulators
// merge by element-wise addition, so any partition of the input into
// chunks, and any merge order across chunks or files, finalizes to the
// same statistics.
package aggregate

import "sort"

// Accumulator is the partial, mergeable running total for one
// (group, measure) pair. All components are plain sums, which is what
// makes chunked and parallel processing correct.
type Accumulator struct {
	Count       int64
	Sum         float64
	SumSquares  float64
	WeightSum   float64
	WeightedSum float64
}

// Observe folds one present value into the accumulator.
func (a *Accumulator) Observe(value float64) {
	a.Count++
	a.Sum += value
	a.SumSquares += value * value
}

// ObserveWeighted folds one present value carrying a sampling weight.
func (a *Accumulator) ObserveWeighted(value, weight float64) {
	a.Observe(value)
	a.WeightSum += weight
	a.WeightedSum += value * weight
}

// Merge adds another accumulator into this one.
func (a *Accumulator) Merge(other Accumulator) {
	a.Count += other.Count
	a.Sum += other.Sum
	a.SumSquares += other.SumSquares
	a.WeightSum += other.WeightSum
	a.WeightedSum += other.WeightedSum
}

// Table holds accumulators keyed by group, then by logical measure name.
type Table map[string]map[string]*Accumulator

// At returns the accumulator for (group, measure), creating it if needed.
func (t Table) At(group, measure string) *Accumulator {
	fields, ok := t[group]
	if !ok {
		fields = make(map[string]*Accumulator)
		t[group] = fields
	}
	acc, ok := fields[measure]
	if !ok {
		acc = &Accumulator{}
		fields[measure] = acc
	}
	return acc
}

// Merge folds another table into this one key-wise. The other table must
// not be used afterwards for accumulation.
func (t Table) Merge(other Table) {
	for group, fields := range other {
		for measure, acc := range fields {
			t.At(group, measure).Merge(*acc)
		}
	}
}

// Groups returns the group keys in sorted order.
func (t Table) Groups() []string {
	groups := make([]string, 0, len(t))
	for g := range t {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}
