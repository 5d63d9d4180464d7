// Package output turns finalized group statistics into the stable public
// table schema and writes it to the delimited-text and spreadsheet sinks.
// Standardization is a pure transform: renaming, column ordering, row
// sorting, and nothing else.
package output

import (
	"sort"

	"github.com/edusurvey/microagg/pkg/aggregate"
	"github.com/edusurvey/microagg/pkg/catalog"
)

// Public column names of the standardized table.
const (
	ColYear    = "Ano"
	ColRegion  = "Região"
	ColState   = "UF"
	ColFilter  = "Filtro"
	ColGlobal  = "Média_Geral"
	ColRecords = "N_Alunos"

	// stdDevSuffix marks the optional per-measure dispersion columns.
	stdDevSuffix = "_DP"
)

// Options parameterizes standardization for one run.
type Options struct {
	Year        int
	FilterTag   string
	Granularity catalog.Granularity

	// RequestedColumns narrows the published columns. Unknown names are
	// ignored; an empty (or fully unknown) request keeps every column.
	RequestedColumns []string

	WithStdDev bool
}

// Table is the standardized output: ordered columns and typed rows. Cell
// values are string, int64, float64, or nil for undefined statistics.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// Standardize renames finalized fields to their public names, orders
// columns by the fixed priority list followed by the remaining columns
// alphabetically, and sorts rows descending by the general mean.
func Standardize(stats []aggregate.GroupStats, cat *catalog.Catalog, regions *catalog.Regions, opts Options) *Table {
	outputNames := make(map[string]string)
	for _, m := range cat.Measures() {
		name := m.OutputName
		if name == "" {
			name = m.Name
		}
		outputNames[m.Name] = name
	}

	columns := priorityColumns(opts)
	columns = append(columns, remainingColumns(stats, outputNames, opts)...)
	columns = selectRequested(columns, opts.RequestedColumns)

	sorted := make([]aggregate.GroupStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return globalLess(sorted[j], sorted[i])
	})

	table := &Table{Columns: columns}
	for _, gs := range sorted {
		table.Rows = append(table.Rows, buildRow(gs, columns, outputNames, regions, opts))
	}
	return table
}

// priorityColumns is the fixed leading column order of every published
// table.
func priorityColumns(opts Options) []string {
	var cols []string
	if opts.Year != 0 {
		cols = append(cols, ColYear)
	}
	cols = append(cols, ColRegion)
	if opts.Granularity == catalog.GranularityState {
		cols = append(cols, ColState)
	}
	if opts.FilterTag != "" {
		cols = append(cols, ColFilter)
	}
	cols = append(cols, ColGlobal, ColRecords)
	return cols
}

// remainingColumns lists every measure column that actually finalized in
// this run, in stable alphabetical order.
func remainingColumns(stats []aggregate.GroupStats, outputNames map[string]string, opts Options) []string {
	present := make(map[string]bool)
	for _, gs := range stats {
		for measure := range gs.Fields {
			present[measure] = true
		}
	}

	var cols []string
	for measure := range present {
		name := outputNames[measure]
		if name == "" {
			name = measure
		}
		cols = append(cols, name)
		if opts.WithStdDev {
			cols = append(cols, name+stdDevSuffix)
		}
	}
	sort.Strings(cols)
	return cols
}

func selectRequested(columns, requested []string) []string {
	if len(requested) == 0 {
		return columns
	}
	want := make(map[string]bool, len(requested))
	for _, c := range requested {
		want[c] = true
	}

	var kept []string
	for _, c := range columns {
		if want[c] {
			kept = append(kept, c)
		}
	}
	// An entirely unknown request falls back to the full table rather
	// than publishing nothing.
	if len(kept) == 0 {
		return columns
	}
	return kept
}

// globalLess orders by general mean; groups without one sink to the end.
func globalLess(a, b aggregate.GroupStats) bool {
	switch {
	case a.GlobalMean == nil:
		return b.GlobalMean != nil
	case b.GlobalMean == nil:
		return false
	default:
		return *a.GlobalMean < *b.GlobalMean
	}
}

func buildRow(gs aggregate.GroupStats, columns []string, outputNames map[string]string,
	regions *catalog.Regions, opts Options) []interface{} {

	byOutput := make(map[string]aggregate.Stat, len(gs.Fields))
	for measure, stat := range gs.Fields {
		name := outputNames[measure]
		if name == "" {
			name = measure
		}
		byOutput[name] = stat
	}

	row := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		switch col {
		case ColYear:
			row = append(row, int64(opts.Year))
		case ColRegion:
			row = append(row, regionCell(gs.Group, regions, opts.Granularity))
		case ColState:
			row = append(row, gs.Group)
		case ColFilter:
			row = append(row, opts.FilterTag)
		case ColGlobal:
			row = append(row, floatCell(gs.GlobalMean))
		case ColRecords:
			if gs.WeightTotal > 0 {
				row = append(row, gs.WeightTotal)
			} else {
				row = append(row, gs.Observations)
			}
		default:
			row = append(row, statCell(col, byOutput))
		}
	}
	return row
}

func regionCell(group string, regions *catalog.Regions, g catalog.Granularity) interface{} {
	if g == catalog.GranularityRegion {
		return group
	}
	if region, ok := regions.RegionOf(group); ok {
		return region
	}
	return nil
}

func statCell(col string, byOutput map[string]aggregate.Stat) interface{} {
	if name, isStdDev := trimStdDev(col); isStdDev {
		if stat, ok := byOutput[name]; ok {
			return floatCell(stat.StdDev)
		}
		return nil
	}

	stat, ok := byOutput[col]
	if !ok {
		return nil
	}
	if stat.WeightedMean != nil {
		return *stat.WeightedMean
	}
	return floatCell(stat.Mean)
}

func trimStdDev(col string) (string, bool) {
	if len(col) > len(stdDevSuffix) && col[len(col)-len(stdDevSuffix):] == stdDevSuffix {
		return col[:len(col)-len(stdDevSuffix)], true
	}
	return col, false
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
