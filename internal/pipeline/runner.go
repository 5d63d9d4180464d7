package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edusurvey/microagg/pkg/aggregate"
	"github.com/edusurvey/microagg/pkg/config"
	"github.com/edusurvey/microagg/pkg/logger"
	"github.com/edusurvey/microagg/pkg/output"
)

// Runner fans a pipeline out across the configured input files, each
// worker owning a private aggregation run, and writes the resulting
// tables.
type Runner struct {
	cfg      *config.Config
	pipeline *Pipeline
	log      *zap.Logger
}

// NewRunner wires a runner for a validated configuration.
func NewRunner(cfg *config.Config) (*Runner, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, pipeline: p, log: logger.Get()}, nil
}

// Run processes every input file with bounded concurrency and writes
// one standardized table per file, plus a combined table when combine
// mode is on. Results come back in input order.
func (r *Runner) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(r.cfg.Inputs.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Aggregation.Workers)

	for i, input := range r.cfg.Inputs.Files {
		g.Go(func() error {
			res, err := r.pipeline.ProcessFile(gctx, input)
			if err != nil {
				return err
			}
			// Each worker writes a distinct slot.
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A vintage split across part files yields identical (year, tag)
	// names; later parts get a numeric suffix instead of overwriting.
	seen := make(map[string]int)
	for _, res := range results {
		name := r.tableName(res.Input.Year, res.FilterTag)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_part%d", name, n)
		}
		if err := r.writeTable(res.Table, name); err != nil {
			return nil, err
		}
	}

	if r.cfg.Aggregation.Combine && len(results) > 1 {
		if err := r.writeCombined(results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// writeCombined merges the per-file accumulator tables and finalizes
// them once, so combined statistics stay exact rather than averaging
// averages.
func (r *Runner) writeCombined(results []*Result) error {
	merged := make(aggregate.Table)
	for _, res := range results {
		merged.Merge(res.Totals)
	}

	stats := aggregate.Finalize(merged, r.pipeline.Catalog(), aggregate.Options{
		WithStdDev: r.cfg.Aggregation.WithStdDev,
	})
	table := output.Standardize(stats, r.pipeline.Catalog(), r.pipeline.Regions(), output.Options{
		FilterTag:        results[0].FilterTag,
		Granularity:      r.pipeline.granularity(),
		RequestedColumns: r.cfg.Output.Columns,
		WithStdDev:       r.cfg.Aggregation.WithStdDev,
	})
	return r.writeTable(table, r.tableName(0, results[0].FilterTag+"_COMBINED"))
}

func (r *Runner) tableName(year int, tag string) string {
	base := r.pipeline.Catalog().Dataset
	if year != 0 {
		base = fmt.Sprintf("%s_%d", base, year)
	}
	return fmt.Sprintf("%s_%s", base, strings.ToLower(tag))
}

func (r *Runner) writeTable(t *output.Table, name string) error {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return err
	}
	for _, format := range r.cfg.Output.Formats {
		path := filepath.Join(r.cfg.Output.Dir, name+"."+strings.ToLower(format))
		var err error
		switch strings.ToLower(format) {
		case "xlsx":
			err = output.WriteXLSX(t, path)
		default:
			err = output.WriteCSV(t, path, r.cfg.DelimiterRune())
		}
		if err != nil {
			return err
		}
		r.log.Info("wrote table", zap.String("path", path), zap.Int("rows", len(t.Rows)))
	}
	return nil
}
