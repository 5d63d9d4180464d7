// Package pipeline orchestrates one extraction run: stream opening,
// format sniffing, schema resolution, chunked aggregation, finalization
// and output standardization, fanned out across input files.
package pipeline

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/edusurvey/microagg/pkg/aggregate"
	"github.com/edusurvey/microagg/pkg/catalog"
	"github.com/edusurvey/microagg/pkg/config"
	"github.com/edusurvey/microagg/pkg/errors"
	"github.com/edusurvey/microagg/pkg/logger"
	"github.com/edusurvey/microagg/pkg/metrics"
	"github.com/edusurvey/microagg/pkg/output"
	"github.com/edusurvey/microagg/pkg/rowfilter"
	"github.com/edusurvey/microagg/pkg/schema"
	"github.com/edusurvey/microagg/pkg/sniff"
	"github.com/edusurvey/microagg/pkg/source"
)

// Pipeline processes input files against one field catalog and one
// filter mode. It is safe for concurrent ProcessFile calls; each call
// owns its stream, reader and aggregator.
type Pipeline struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	regions *catalog.Regions
}

// Result is the outcome of processing one input file.
type Result struct {
	Input     config.FileInput
	FilterTag string
	Degraded  bool

	// Totals is the merged accumulator table, kept so runs can be
	// combined across files before finalization.
	Totals aggregate.Table
	Stats  []aggregate.GroupStats
	Table  *output.Table

	RowsSeen     int64
	RowsKept     int64
	RowsBadGroup int64
}

// New builds a pipeline from a validated configuration.
func New(cfg *config.Config) (*Pipeline, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:     cfg,
		catalog: cat,
		regions: catalog.NewRegions(),
	}, nil
}

// Catalog exposes the resolved field catalog for the run.
func (p *Pipeline) Catalog() *catalog.Catalog { return p.catalog }

// Regions exposes the canonical group-key lookup.
func (p *Pipeline) Regions() *catalog.Regions { return p.regions }

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Inputs.CatalogPath != "" {
		return catalog.LoadFile(cfg.Inputs.CatalogPath)
	}
	cat := catalog.Builtin(cfg.Inputs.Dataset)
	if cat == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "unknown builtin dataset").
			WithDetail("dataset", cfg.Inputs.Dataset)
	}
	return cat, nil
}

// ProcessFile runs the full pipeline over one input file and returns
// its finalized, standardized table.
func (p *Pipeline) ProcessFile(ctx context.Context, input config.FileInput) (*Result, error) {
	ctx = context.WithValue(ctx, logger.DatasetKey, p.catalog.Dataset)
	ctx = context.WithValue(ctx, logger.SourceFileKey, input.Path)
	ctx = context.WithValue(ctx, logger.VintageKey, input.Year)
	log := logger.WithContext(ctx)

	stream, err := source.Open(input.Path, p.catalog.MemberToken)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("error").Inc()
		return nil, err
	}
	defer stream.Close()

	format, err := sniff.Detect(stream)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("error").Inc()
		return nil, err
	}
	if name := p.cfg.Inputs.Encoding; name != "" {
		if enc, ok := sniff.ForName(name); ok {
			format.Encoding = enc
			format.EncodingName = name
		}
	}
	log.Info("detected input format",
		zap.String("member", stream.Name()),
		zap.String("delimiter", string(format.Delimiter)),
		zap.String("encoding", format.EncodingName))

	reader, err := source.NewChunkReader(stream, format, p.cfg.Aggregation.ChunkSize)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	resolved, missing := schema.Resolve(reader.Header(), p.catalog)
	if len(missing) > 0 {
		metrics.FilesProcessed.WithLabelValues("skipped").Inc()
		return nil, schema.MissingMandatoryError(p.catalog.Dataset, missing, reader.Header())
	}

	crit, tag := p.criterion(resolved)
	filter := rowfilter.New(crit, resolved, log)

	agg, err := aggregate.New(p.catalog, resolved, p.regions, p.granularity(), filter, log)
	if err != nil {
		metrics.FilesProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			metrics.FilesProcessed.WithLabelValues("canceled").Inc()
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeInternal, "extraction canceled")
		default:
		}

		rows, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			metrics.FilesProcessed.WithLabelValues("error").Inc()
			return nil, err
		}
		agg.ConsumeChunk(rows)
		metrics.RowsRead.Add(float64(len(rows)))
		metrics.ChunksProcessed.Inc()
	}

	stats := aggregate.Finalize(agg.Totals(), p.catalog, aggregate.Options{
		WithStdDev: p.cfg.Aggregation.WithStdDev,
	})
	if len(stats) == 0 {
		log.Warn("no rows survived filtering and grouping, emitting empty table",
			zap.Int64("rows_seen", agg.RowsSeen))
	}

	table := output.Standardize(stats, p.catalog, p.regions, output.Options{
		Year:             input.Year,
		FilterTag:        tag,
		Granularity:      p.granularity(),
		RequestedColumns: p.cfg.Output.Columns,
		WithStdDev:       p.cfg.Aggregation.WithStdDev,
	})

	log.Info("file aggregated",
		zap.String("filter", tag),
		zap.Int64("rows_seen", agg.RowsSeen),
		zap.Int64("rows_kept", agg.RowsKept),
		zap.Int64("rows_bad_group", agg.RowsBadGroup),
		zap.Int("groups", len(stats)))
	metrics.FilesProcessed.WithLabelValues("ok").Inc()

	return &Result{
		Input:        input,
		FilterTag:    tag,
		Degraded:     filter.Degraded(),
		Totals:       agg.Totals(),
		Stats:        stats,
		Table:        table,
		RowsSeen:     agg.RowsSeen,
		RowsKept:     agg.RowsKept,
		RowsBadGroup: agg.RowsBadGroup,
	}, nil
}

func (p *Pipeline) granularity() catalog.Granularity {
	if p.cfg.Aggregation.Granularity == "region" {
		return catalog.GranularityRegion
	}
	return catalog.GranularityState
}

// criterion translates the configured filter mode into a concrete row
// criterion. Network filters depend on which physical column actually
// resolved: IN_PUBLICA is a 0/1 public flag, while the dependency-code
// columns use 4 for private and 1..3 for the public networks.
func (p *Pipeline) criterion(resolved *schema.Resolved) (rowfilter.Criterion, string) {
	switch strings.ToLower(p.cfg.Filter.Mode) {
	case "strict":
		return rowfilter.EqualsValue("completion_status", 2), "STRICT_3EM"
	case "proxy":
		return rowfilter.NonZero("school_id"), "PROXY_3EM"
	case "public", "private":
		wantPublic := strings.EqualFold(p.cfg.Filter.Mode, "public")
		tag := "PUBLIC"
		if !wantPublic {
			tag = "PRIVATE"
		}
		physical, ok := resolved.Physical("network")
		if ok && strings.Contains(strings.ToUpper(physical), "IN_PUBLICA") {
			if wantPublic {
				return rowfilter.EqualsValue("network", 1), tag
			}
			return rowfilter.EqualsValue("network", 0), tag
		}
		if wantPublic {
			return rowfilter.ValueInSet("network", 1, 2, 3), tag
		}
		return rowfilter.EqualsValue("network", 4), tag
	default:
		return rowfilter.Unconditional(), "ALL"
	}
}
