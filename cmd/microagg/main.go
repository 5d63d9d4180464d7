package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/edusurvey/microagg/internal/pipeline"
	"github.com/edusurvey/microagg/pkg/analysis"
	"github.com/edusurvey/microagg/pkg/config"
	"github.com/edusurvey/microagg/pkg/logger"
	"github.com/edusurvey/microagg/pkg/output"
)

var version = "0.1.0"

func main() {
	// Load .env if present; absence is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "microagg",
		Short: "Microagg - streaming aggregation for education survey microdata",
		Long: `Microagg extracts group-level statistics from large survey microdata
files (zip, gzip or plain CSV) in bounded memory. It resolves logical
fields against varying physical headers, filters row subpopulations,
aggregates per state or macro region and writes standardized tables.`,
	}

	root.AddCommand(versionCmd())
	root.AddCommand(extractCmd())
	root.AddCommand(analyzeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Microagg v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func extractCmd() *cobra.Command {
	var (
		configFile  string
		dataset     string
		inputs      []string
		filterMode  string
		granularity string
		chunkSize   int
		workers     int
		withStdDev  bool
		combine     bool
		outputDir   string
		formats     []string
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Aggregate microdata files into standardized tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dataset") {
				cfg.Inputs.Dataset = dataset
			}
			if cmd.Flags().Changed("filter") {
				cfg.Filter.Mode = filterMode
			}
			if cmd.Flags().Changed("granularity") {
				cfg.Aggregation.Granularity = granularity
			}
			if cmd.Flags().Changed("chunk-size") {
				cfg.Aggregation.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("workers") {
				cfg.Aggregation.Workers = workers
			}
			if cmd.Flags().Changed("std-dev") {
				cfg.Aggregation.WithStdDev = withStdDev
			}
			if cmd.Flags().Changed("combine") {
				cfg.Aggregation.Combine = combine
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			if cmd.Flags().Changed("formats") {
				cfg.Output.Formats = formats
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			for _, in := range inputs {
				fi, err := parseInput(in)
				if err != nil {
					return err
				}
				cfg.Inputs.Files = append(cfg.Inputs.Files, fi)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := logger.Init(logger.Config{
				Level:       cfg.Logging.Level,
				Development: cfg.Logging.Development,
				Encoding:    cfg.Logging.Encoding,
			}); err != nil {
				return err
			}
			defer logger.Sync()

			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner, err := pipeline.NewRunner(cfg)
			if err != nil {
				return err
			}
			results, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Printf("%s [%s]: %d rows seen, %d kept, %d groups\n",
					res.Input.Path, res.FilterTag, res.RowsSeen, res.RowsKept, len(res.Stats))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&dataset, "dataset", "enem", "Builtin field catalog (enem, saeb)")
	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil, "Input file as path=year (repeatable)")
	cmd.Flags().StringVar(&filterMode, "filter", "all", "Row filter (all, strict, proxy, public, private)")
	cmd.Flags().StringVar(&granularity, "granularity", "state", "Grouping level (state, region)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", config.DefaultChunkSize, "Rows per chunk")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Concurrent file workers")
	cmd.Flags().BoolVar(&withStdDev, "std-dev", false, "Emit standard deviation columns")
	cmd.Flags().BoolVar(&combine, "combine", false, "Also write one table merged across all inputs")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for output tables")
	cmd.Flags().StringSliceVar(&formats, "formats", []string{"csv"}, "Output formats (csv, xlsx)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		keyColumn   string
		valueColumn string
		delimiter   string
	)

	cmd := &cobra.Command{
		Use:   "analyze [table...]",
		Short: "Rank concordance and correlation across extracted tables",
		Long: `Analyze reads two or more standardized tables (one per survey wave),
aligns their shared groups and reports Kendall's W, pairwise rank
correlations, and the variance explained by a one-factor summary.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(delimiter) != 1 {
				return fmt.Errorf("delimiter must be a single character")
			}
			waves := make([]*analysis.Wave, 0, len(args))
			for _, path := range args {
				w, err := analysis.LoadWave(path, path, keyColumn, valueColumn, rune(delimiter[0]))
				if err != nil {
					return err
				}
				waves = append(waves, w)
			}

			w, keys, err := analysis.Concordance(waves)
			if err != nil {
				return err
			}
			fmt.Printf("Groups compared: %d\n", len(keys))
			fmt.Printf("Kendall's W:     %.4f\n", w)

			_, series, err := analysis.Align(waves)
			if err != nil {
				return err
			}
			for i := 0; i < len(series); i++ {
				for j := i + 1; j < len(series); j++ {
					rho, err := analysis.Spearman(series[i], series[j])
					if err != nil {
						return err
					}
					pr, err := analysis.Pearson(series[i], series[j])
					if err != nil {
						return err
					}
					fmt.Printf("%s vs %s: spearman=%.4f pearson=%.4f\n",
						waves[i].Label, waves[j].Label, rho, pr)
				}
			}

			if len(series) >= 2 && len(keys) >= 2 {
				data := mat.NewDense(len(keys), len(series), nil)
				for j, s := range series {
					for i, v := range s {
						data.Set(i, j, v)
					}
				}
				pca, err := analysis.FirstComponent(data)
				if err != nil {
					logger.Get().Warn("skipping principal component summary", zap.Error(err))
				} else {
					fmt.Printf("First component explains %.1f%% of variance\n",
						pca.ExplainedVariance*100)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyColumn, "key-column", output.ColState, "Group column shared across tables")
	cmd.Flags().StringVar(&valueColumn, "value-column", output.ColGlobal, "Value column to rank")
	cmd.Flags().StringVar(&delimiter, "delimiter", ";", "CSV delimiter of the input tables")

	return cmd
}

func parseInput(s string) (config.FileInput, error) {
	path, yearStr, ok := strings.Cut(s, "=")
	if !ok {
		return config.FileInput{Path: s}, nil
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return config.FileInput{}, fmt.Errorf("invalid input year in %q: %w", s, err)
	}
	return config.FileInput{Path: path, Year: year}, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Get().Error("metrics server stopped", zap.Error(err))
	}
}
