package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/issuelens/issuelens/internal/config"
	"github.com/issuelens/issuelens/internal/dataset"
	"github.com/issuelens/issuelens/internal/embedding"
	"github.com/issuelens/issuelens/internal/evaluate"
	"github.com/issuelens/issuelens/internal/keywords"
	"github.com/issuelens/issuelens/internal/llm"
	"github.com/issuelens/issuelens/internal/overview"
	"github.com/issuelens/issuelens/internal/storage"
	"github.com/issuelens/issuelens/internal/tokens"
	"github.com/issuelens/issuelens/internal/tracker"
	"github.com/issuelens/issuelens/internal/trend"
	"github.com/issuelens/issuelens/internal/vectorindex"
)

func loadDataset(p *config.Paths) (*dataset.Dataset, error) {
	return dataset.Load(p.DataFile(flagData))
}

func engine(p *config.Paths, endpoint, model string) (embedding.Engine, error) {
	return embedding.DefaultEngine(p.ModelsDir(), endpoint, model, newLogger())
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull stories and bugs from the tracker into the dataset file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				cfg, err := tracker.LoadConfig(filepath.Join(p.ConfigDir(), tracker.ConfigFile))
				if err != nil {
					return nil, err
				}
				ds, err := tracker.NewClient(cfg, newLogger()).FetchAll(ctx)
				if err != nil {
					return nil, err
				}
				out := p.DataFile(flagData)
				if err := storage.SaveJSON(out, ds); err != nil {
					return nil, err
				}
				return map[string]any{
					"stories": len(ds.Stories),
					"bugs":    len(ds.Bugs),
					"file":    out,
				}, nil
			})
		},
	}
	return cmd
}

func newIndexCmd() *cobra.Command {
	var chunkSize int
	var endpoint, model string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the semantic vector index from the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				ds, err := loadDataset(p)
				if err != nil {
					return nil, err
				}
				eng, err := engine(p, endpoint, model)
				if err != nil {
					return nil, err
				}
				idx, err := vectorindex.Build(ctx, eng, ds, vectorindex.BuildOptions{ChunkSize: chunkSize})
				if err != nil {
					return nil, err
				}
				if err := idx.Save(p.VectorBase("")); err != nil {
					return nil, err
				}
				return idx.Stats(), nil
			})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", vectorindex.DefaultChunkSize, "records per chunk")
	cmd.Flags().StringVar(&endpoint, "embed-endpoint", embedding.DefaultOllamaEndpoint, "embedding server endpoint")
	cmd.Flags().StringVar(&model, "embed-model", embedding.DefaultModel, "embedding model")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var topK int
	var endpoint, model string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over the indexed issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				idx, err := vectorindex.Load(p.VectorBase(""))
				if err != nil {
					return nil, err
				}
				eng, err := engine(p, endpoint, model)
				if err != nil {
					return nil, err
				}
				return idx.Search(ctx, eng, args[0], topK)
			})
		},
	}
	cmd.Flags().IntVar(&topK, "top", 5, "number of results")
	cmd.Flags().StringVar(&endpoint, "embed-endpoint", embedding.DefaultOllamaEndpoint, "embedding server endpoint")
	cmd.Flags().StringVar(&model, "embed-model", embedding.DefaultModel, "embedding model")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				idx, err := vectorindex.Load(p.VectorBase(""))
				if err != nil {
					return nil, err
				}
				return map[string]any{"descriptor": idx.Desc, "stats": idx.Stats()}, nil
			})
		},
	}
}

func newKeywordsCmd() *cobra.Command {
	var extended bool
	var minFreq int
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Keyword frequency analysis over the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				ds, err := loadDataset(p)
				if err != nil {
					return nil, err
				}
				return keywords.Analyze(ds, keywords.Options{Extended: extended, MinFrequency: minFreq}), nil
			})
		},
	}
	cmd.Flags().BoolVar(&extended, "extended", false, "mine the extended field set")
	cmd.Flags().IntVar(&minFreq, "min-freq", 5, "high-frequency cutoff")
	return cmd
}

func newTrendCmd() *cobra.Command {
	var kind, chart, timeField, since, until string
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Daily trend aggregation with a PNG chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				ds, err := loadDataset(p)
				if err != nil {
					return nil, err
				}
				series, err := trend.Aggregate(ds, trend.Options{
					Kind:      dataset.Kind(kind),
					Chart:     trend.Chart(chart),
					TimeField: timeField,
					Since:     since,
					Until:     until,
				})
				if err != nil {
					return nil, err
				}
				path, url, err := trend.RenderChart(series, trend.Chart(chart), p.TrendDir())
				if err != nil {
					return nil, err
				}
				return map[string]any{"series": series, "chart_file": path, "chart_url": url}, nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "bug", "record kind: story or bug")
	cmd.Flags().StringVar(&chart, "chart", "count", "chart type: count, priority, or status")
	cmd.Flags().StringVar(&timeField, "time-field", "created", "time field: created, modified, begin, or due")
	cmd.Flags().StringVar(&since, "since", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&until, "until", "", "window end, YYYY-MM-DD")
	return cmd
}

// completer builds the chat client, optionally wrapped with transient-error
// retries when --retry is above 1.
func completer(logger *slog.Logger, retries int) interface {
	Call(ctx context.Context, prompt string, opts llm.Options) (string, error)
} {
	client := llm.NewFromEnv(logger)
	if retries > 1 {
		return llm.WithRetry(client, retries, logger)
	}
	return client
}

func newOverviewCmd() *cobra.Command {
	var since, until string
	var budget, retries int
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "LLM digest of the issues in a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				ds, err := loadDataset(p)
				if err != nil {
					return nil, err
				}
				logger := newLogger()
				counter := tokens.Default(p.ModelsDir(), logger)
				return overview.Generate(ctx, completer(logger, retries), counter, ds, overview.Options{
					Since: since, Until: until, Budget: budget,
				})
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&until, "until", "", "window end, YYYY-MM-DD")
	cmd.Flags().IntVar(&budget, "budget", overview.DefaultBudget, "token window per call")
	cmd.Flags().IntVar(&retries, "retry", 1, "attempts per call for transient failures")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	var cases string
	var window, parallel, retries int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Rubric-based LLM evaluation of spreadsheet test cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context) (any, error) {
				p, err := paths()
				if err != nil {
					return nil, err
				}
				logger := newLogger()
				runner := &evaluate.Runner{
					Client:  completer(logger, retries),
					Counter: tokens.Default(p.ModelsDir(), logger),
					Logger:  logger,
				}
				return runner.Run(ctx, evaluate.Options{
					CasesPath:  cases,
					RubricPath: filepath.Join(p.ConfigDir(), evaluate.RubricFile),
					KBPath:     filepath.Join(p.ConfigDir(), evaluate.KBFile),
					OutDir:     p.DataDir(),
					Window:     window,
					Parallel:   parallel,
				})
			})
		},
	}
	cmd.Flags().StringVar(&cases, "cases", "", "test-case xlsx export or JSON list (required)")
	cmd.Flags().IntVar(&window, "window", evaluate.DefaultWindow, "model context window in tokens")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "concurrent batch slots")
	cmd.Flags().IntVar(&retries, "retry", 1, "attempts per call for transient failures")
	cmd.MarkFlagRequired("cases")
	return cmd
}
