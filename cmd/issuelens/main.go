// Package main provides the CLI entry point for issuelens, an analysis
// engine over issue-tracker data.
//
// Each subcommand runs one analytical operation and prints a JSON result
// object with a top-level status field.
//
// # Basic Usage
//
// Pull tracker data and build the semantic index:
//
//	issuelens ingest
//	issuelens index
//
// Query and analyze:
//
//	issuelens search "登录偶发白屏"
//	issuelens keywords --extended
//	issuelens trend --kind bug --chart priority --since 2024-05-01
//	issuelens overview --since 2024-05-01 --until 2024-05-31
//	issuelens evaluate --cases testcases.xlsx
//
// # Environment Variables
//
//   - DS_KEY: DeepSeek API key
//   - DS_EP: chat-completion endpoint override
//   - DS_MODEL: chat model override
//   - SF_KEY: SiliconFlow API key
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/issuelens/issuelens/internal/config"
	"github.com/issuelens/issuelens/internal/oputil"
)

var (
	flagRoot    string
	flagData    string
	flagVerbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "issuelens",
		Short:         "Analysis engine over issue-tracker stories and bugs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: discovered from the working directory)")
	root.PersistentFlags().StringVar(&flagData, "data", "", "dataset file (default: local_data/msg_from_fetcher.json)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newIngestCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newInfoCmd(),
		newKeywordsCmd(),
		newTrendCmd(),
		newOverviewCmd(),
		newEvaluateCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		printResult(oputil.Fail(err))
		os.Exit(1)
	}
}

// newLogger builds the stderr text logger; stdout stays reserved for the
// JSON result.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// paths resolves the project layout from --root or discovery.
func paths() (*config.Paths, error) {
	if flagRoot != "" {
		return config.New(flagRoot)
	}
	return config.Discover()
}

func printResult(r oputil.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		fmt.Fprintln(os.Stderr, "encode result:", err)
	}
}

// run wraps an operation body: failures become the JSON error envelope and a
// nonzero exit, successes print the payload.
func run(cmd *cobra.Command, op func(ctx context.Context) (any, error)) error {
	data, err := op(cmd.Context())
	if err != nil {
		printResult(oputil.Fail(err))
		os.Exit(1)
	}
	printResult(oputil.OK(data))
	return nil
}
