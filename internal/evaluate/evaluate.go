package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/issuelens/issuelens/internal/llm"
	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
	"github.com/issuelens/issuelens/internal/tokens"
)

// Completer is the single LLM call the runner needs; satisfied by
// *llm.Client.
type Completer interface {
	Call(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// BatchState tracks one batch through the run.
type BatchState string

const (
	BatchPending    BatchState = "pending"
	BatchInFlight   BatchState = "in_flight"
	BatchParsed     BatchState = "parsed"
	BatchParseError BatchState = "parse_error"
	BatchAPIError   BatchState = "api_error"
)

// BatchResult is the outcome of one batch. A failed batch keeps its cases as
// empty evaluations so the output still covers every input case.
type BatchResult struct {
	Index       int              `json:"index"`
	State       BatchState       `json:"state"`
	CaseCount   int              `json:"case_count"`
	Error       string           `json:"error,omitempty"`
	Evaluations []CaseEvaluation `json:"evaluations"`
}

// RunResult is the full evaluation output, also written to the output file.
type RunResult struct {
	RunID       string           `json:"run_id"`
	StartTime   string           `json:"start_time"`
	EndTime     string           `json:"end_time"`
	Total       int              `json:"total"`
	Budget      Budget           `json:"budget"`
	Batches     []BatchResult    `json:"batches"`
	Evaluations []CaseEvaluation `json:"evaluations"`
	Priority    PriorityAnalysis `json:"priority_analysis"`
	Rubric      *Rubric          `json:"rubric"`
	OutputPath  string           `json:"output_path"`
}

// Options configures one run.
type Options struct {
	// CasesPath is the xlsx export or JSON list of test cases.
	CasesPath string
	// RubricPath and KBPath default under the config directory.
	RubricPath string
	KBPath     string
	// OutDir receives the Proceed_TestCase_<timestamp>.json output.
	OutDir string
	// Window is the model context window (default 12000).
	Window int
	// Parallel is the number of concurrent batch slots (default 1).
	Parallel int
}

// Runner evaluates test cases in budgeted batches.
type Runner struct {
	Client  Completer
	Counter *tokens.Counter
	Logger  *slog.Logger
	// Pause separates consecutive calls on one slot (default 1s).
	Pause time.Duration
}

// Run loads the inputs, batches the cases under the token budget, sends one
// call per batch, and writes the assembled result file. Per-batch call or
// parse failures are recorded and the run continues; only cancellation
// aborts it.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunResult, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pause := r.Pause
	if pause == 0 {
		pause = time.Second
	}

	cases, err := LoadCases(opts.CasesPath)
	if err != nil {
		return nil, err
	}
	rubric, err := LoadRubric(opts.RubricPath)
	if err != nil {
		return nil, err
	}
	kb, err := LoadKB(opts.KBPath)
	if err != nil {
		return nil, err
	}

	static := r.Counter.Count(StaticPrompt(rubric, kb))
	budget, err := ComputeBudget(opts.Window, static)
	if err != nil {
		return nil, err
	}

	batches := tokens.SplitByBudget(cases, func(tc TestCase) int {
		return r.Counter.Count(CaseCost(tc))
	}, budget.Threshold, 0)
	logger.Info("evaluation batched",
		"cases", len(cases), "batches", len(batches), "threshold", budget.Threshold)

	out := &RunResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now().UTC().Format(time.RFC3339),
		Total:     len(cases),
		Budget:    budget,
		Rubric:    rubric,
		Batches:   make([]BatchResult, len(batches)),
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(parallel)
	for i, batch := range batches {
		i, batch := i, batch
		out.Batches[i] = BatchResult{Index: i, State: BatchPending, CaseCount: len(batch)}
		group.Go(func() error {
			res := r.runBatch(gctx, rubric, kb, batch, i, logger)
			if i < len(batches)-1 {
				select {
				case <-gctx.Done():
				case <-time.After(pause):
				}
			}
			out.Batches[i] = res
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, oputil.Wrap(err, oputil.KindCancelled, "evaluation aborted")
	}

	for _, batch := range out.Batches {
		out.Evaluations = append(out.Evaluations, batch.Evaluations...)
	}
	out.Priority = AnalyzePriorities(cases, rubric)
	out.EndTime = time.Now().UTC().Format(time.RFC3339)

	out.OutputPath = filepath.Join(opts.OutDir,
		fmt.Sprintf("Proceed_TestCase_%s.json", time.Now().Format("20060102_150405")))
	if err := storage.SaveJSON(out.OutputPath, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) runBatch(ctx context.Context, rubric *Rubric, kb KB, batch []TestCase, index int, logger *slog.Logger) BatchResult {
	res := BatchResult{Index: index, State: BatchInFlight, CaseCount: len(batch)}

	prompt, err := BuildPrompt(rubric, kb, batch)
	if err != nil {
		res.State = BatchAPIError
		res.Error = err.Error()
		res.Evaluations = emptyEvaluations(batch, "prompt build failed")
		return res
	}

	reply, err := r.Client.Call(ctx, prompt, llm.Options{})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			res.State = BatchPending
			return res
		}
		logger.Warn("batch call failed", "batch", index, "error", err)
		res.State = BatchAPIError
		res.Error = err.Error()
		res.Evaluations = emptyEvaluations(batch, "api call failed")
		return res
	}

	res.Evaluations = ParseReply(reply, batch)
	res.State = BatchParsed
	for _, ev := range res.Evaluations {
		if len(ev.Items) == 0 {
			res.State = BatchParseError
			res.Error = "reply missing tables for some cases"
			break
		}
	}
	return res
}

func emptyEvaluations(batch []TestCase, note string) []CaseEvaluation {
	out := make([]CaseEvaluation, 0, len(batch))
	for _, tc := range batch {
		out = append(out, CaseEvaluation{CaseID: tc.ID, Title: tc.Title, Priority: tc.Priority, Note: note})
	}
	return out
}
