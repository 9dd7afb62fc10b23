package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/issuelens/issuelens/internal/llm"
	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
	"github.com/issuelens/issuelens/internal/tokens"
)

func TestLoadRubricDefaults(t *testing.T) {
	r, err := LoadRubric(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadRubric() error: %v", err)
	}
	if r.TitleMaxLength != 40 || r.MaxSteps != 10 {
		t.Errorf("defaults = %+v", r)
	}
	band, ok := r.PriorityRatios["P1"]
	if !ok || band.Min != 60 || band.Max != 70 {
		t.Errorf("P1 band = %+v", band)
	}
}

func TestLoadRubricOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test_case_rules.json")
	if err := os.WriteFile(path, []byte(`{"title_max_length": 60}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRubric(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.TitleMaxLength != 60 {
		t.Errorf("TitleMaxLength = %d, want 60", r.TitleMaxLength)
	}
	if r.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want default 10", r.MaxSteps)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"max_steps": -1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRubric(bad); err == nil {
		t.Error("expected validation error for negative max_steps")
	}
}

func TestLoadRubricVersionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_case_rules.json")
	body := `{"version": "2.1", "last_updated": "2025-07-01", "title_max_length": 50}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRubric(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Version != "2.1" || r.LastUpdated != "2025-07-01" {
		t.Errorf("version = %q, last_updated = %q", r.Version, r.LastUpdated)
	}
}

func TestLoadKBRequirementList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "require_list_config.json")
	body := `{"requirements": [
		{"id": "1001", "title": "登录支持验证码", "description": "短信验证码登录",
		 "priority": "High", "local_created_time": "2025-06-01 10:00:00"},
		{"id": "1002", "title": "找回密码"}
	]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	kb, err := LoadKB(path)
	if err != nil {
		t.Fatalf("LoadKB() error: %v", err)
	}
	if len(kb.Requirements) != 2 {
		t.Fatalf("requirements = %d, want 2", len(kb.Requirements))
	}
	if kb.Requirements[0].ID != "1001" || kb.Requirements[0].Priority != "High" {
		t.Errorf("first requirement = %+v", kb.Requirements[0])
	}
	rendered := kb.Render()
	if !strings.Contains(rendered, "[1001] 登录支持验证码") ||
		!strings.Contains(rendered, "短信验证码登录") {
		t.Errorf("Render() = %q", rendered)
	}

	missing, err := LoadKB(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if missing.Render() != "(无)" {
		t.Errorf("empty KB renders %q", missing.Render())
	}
}

func TestComputeBudget(t *testing.T) {
	b, err := ComputeBudget(12000, 0)
	if err != nil {
		t.Fatal(err)
	}
	// 25% outer slack leaves 9000; request 2250, response 4500.
	if b.Request != 2250 || b.Response != 4500 {
		t.Errorf("budget = %+v", b)
	}
	if b.Threshold != 2250*3/4 {
		t.Errorf("Threshold = %d, want %d", b.Threshold, 2250*3/4)
	}

	b2, err := ComputeBudget(12000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if b2.Threshold != (2250-1000)*3/4 {
		t.Errorf("static not subtracted: %+v", b2)
	}

	if _, err := ComputeBudget(100, 5000); err == nil {
		t.Error("expected error when the template eats the whole window")
	}
}

func sampleCases(n int) []TestCase {
	cases := make([]TestCase, n)
	for i := range cases {
		priority := "P1"
		switch {
		case i%10 < 2:
			priority = "P0"
		case i%10 >= 8:
			priority = "P2"
		}
		cases[i] = TestCase{
			ID:       fmt.Sprintf("TC-%03d", i),
			Title:    fmt.Sprintf("登录用例 %d", i),
			Steps:    "1. 打开页面\n2. 输入账号",
			Expected: "登录成功",
			Priority: priority,
		}
	}
	return cases
}

func replyFor(cases []TestCase) string {
	var sb strings.Builder
	for _, tc := range cases {
		fmt.Fprintf(&sb, "### 用例ID: %s\n", tc.ID)
		sb.WriteString("| 字段 | 内容 | 评分(0-10) | 建议 |\n|---|---|---|---|\n")
		fmt.Fprintf(&sb, "| 用例标题 | %s | 8 | ok |\n", tc.Title)
		fmt.Fprintf(&sb, "| 前置条件 | %s | 6 | 补充环境 |\n", tc.Precondition)
		sb.WriteString("| 步骤描述 | 打开页面并输入账号 | 7 | 细化 |\n")
		fmt.Fprintf(&sb, "| 预期结果 | %s | 9 | ok |\n\n", tc.Expected)
	}
	return sb.String()
}

func TestParseReply(t *testing.T) {
	cases := sampleCases(2)
	evals := ParseReply(replyFor(cases), cases)
	if len(evals) != 2 {
		t.Fatalf("got %d evaluations, want 2", len(evals))
	}
	for _, ev := range evals {
		if len(ev.Items) != 4 {
			t.Errorf("case %s items = %d, want 4", ev.CaseID, len(ev.Items))
		}
	}
	first := evals[0].Items[0]
	if first.Field != "用例标题" || first.Score != 8 {
		t.Errorf("item 0 = %+v", first)
	}
	if first.Content != cases[0].Title {
		t.Errorf("item 0 content = %q, want the original title %q", first.Content, cases[0].Title)
	}
	if evals[0].Items[1].Suggestion != "补充环境" {
		t.Errorf("item 1 suggestion = %q", evals[0].Items[1].Suggestion)
	}
}

func TestParseReplyWithoutFieldColumn(t *testing.T) {
	// Replies that collapse the field name into the content column still
	// parse, just without captured content.
	cases := []TestCase{{ID: "TC-001", Title: "登录"}}
	reply := "### 用例ID: TC-001\n| 内容 | 评分(0-10) | 建议 |\n|---|---|---|\n| 用例标题 | 8 | ok |\n"
	evals := ParseReply(reply, cases)
	if len(evals) != 1 || len(evals[0].Items) != 1 {
		t.Fatalf("evals = %+v", evals)
	}
	item := evals[0].Items[0]
	if item.Field != "用例标题" || item.Score != 8 || item.Content != "" {
		t.Errorf("item = %+v", item)
	}
}

func TestParseReplySkippedCase(t *testing.T) {
	cases := sampleCases(3)
	// Reply covers only the first two cases.
	evals := ParseReply(replyFor(cases[:2]), cases)
	if len(evals) != 3 {
		t.Fatalf("got %d evaluations, want 3", len(evals))
	}
	last := evals[2]
	if len(last.Items) != 0 || last.Note == "" {
		t.Errorf("skipped case = %+v, want empty items with a note", last)
	}
}

func TestParseReplyGarbage(t *testing.T) {
	cases := sampleCases(1)
	evals := ParseReply("抱歉,我无法完成这个任务。", cases)
	if len(evals) != 1 || len(evals[0].Items) != 0 || evals[0].Note == "" {
		t.Errorf("evals = %+v", evals)
	}
}

func TestAnalyzePriorities(t *testing.T) {
	// 2 P0, 6 P1, 2 P2 -> 20% / 60% / 20%, all inside the default bands.
	var cases []TestCase
	for i, p := range []string{"P0", "P0", "P1", "P1", "P1", "P1", "P1", "P1", "P2", "P2"} {
		cases = append(cases, TestCase{ID: fmt.Sprintf("TC-%d", i), Priority: p})
	}
	a := AnalyzePriorities(cases, DefaultRubric())
	if !a.Verdict {
		t.Errorf("Verdict = false, analysis = %+v", a)
	}
	if a.Distribution["P1"] != 60 {
		t.Errorf("P1 share = %v, want 60", a.Distribution["P1"])
	}

	// All P2 violates every band.
	all2 := []TestCase{{ID: "a", Priority: "p2"}, {ID: "b", Priority: "P2"}}
	a2 := AnalyzePriorities(all2, DefaultRubric())
	if a2.Verdict {
		t.Error("expected verdict=false for all-P2 set")
	}
	if a2.Counts["P2"] != 2 {
		t.Errorf("case-insensitive labels not merged: %v", a2.Counts)
	}
}

type batchCompleter struct {
	calls int
	fail  map[int]error
}

func (b *batchCompleter) Call(_ context.Context, prompt string, _ llm.Options) (string, error) {
	b.calls++
	if err := b.fail[b.calls]; err != nil {
		return "", err
	}
	var cases []TestCase
	if start := strings.Index(prompt, "["); start >= 0 {
		// The prompt ends with the JSON case array.
		if err := json.Unmarshal([]byte(prompt[start:]), &cases); err != nil {
			return "", fmt.Errorf("test completer: %w", err)
		}
	}
	return replyFor(cases), nil
}

func writeCases(t *testing.T, dir string, cases []TestCase) string {
	t.Helper()
	path := filepath.Join(dir, "cases.json")
	if err := storage.SaveJSON(path, cases); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSingleBatch(t *testing.T) {
	dir := t.TempDir()
	completer := &batchCompleter{}
	runner := &Runner{Client: completer, Counter: &tokens.Counter{}, Pause: time.Nanosecond}

	out, err := runner.Run(context.Background(), Options{
		CasesPath: writeCases(t, dir, sampleCases(3)),
		OutDir:    dir,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if completer.calls != 1 {
		t.Errorf("made %d calls, want 1", completer.calls)
	}
	if out.Total != 3 || len(out.Evaluations) != 3 {
		t.Errorf("total = %d, evaluations = %d", out.Total, len(out.Evaluations))
	}
	if out.Batches[0].State != BatchParsed {
		t.Errorf("batch state = %q", out.Batches[0].State)
	}
	if !strings.Contains(filepath.Base(out.OutputPath), "Proceed_TestCase_") {
		t.Errorf("output path = %q", out.OutputPath)
	}
	var reload RunResult
	if ok, err := storage.LoadJSON(out.OutputPath, &reload); err != nil || !ok {
		t.Fatalf("output file unreadable: %v", err)
	}
	if reload.RunID != out.RunID || len(reload.Evaluations) != 3 {
		t.Error("persisted result does not match returned result")
	}
}

func TestRunSplitsBatchesAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	completer := &batchCompleter{}
	runner := &Runner{Client: completer, Counter: &tokens.Counter{}, Pause: time.Nanosecond}

	out, err := runner.Run(context.Background(), Options{
		CasesPath: writeCases(t, dir, sampleCases(60)),
		OutDir:    dir,
		Window:    2500,
		Parallel:  3,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(out.Batches) < 2 {
		t.Fatalf("batches = %d, want a split", len(out.Batches))
	}
	if completer.calls != len(out.Batches) {
		t.Errorf("calls = %d, batches = %d", completer.calls, len(out.Batches))
	}
	if len(out.Evaluations) != 60 {
		t.Fatalf("evaluations = %d, want 60", len(out.Evaluations))
	}
	for i, ev := range out.Evaluations {
		if want := fmt.Sprintf("TC-%03d", i); ev.CaseID != want {
			t.Fatalf("evaluation %d = %q, want %q (input order must survive)", i, ev.CaseID, want)
		}
	}
}

func TestRunContinuesPastFailedBatch(t *testing.T) {
	dir := t.TempDir()
	completer := &batchCompleter{fail: map[int]error{
		1: &llm.Error{Kind: llm.ErrServer, Provider: llm.ProviderDeepSeek, Status: 500, Message: "boom"},
	}}
	runner := &Runner{Client: completer, Counter: &tokens.Counter{}, Pause: time.Nanosecond}

	out, err := runner.Run(context.Background(), Options{
		CasesPath: writeCases(t, dir, sampleCases(60)),
		OutDir:    dir,
		Window:    2500,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out.Batches[0].State != BatchAPIError {
		t.Errorf("batch 0 state = %q, want api_error", out.Batches[0].State)
	}
	if len(out.Evaluations) != 60 {
		t.Errorf("evaluations = %d, want every case represented", len(out.Evaluations))
	}
	sawNote := false
	for _, ev := range out.Evaluations {
		if ev.Note == "api call failed" {
			sawNote = true
			break
		}
	}
	if !sawNote {
		t.Error("failed batch cases carry no note")
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &Runner{Client: &batchCompleter{}, Counter: &tokens.Counter{}, Pause: time.Nanosecond}

	_, err := runner.Run(ctx, Options{
		CasesPath: writeCases(t, dir, sampleCases(10)),
		OutDir:    dir,
	})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if got := oputil.KindOf(err); got != oputil.KindCancelled {
		t.Errorf("kind = %q, want %q", got, oputil.KindCancelled)
	}
}
