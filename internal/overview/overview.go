// Package overview produces a token-budgeted LLM digest of the issues in a
// time window, splitting into per-group summaries when everything does not
// fit in one call.
package overview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/issuelens/issuelens/internal/dataset"
	"github.com/issuelens/issuelens/internal/llm"
	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/tokens"
)

// DefaultBudget is the per-call token window used when none is given.
const DefaultBudget = 12000

// Completer is the single LLM call the generator needs; satisfied by
// *llm.Client.
type Completer interface {
	Call(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Options bounds one overview run.
type Options struct {
	// Since and Until filter records by creation date, inclusive,
	// format YYYY-MM-DD. Empty means unbounded.
	Since string
	Until string
	// Budget is the token window per call (default 12000).
	Budget int
}

// Overview is the generated digest plus run bookkeeping.
type Overview struct {
	Digest            string `json:"digest"`
	StoriesConsidered int    `json:"stories_considered"`
	BugsConsidered    int    `json:"bugs_considered"`
	Groups            int    `json:"groups"`
	Truncated         bool   `json:"truncated"`
}

const digestPrompt = `你是一名项目分析助手。以下是一段时间内的需求和缺陷记录,每行一条。
请给出一份简明的整体概览:主要的工作方向、突出的问题、值得关注的风险。
使用中文,分段落组织,不要逐条复述。

%s`

const mergePrompt = `以下是同一时间段内多批记录的分段摘要。请把它们合并成一份连贯的整体概览,
去掉重复内容,保留每段中的关键事实。使用中文。

%s`

// Generate filters the dataset to the window and produces the digest. When
// the serialized records exceed the per-call budget, each fitting group is
// summarized separately and the partial summaries are merged with one final
// call.
func Generate(ctx context.Context, client Completer, counter *tokens.Counter, ds *dataset.Dataset, opts Options) (*Overview, error) {
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}

	texts, stories, bugs, err := windowTexts(ds, opts.Since, opts.Until)
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, oputil.New(oputil.KindInputMissing, "no records in the requested window").
			WithSuggestion("widen --since/--until or check the dataset")
	}

	overhead := counter.Count(fmt.Sprintf(digestPrompt, ""))
	responseReserve := budget / 4
	threshold := budget - overhead - responseReserve
	if threshold < 1 {
		return nil, oputil.New(oputil.KindInputMalformed, "budget %d leaves no room for records", budget)
	}

	out := &Overview{StoriesConsidered: stories, BugsConsidered: bugs}

	total := 0
	for _, t := range texts {
		total += counter.Count(t)
	}
	if total <= threshold {
		digest, err := ask(ctx, client, fmt.Sprintf(digestPrompt, strings.Join(texts, "\n")))
		if err != nil {
			return nil, err
		}
		out.Digest = digest
		out.Groups = 1
		return out, nil
	}

	groups := tokens.SplitByBudget(texts, counter.Count, threshold, 0)
	out.Groups = len(groups)
	partials := make([]string, 0, len(groups))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, oputil.Wrap(err, oputil.KindCancelled, "overview aborted")
		}
		body := strings.Join(group, "\n")
		if counter.Count(body) > threshold {
			body = truncateToBudget(counter, body, threshold)
			out.Truncated = true
		}
		partial, err := ask(ctx, client, fmt.Sprintf(digestPrompt, body))
		if err != nil {
			return nil, err
		}
		partials = append(partials, partial)
	}

	digest, err := ask(ctx, client, fmt.Sprintf(mergePrompt, strings.Join(partials, "\n---\n")))
	if err != nil {
		return nil, err
	}
	out.Digest = digest
	return out, nil
}

func ask(ctx context.Context, client Completer, prompt string) (string, error) {
	text, err := client.Call(ctx, prompt, llm.Options{})
	if err != nil {
		kind := oputil.KindAPIPermanent
		var le *llm.Error
		if errors.As(err, &le) && le.Transient() {
			kind = oputil.KindAPITransient
		}
		return "", oputil.Wrap(err, kind, "overview call failed")
	}
	return strings.TrimSpace(text), nil
}

// windowTexts serializes the records created inside [since, until].
func windowTexts(ds *dataset.Dataset, since, until string) (texts []string, stories, bugs int, err error) {
	lo, hi, err := parseWindow(since, until)
	if err != nil {
		return nil, 0, 0, err
	}
	keep := func(it dataset.Issue) bool {
		day, ok := parseDay(it["created"])
		if !ok {
			return lo.IsZero() && hi.IsZero()
		}
		return (lo.IsZero() || !day.Before(lo)) && (hi.IsZero() || !day.After(hi))
	}
	for _, it := range ds.Stories {
		if keep(it) {
			texts = append(texts, dataset.Text(dataset.KindStory, it))
			stories++
		}
	}
	for _, it := range ds.Bugs {
		if keep(it) {
			texts = append(texts, dataset.Text(dataset.KindBug, it))
			bugs++
		}
	}
	return texts, stories, bugs, nil
}

func parseDay(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}

func parseWindow(since, until string) (time.Time, time.Time, error) {
	var lo, hi time.Time
	var err error
	if since != "" {
		if lo, err = time.Parse("2006-01-02", since); err != nil {
			return lo, hi, oputil.Wrap(err, oputil.KindInputMalformed, "since %q", since)
		}
	}
	if until != "" {
		if hi, err = time.Parse("2006-01-02", until); err != nil {
			return lo, hi, oputil.Wrap(err, oputil.KindInputMalformed, "until %q", until)
		}
	}
	if !lo.IsZero() && !hi.IsZero() && hi.Before(lo) {
		return lo, hi, oputil.New(oputil.KindInputMalformed, "until %s is before since %s", until, since)
	}
	return lo, hi, nil
}

// truncateToBudget trims text on rune boundaries until it fits the budget.
func truncateToBudget(counter *tokens.Counter, text string, budget int) string {
	runes := []rune(text)
	for counter.Count(string(runes)) > budget && len(runes) > 0 {
		runes = runes[:len(runes)*9/10]
	}
	return string(runes)
}
