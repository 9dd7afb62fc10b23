// Package trend aggregates issue records into daily counts and renders the
// aggregates as PNG trend charts.
package trend

import (
	"sort"
	"strings"
	"time"

	"github.com/issuelens/issuelens/internal/dataset"
	"github.com/issuelens/issuelens/internal/oputil"
)

// Chart selects what the rendered series show.
type Chart string

const (
	ChartCount    Chart = "count"
	ChartPriority Chart = "priority"
	ChartStatus   Chart = "status"
)

// Options selects and bounds one aggregation run.
type Options struct {
	Kind  dataset.Kind
	Chart Chart
	// TimeField is the record field the date is read from:
	// created (default), modified, begin, or due.
	TimeField string
	// Since and Until bound the run inclusively, format YYYY-MM-DD.
	// Empty means unbounded.
	Since string
	Until string
}

// Day is the aggregate for one calendar date.
type Day struct {
	Date      string         `json:"date"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	New       int            `json:"new"`
	Priority  map[string]int `json:"priority"`
	Statuses  map[string]int `json:"statuses"`
}

// Series is the ordered daily aggregation plus run bookkeeping.
type Series struct {
	Kind    dataset.Kind `json:"kind"`
	Days    []Day        `json:"days"`
	Dropped int          `json:"dropped"`
	Total   int          `json:"total"`
}

var timeFields = map[string]bool{"created": true, "modified": true, "begin": true, "due": true}

// doneTokens mark a status as completed; newTokens as newly opened.
// Matching is case-insensitive substring.
var (
	doneTokens = []string{"closed", "resolved", "done", "完成", "已解决", "已关闭"}
	newTokens  = []string{"new", "open", "创建", "新建"}
)

// Aggregate buckets the records of one kind by day. Records with an empty or
// unparseable time field are dropped and counted, not fatal.
func Aggregate(ds *dataset.Dataset, opts Options) (*Series, error) {
	field := opts.TimeField
	if field == "" {
		field = "created"
	}
	if !timeFields[field] {
		return nil, oputil.New(oputil.KindInputMalformed,
			"unsupported time field %q (want created, modified, begin, or due)", field)
	}
	since, until, err := parseWindow(opts.Since, opts.Until)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*Day)
	series := &Series{Kind: opts.Kind}
	for _, it := range ds.Of(opts.Kind) {
		day, ok := parseDay(it[field])
		if !ok {
			series.Dropped++
			continue
		}
		if (!since.IsZero() && day.Before(since)) || (!until.IsZero() && day.After(until)) {
			continue
		}
		key := day.Format("2006-01-02")
		agg := byDate[key]
		if agg == nil {
			agg = &Day{Date: key, Priority: map[string]int{}, Statuses: map[string]int{}}
			byDate[key] = agg
		}
		agg.Total++
		series.Total++

		status := strings.ToLower(it["status"])
		if status != "" {
			agg.Statuses[status]++
		}
		if containsAny(status, doneTokens) {
			agg.Completed++
		}
		if containsAny(status, newTokens) {
			agg.New++
		}
		if bucket := PriorityBucket(it.Get("priority_label", "priority")); bucket != "" {
			agg.Priority[bucket]++
		}
	}

	for _, agg := range byDate {
		series.Days = append(series.Days, *agg)
	}
	sort.Slice(series.Days, func(a, b int) bool { return series.Days[a].Date < series.Days[b].Date })
	return series, nil
}

// PriorityBucket maps a raw priority value onto high, medium, or low. Values
// outside the lexicons map to "".
func PriorityBucket(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case p == "":
		return ""
	case p == "1" || strings.Contains(p, "high") || strings.Contains(p, "紧急") || strings.Contains(p, "高"):
		return "high"
	case p == "3" || p == "4" || strings.Contains(p, "low") || strings.Contains(p, "低"):
		return "low"
	case p == "2" || strings.Contains(p, "medium") || strings.Contains(p, "中"):
		return "medium"
	default:
		return ""
	}
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// parseDay accepts "YYYY-MM-DD" with an optional " HH:MM:SS" suffix.
func parseDay(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
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
