package evaluate

import (
	"strconv"
	"strings"

	"github.com/issuelens/issuelens/internal/markdown"
)

// ScoreItem is one field row of a case's evaluation table: the field name,
// the original content the model was shown, the score, and the suggestion.
type ScoreItem struct {
	Field      string `json:"field"`
	Content    string `json:"content"`
	Score      int    `json:"score"`
	Suggestion string `json:"suggestion"`
}

// CaseEvaluation is the parsed result for one case. Items is empty when the
// reply carried no usable table for the case; Note then says why.
type CaseEvaluation struct {
	CaseID   string      `json:"case_id"`
	Title    string      `json:"title"`
	Priority string      `json:"priority"`
	Items    []ScoreItem `json:"items"`
	Note     string      `json:"note,omitempty"`
}

// ParseReply extracts per-case evaluations from a model reply. Each case id
// is located in the reply text and paired with the first table that starts
// after it; cases the reply skipped get an empty evaluation with a note.
func ParseReply(reply string, cases []TestCase) []CaseEvaluation {
	lines := strings.Split(reply, "\n")
	tables := markdown.FindTablesInLines(lines)

	// Line number where each case id is mentioned outside a table.
	mention := make(map[string]int, len(cases))
	for i, line := range lines {
		if insideTable(tables, i) {
			continue
		}
		for _, tc := range cases {
			if tc.ID == "" {
				continue
			}
			if _, seen := mention[tc.ID]; !seen && strings.Contains(line, tc.ID) {
				mention[tc.ID] = i
			}
		}
	}

	out := make([]CaseEvaluation, 0, len(cases))
	for _, tc := range cases {
		ev := CaseEvaluation{CaseID: tc.ID, Title: tc.Title, Priority: tc.Priority}
		at, seen := mention[tc.ID]
		if !seen {
			ev.Note = "reply does not mention this case"
			out = append(out, ev)
			continue
		}
		table, found := firstTableAfter(tables, at)
		if !found {
			ev.Note = "no table follows the case heading"
			out = append(out, ev)
			continue
		}
		ev.Items = tableItems(table)
		if len(ev.Items) == 0 {
			ev.Note = "table has no score column"
		}
		out = append(out, ev)
	}
	return out
}

func insideTable(tables []markdown.Table, line int) bool {
	for _, t := range tables {
		if line >= t.StartLine && line < t.EndLine {
			return true
		}
	}
	return false
}

func firstTableAfter(tables []markdown.Table, line int) (markdown.Table, bool) {
	for _, t := range tables {
		if t.StartLine > line {
			return t, true
		}
	}
	return markdown.Table{}, false
}

func tableItems(t markdown.Table) []ScoreItem {
	scoreCol := t.Column("评分")
	suggestCol := t.Column("建议")
	contentCol := t.Column("内容")
	fieldCol := t.Column("字段")
	if fieldCol < 0 {
		fieldCol = 0
	}
	if scoreCol < 0 {
		return nil
	}
	var items []ScoreItem
	for _, row := range t.Rows {
		item := ScoreItem{Field: row[fieldCol], Score: -1}
		if contentCol >= 0 && contentCol != fieldCol {
			item.Content = row[contentCol]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(row[scoreCol])); err == nil && n >= 0 && n <= 10 {
			item.Score = n
		}
		if suggestCol >= 0 {
			item.Suggestion = row[suggestCol]
		}
		items = append(items, item)
	}
	return items
}
