package evaluate

import (
	"path/filepath"
	"strings"

	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
)

// TestCase is one spreadsheet row after column remapping.
type TestCase struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Precondition string `json:"precondition"`
	Steps        string `json:"steps"`
	Expected     string `json:"expected"`
	Priority     string `json:"priority"`
}

// sheetColumns maps the spreadsheet headers onto TestCase fields.
var sheetColumns = map[string]string{
	"用例ID":  "id",
	"用例标题": "title",
	"前置条件": "precondition",
	"步骤描述": "steps",
	"预期结果": "expected",
	"等级":    "priority",
}

// LoadCases reads test cases from an xlsx export or a JSON list, picked by
// file extension.
func LoadCases(path string) ([]TestCase, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadCasesJSON(path)
	}
	rows, err := storage.ReadSheet(path, sheetColumns)
	if err != nil {
		return nil, err
	}
	cases := make([]TestCase, 0, len(rows))
	for _, row := range rows {
		cases = append(cases, TestCase{
			ID:           row["id"],
			Title:        row["title"],
			Precondition: row["precondition"],
			Steps:        row["steps"],
			Expected:     row["expected"],
			Priority:     row["priority"],
		})
	}
	if len(cases) == 0 {
		return nil, oputil.New(oputil.KindInputMissing, "no test cases in %s", path).
			WithSuggestion("check the sheet headers: 用例ID, 用例标题, 前置条件, 步骤描述, 预期结果, 等级")
	}
	return cases, nil
}

func loadCasesJSON(path string) ([]TestCase, error) {
	var cases []TestCase
	ok, err := storage.LoadJSON(path, &cases)
	if err != nil {
		return nil, err
	}
	if !ok || len(cases) == 0 {
		return nil, oputil.New(oputil.KindInputMissing, "no test cases in %s", path)
	}
	return cases, nil
}
