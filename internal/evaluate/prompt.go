package evaluate

import (
	"encoding/json"
	"fmt"
)

// promptTemplate instructs the model to return one markdown table per case,
// headed by the case id, with fixed aspect rows and score/suggestion columns.
const promptTemplate = `你是一名资深测试专家,请依据以下评审规则和需求知识库,逐条评审测试用例。

评审规则:
- 用例标题不超过 %d 个字符
- 步骤数不超过 %d 步
- 评分范围 0-10,10 为最佳

需求知识库:
%s

对每条用例,先输出一行 "### 用例ID: <id>",然后输出一个 Markdown 表格,
表头为 | 字段 | 内容 | 评分(0-10) | 建议 |,行依次为 用例标题、前置条件、步骤描述、预期结果;
内容列填写该字段在用例中的原文。不要输出其它内容。

待评审用例(JSON):
%s`

// BuildPrompt renders the evaluation prompt for one batch of cases.
func BuildPrompt(r *Rubric, kb KB, cases []TestCase) (string, error) {
	body := ""
	if len(cases) > 0 {
		encoded, err := json.MarshalIndent(cases, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode cases: %w", err)
		}
		body = string(encoded)
	}
	return fmt.Sprintf(promptTemplate, r.TitleMaxLength, r.MaxSteps, kb.Render(), body), nil
}

// StaticPrompt is the template with no cases, used to measure the fixed
// token cost every batch pays.
func StaticPrompt(r *Rubric, kb KB) string {
	p, _ := BuildPrompt(r, kb, nil)
	return p
}

// CaseCost serializes one case the way BuildPrompt will and returns the
// text handed to the token counter.
func CaseCost(tc TestCase) string {
	encoded, err := json.MarshalIndent([]TestCase{tc}, "", "  ")
	if err != nil {
		return tc.Title + tc.Steps + tc.Expected
	}
	return string(encoded)
}
