package keywords

// stopTerms are function words dropped from frequency counts. Domain terms
// stay in even when very common; only grammatical glue is listed here.
var stopTerms = map[string]bool{
	"的": true, "了": true, "是": true, "在": true, "和": true,
	"与": true, "及": true, "或": true, "对": true, "将": true,
	"为": true, "中": true, "有": true, "并": true, "请": true,
	"可以": true, "我们": true, "你们": true, "他们": true,
	"这个": true, "那个": true, "如果": true, "因为": true,
	"所以": true, "已经": true, "进行": true, "一个": true,
	"the": true, "a": true, "an": true, "of": true, "to": true,
	"and": true, "or": true, "in": true, "on": true, "for": true,
	"with": true, "is": true, "are": true, "be": true, "by": true,
	"at": true, "this": true, "that": true, "it": true, "as": true,
}

// categoryLexicons groups indicative terms per analysis category. A counted
// term lands in a category when the lexicon contains it.
var categoryLexicons = map[string][]string{
	"defect": {
		"崩溃", "闪退", "卡顿", "报错", "异常", "失败", "错误",
		"缺陷", "白屏", "死机", "丢失", "bug", "crash", "error",
	},
	"requirement": {
		"需求", "功能", "支持", "优化", "新增", "改进", "体验",
		"方案", "设计", "feature",
	},
	"tech": {
		"接口", "数据库", "缓存", "性能", "服务", "前端", "后端",
		"网络", "日志", "配置", "部署", "api", "sql",
	},
	"role": {
		"用户", "管理员", "开发", "测试", "产品", "运营", "客户",
	},
	"process": {
		"评审", "上线", "发布", "迭代", "验收", "回归", "提测",
		"排期", "联调",
	},
	"status": {
		"完成", "关闭", "进行中", "待处理", "已解决", "拒绝",
		"挂起", "重新打开",
	},
}

// coreFields are the record fields mined by default; extendedFields are
// added when the caller asks for the wider sweep. Name and title are the
// same slot under the two record shapes.
var (
	coreFields     = []string{"name", "title", "description", "test_focus", "label"}
	extendedFields = []string{"acceptance", "comment", "status", "priority", "iteration_id"}
)

// frequencyBins fix the distribution bucket order, highest first.
var frequencyBins = []struct {
	Label string
	Lo    int
	Hi    int
}{
	{"100+", 100, 1 << 30},
	{"50-99", 50, 99},
	{"20-49", 20, 49},
	{"10-19", 10, 19},
	{"5-9", 5, 9},
	{"1-4", 1, 4},
}
