package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"magpie/internal/model"
)

// 页面显式标注作者身份的属性，这是唯一完全可靠的信号
var authorAttrs = []string{"data-message-author-role", "data-author-role", "data-author", "data-role"}

// 词法模式族：每族一条正则，按族计分
// 页面标记漂移时词法与位置回退保证分类仍能推进
var userPatternFamilies = []*regexp.Regexp{
	regexp.MustCompile(`\?\s*$`),
	regexp.MustCompile(`(?i)^(what|how|why|when|where|who|which|can|could|would|should|does|do|is|are)\b.*\?`),
	regexp.MustCompile(`(?i)^(please|can you|could you|would you|help me|i need|i want|i'm trying)\b`),
	regexp.MustCompile(`(?i)^(write|make|create|generate|build|fix|explain|show me|give me|translate|summarize)\b`),
	regexp.MustCompile(`(?i)^(hi|hello|hey|thanks|thank you|ok then|yes but|no,)\b`),
}

var assistantPatternFamilies = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(sure|certainly|of course|absolutely|great question|good question)\b`),
	regexp.MustCompile(`(?i)^(here('s| is| are)|to do (this|that)|you can|you could|you'll want to|the (best|easiest) way)\b`),
	regexp.MustCompile(`(?i)^(i can help|i'd be happy|i'll|let me|as an ai)\b`),
	regexp.MustCompile(`(?i)\b(in summary|to summarize|in conclusion|overall|in short)\b`),
	regexp.MustCompile(`(?i)\b(let me know|feel free|hope (this|that) helps|if you have any (other )?questions)\b`),
	regexp.MustCompile("```|^\\s*\\d+\\.\\s.+\\n\\s*\\d+\\.\\s"),
}

// Candidate 一个待分类的候选消息块
type Candidate struct {
	Selection     *goquery.Selection // 所在 DOM 节点
	Text          string             // 原始文本
	PositionIndex int                // 遇到顺序（容器内第几个候选）
	PrecedingRole model.Role         // 前一个已分类块的角色
}

// Classifier 角色分类器，四级级联，先命中先赢
type Classifier struct {
	continuationLen int
}

// NewClassifier 创建分类器
func NewClassifier(continuationLen int) *Classifier {
	if continuationLen <= 0 {
		continuationLen = 100
	}
	return &Classifier{continuationLen: continuationLen}
}

// Classify 对候选块分类，返回 unknown 时调用方应整体丢弃该候选
func (c *Classifier) Classify(cand Candidate) model.Role {
	// 1. 显式 DOM 属性，无条件信任
	if role := explicitRole(cand.Selection); role != model.RoleUnknown {
		return role
	}

	// 2. 结构提示：代码/富格式后代意味着助手，输入控件后代意味着用户
	if cand.Selection != nil {
		if cand.Selection.Find("pre, code, table, [class*='markdown'], [class*='prose']").Length() > 0 {
			return model.RoleAssistant
		}
		if cand.Selection.Find("textarea, input, [contenteditable='true']").Length() > 0 {
			return model.RoleUser
		}
	}

	// 3. 词法模式：按命中的模式族数量计分，分高者胜，平局落入位置回退
	userScore := scoreFamilies(userPatternFamilies, cand.Text)
	assistantScore := scoreFamilies(assistantPatternFamilies, cand.Text)
	if userScore > assistantScore {
		return model.RoleUser
	}
	if assistantScore > userScore {
		return model.RoleAssistant
	}

	// 4. 位置回退：从 user 开始严格交替；
	// 前块是助手且当前块短又无问号时视为助手的续写
	if cand.PrecedingRole == model.RoleAssistant &&
		len([]rune(cand.Text)) < c.continuationLen &&
		!strings.Contains(cand.Text, "?") {
		return model.RoleAssistant
	}
	if cand.PositionIndex%2 == 0 {
		return model.RoleUser
	}
	return model.RoleAssistant
}

func explicitRole(sel *goquery.Selection) model.Role {
	if sel == nil {
		return model.RoleUnknown
	}

	for _, attr := range authorAttrs {
		if v, ok := sel.Attr(attr); ok {
			if role := parseRole(v); role != model.RoleUnknown {
				return role
			}
		}
		if child := sel.Find("[" + attr + "]").First(); child.Length() > 0 {
			if v, ok := child.Attr(attr); ok {
				if role := parseRole(v); role != model.RoleUnknown {
					return role
				}
			}
		}
	}
	return model.RoleUnknown
}

func parseRole(v string) model.Role {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "user", "human":
		return model.RoleUser
	case "assistant", "bot", "ai", "model":
		return model.RoleAssistant
	default:
		return model.RoleUnknown
	}
}

func scoreFamilies(families []*regexp.Regexp, text string) int {
	score := 0
	for _, f := range families {
		if f.MatchString(text) {
			score++
		}
	}
	return score
}
