package extract

import (
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"magpie/internal/config"
	"magpie/internal/model"
)

// ErrContainerNotFound 页面上找不到会话容器，可恢复，调用方延迟重试
var ErrContainerNotFound = errors.New("extract: conversation container not found")

// 容器探针，按置信度排列；首个既命中又包含消息迹象的探针胜出
var containerProbes = []string{
	"[data-conversation-id]",
	"main [class*='conversation']",
	"[class*='chat-messages']",
	"[class*='message-list']",
	"[role='log']",
	"main",
	"[class*='chat']",
}

// 消息迹象：容器里至少要有一个像消息的东西
const messageIndicatorSelector = "[data-message-author-role], [class*='message'], [class*='turn'], p"

// 候选枚举策略，从最具体到最宽泛
var candidateStrategies = []string{
	"[data-message-author-role]",
	"[class*='conversation-turn'], [class*='chat-turn']",
	"[data-testid*='message'], [class*='message-content'], [class*='chat-message']",
	"article, li[class*='message'], div[class*='message']",
}

// 内容承载后代，优先于块的全文以避免吞掉嵌套 UI
const contentSelector = "[class*='markdown'], [class*='prose'], [class*='message-text'], [class*='content'] p, p"

// Extractor 遍历 DOM 快照、产出有序去重消息的提取器
// 序列号与去重键都是会话级状态：新 DOM 增长后的再次提取接着计数，
// 已见过的去重键保留最早的序列
type Extractor struct {
	classifier *Classifier
	filter     *NoiseFilter

	nextSeq int64
	seen    map[string]int64 // 去重键 -> 首次出现的序列号

	now func() time.Time
}

// New 创建提取器
func New(cfg config.ExtractConfig) *Extractor {
	return &Extractor{
		classifier: NewClassifier(cfg.ContinuationLen),
		filter:     NewNoiseFilter(cfg),
		seen:       make(map[string]int64),
		now:        time.Now,
	}
}

// Reset 开始新的捕获会话：清空序列计数与已见集合
func (e *Extractor) Reset() {
	e.nextSeq = 0
	e.seen = make(map[string]int64)
}

// SeenCount 本会话已捕获的去重键数量
func (e *Extractor) SeenCount() int {
	return len(e.seen)
}

// FindContainer 运行容器探针
func (e *Extractor) FindContainer(doc *goquery.Document) (*goquery.Selection, bool) {
	for _, probe := range containerProbes {
		sel := doc.Find(probe).First()
		if sel.Length() == 0 {
			continue
		}
		if sel.Find(messageIndicatorSelector).Length() == 0 {
			continue
		}
		return sel, true
	}
	return nil, false
}

// Extract 对当前快照做一次完整提取
// 每次都从头重算：容器定位 -> 候选枚举 -> 逐候选过滤/分类/归一化 ->
// 会话级去重 -> 按序列排序返回。任何候选的失败只跳过该候选
func (e *Extractor) Extract(doc *goquery.Document) []model.Message {
	root, ok := e.FindContainer(doc)
	if !ok {
		// 探针全部落空时退回整个文档
		root = doc.Selection
	}

	candidates := e.enumerate(root)
	if len(candidates) == 0 {
		return nil
	}

	var messages []model.Message
	preceding := model.RoleUnknown

	for i, sel := range candidates {
		rawText := strings.TrimSpace(sel.Text())

		// 结构阶段过滤（廉价检查在前）
		if e.filter.RejectStructural(sel, rawText) {
			continue
		}

		// 角色分类，unknown 整体丢弃而不是乱猜
		role := e.classifier.Classify(Candidate{
			Selection:     sel,
			Text:          rawText,
			PositionIndex: i,
			PrecedingRole: preceding,
		})
		if role == model.RoleUnknown {
			continue
		}

		// 取最内层内容承载后代，避免吞掉块内嵌套的 UI
		text := Normalize(innerText(sel), role)
		if text == "" {
			continue
		}

		// 内容阶段过滤
		if e.filter.RejectContent(text, role) {
			continue
		}

		preceding = role

		msg := model.NewMessage(role, text, e.nextSeq, e.now())
		key := msg.DedupKey()
		if _, dup := e.seen[key]; dup {
			// 同一逻辑消息跨快照重现，保留最早序列的那份
			continue
		}

		e.seen[key] = e.nextSeq
		e.nextSeq++
		messages = append(messages, msg)
	}

	// 候选按 DOM 顺序处理，序列分配天然递增，输出已按序列有序
	return messages
}

// enumerate 按策略枚举候选块，具体策略优先，逐级放宽
func (e *Extractor) enumerate(root *goquery.Selection) []*goquery.Selection {
	for _, strategy := range candidateStrategies {
		found := root.Find(strategy)
		if found.Length() == 0 {
			continue
		}

		var candidates []*goquery.Selection
		found.Each(func(_ int, s *goquery.Selection) {
			candidates = append(candidates, s)
		})
		return candidates
	}

	// 最宽泛的回退：容器的直接块级子节点
	var candidates []*goquery.Selection
	root.ChildrenFiltered("div, section, article").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			candidates = append(candidates, s)
		}
	})
	return candidates
}

// innerText 优先取内容承载后代的文本，没有时退回块全文
func innerText(sel *goquery.Selection) string {
	content := sel.Find(contentSelector)
	if content.Length() == 0 {
		return sel.Text()
	}

	var parts []string
	seen := map[*goquery.Selection]bool{}
	content.Each(func(_ int, s *goquery.Selection) {
		// 跳过嵌套在已收集节点内的重复内容
		for parent := range seen {
			if parent.FindSelection(s).Length() > 0 {
				return
			}
		}
		seen[s] = true
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})

	if len(parts) == 0 {
		return sel.Text()
	}
	return strings.Join(parts, "\n")
}
