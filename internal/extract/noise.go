package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"magpie/internal/config"
	"magpie/internal/model"
)

// 精确匹配的 UI 标签（大小写不敏感），命中即拒绝
var uiLabels = map[string]struct{}{
	"copy":             {},
	"copied":           {},
	"share":            {},
	"retry":            {},
	"regenerate":       {},
	"edit":             {},
	"delete":           {},
	"send":             {},
	"stop":             {},
	"new chat":         {},
	"like":             {},
	"dislike":          {},
	"good response":    {},
	"bad response":     {},
	"read aloud":       {},
	"menu":             {},
	"settings":         {},
	"search":           {},
	"log in":           {},
	"sign up":          {},
	"upgrade":          {},
	"scroll to bottom": {},
	"skip to content":  {},
}

// 交互控件选择器：自身或祖先命中则视为 UI 而非内容块
const interactiveSelector = "button, a, input, textarea, select, nav, menu, " +
	"[role='button'], [role='link'], [role='navigation'], [role='menu'], " +
	"[role='menuitem'], [role='tab'], [role='toolbar'], [onclick]"

// 短控制短语（加载/确认/导航类）
var controlPhrasePattern = regexp.MustCompile(
	`(?i)^(loading|thinking|typing|searching|generating|copied|sending|saved|` +
		`ok|okay|yes|no|cancel|done|close|submit|next|previous|back|more|continue)(\.{3}|…)?$`)

// 全标点/符号
var symbolOnlyPattern = regexp.MustCompile(`^[\p{P}\p{S}\p{Z}\s]+$`)

// 会话标记：代词、情态动词、助人短语
// 缺少任何标记的短助手文本几乎总是 UI 残渣
var conversationalMarkerPattern = regexp.MustCompile(
	`(?i)\b(i|you|we|it|this|that|your|my|our|me|can|could|would|should|will|` +
		`may|might|must|let's|let me|here|help|sure|please|thanks|sorry|yes|no)\b`)

// NoiseFilter 两阶段 UI 噪声过滤器
// 结构阶段在分类前执行（廉价检查），内容阶段在归一化后执行
type NoiseFilter struct {
	minAssistantLen int
	requireMarkers  bool
	minBlockWidth   int
	minBlockHeight  int
}

// NewNoiseFilter 创建过滤器
func NewNoiseFilter(cfg config.ExtractConfig) *NoiseFilter {
	f := &NoiseFilter{
		minAssistantLen: cfg.MinAssistantLen,
		requireMarkers:  cfg.RequireMarkers,
		minBlockWidth:   cfg.MinBlockWidth,
		minBlockHeight:  cfg.MinBlockHeight,
	}
	if f.minAssistantLen <= 0 {
		f.minAssistantLen = 8
	}
	if f.minBlockWidth <= 0 {
		f.minBlockWidth = 50
	}
	if f.minBlockHeight <= 0 {
		f.minBlockHeight = 20
	}
	return f
}

// RejectStructural 结构阶段：按节点形态拒绝 UI 块
func (f *NoiseFilter) RejectStructural(sel *goquery.Selection, text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 2 {
		return true
	}

	if _, ok := uiLabels[strings.ToLower(trimmed)]; ok {
		return true
	}

	if sel != nil {
		if sel.Is(interactiveSelector) || sel.ParentsFiltered(interactiveSelector).Length() > 0 {
			return true
		}

		// shim 序列化时附带的布局提示，两个都缺省时不据此拒绝
		if w, h, ok := layoutHints(sel); ok {
			if w < f.minBlockWidth || h < f.minBlockHeight {
				return true
			}
		}
	}

	return false
}

// RejectContent 内容阶段：按归一化文本拒绝
// 对助手消息保持更高门槛，用户输入保持宽容（数字、单词回答都是有效消息）
func (f *NoiseFilter) RejectContent(text string, role model.Role) bool {
	if controlPhrasePattern.MatchString(text) {
		return true
	}

	if symbolOnlyPattern.MatchString(text) {
		return true
	}

	if role == model.RoleAssistant {
		if len([]rune(text)) < f.minAssistantLen {
			return true
		}
		if f.requireMarkers && !conversationalMarkerPattern.MatchString(text) {
			return true
		}
	}

	return false
}

func layoutHints(sel *goquery.Selection) (width, height int, ok bool) {
	ws, wok := sel.Attr("data-mg-w")
	hs, hok := sel.Attr("data-mg-h")
	if !wok || !hok {
		return 0, 0, false
	}

	w, werr := strconv.Atoi(strings.TrimSpace(ws))
	h, herr := strconv.Atoi(strings.TrimSpace(hs))
	if werr != nil || herr != nil {
		return 0, 0, false
	}
	return w, h, true
}
