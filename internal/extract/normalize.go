package extract

import (
	"regexp"
	"strings"
	"unicode"

	"magpie/internal/model"
)

// 角色前缀样板，如 "ChatGPT said:" / "You said:"
var rolePrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(you|user|assistant|chatgpt|claude|gemini|copilot|ai|bot)\s+said:?\s*`),
	regexp.MustCompile(`(?i)^(user|assistant|system):\s*`),
}

// 已知的插播/推广样板块，贪婪匹配锚定在成对短语上
var interstitialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)this content may violate.*?(policies|terms of use)\.?`),
	regexp.MustCompile(`(?is)temporary chat.*?(history|memory)\.?`),
	regexp.MustCompile(`(?is)upgrade to\b.*?(learn more|upgrade now|see plans)\.?`),
	regexp.MustCompile(`(?is)by messaging\b.*?(privacy policy|terms)\.?`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize 清理原始提取文本
// 去掉角色前缀与插播样板，折叠空白；结果过短或全为符号时返回空串，
// 表示"不是真实消息"
func Normalize(raw string, role model.Role) string {
	text := raw

	for _, p := range rolePrefixPatterns {
		text = p.ReplaceAllString(text, "")
	}

	for _, p := range interstitialPatterns {
		text = p.ReplaceAllString(text, " ")
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if !hasRealContent(text) {
		return ""
	}

	return text
}

// hasRealContent 至少 2 个非空白非标点字符，且不能全为非词字符
func hasRealContent(text string) bool {
	count := 0
	hasWord := false
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		count++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWord = true
		}
	}
	return count >= 2 && hasWord
}
