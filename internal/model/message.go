package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-ego/gse"
)

// Role 消息作者角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleUnknown   Role = "unknown" // 仅在提取阶段出现，从不持久化
)

// Message 一条捕获到的会话消息
// Sequence 在一次捕获会话内严格递增，分配后不再改变
type Message struct {
	ID             string    `json:"id" bson:"id"`
	Role           Role      `json:"role" bson:"role"`
	Text           string    `json:"text" bson:"text"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	Sequence       int64     `json:"sequence" bson:"sequence"`
	WordCount      int       `json:"word_count" bson:"word_count"`
	CharacterCount int       `json:"character_count" bson:"character_count"`
	HasCode        bool      `json:"has_code" bson:"has_code"`
	HasMarkdown    bool      `json:"has_markdown" bson:"has_markdown"`
}

var (
	codePattern     = regexp.MustCompile("```|`[^`]+`|\\b(func|function|def|class|import|return|const|var)\\b|[{};]\\s*$")
	markdownPattern = regexp.MustCompile(`(?m)^#{1,6}\s|\*\*[^*]+\*\*|^\s*[-*+]\s|^\s*\d+\.\s|\[[^\]]+\]\([^)]+\)`)
)

// 分词器初始化失败时降级为空白切分
var segmenter *gse.Segmenter

func init() {
	seg, err := gse.New()
	if err == nil {
		segmenter = &seg
	}
}

// NewMessage 构造消息并一次性计算派生元数据
// ID 由 (role, sequence, 内容哈希) 确定性派生，相同位置的相同内容总是得到相同 ID
func NewMessage(role Role, text string, sequence int64, timestamp time.Time) Message {
	hash := ContentHash(text)

	return Message{
		ID:             messageID(role, sequence, hash),
		Role:           role,
		Text:           text,
		Timestamp:      timestamp,
		Sequence:       sequence,
		WordCount:      countWords(text),
		CharacterCount: len([]rune(text)),
		HasCode:        codePattern.MatchString(text),
		HasMarkdown:    markdownPattern.MatchString(text),
	}
}

// DedupKey 基于内容的去重键：(role, 内容哈希, 时间戳截断到小时)
// 同一逻辑消息在不同 DOM 节点下重新渲染时去重键不变
func (m Message) DedupKey() string {
	return string(m.Role) + ":" + ContentHash(m.Text) + ":" + m.Timestamp.UTC().Truncate(time.Hour).Format("2006010215")
}

// ContentHash 计算归一化文本的内容哈希
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func messageID(role Role, sequence int64, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", role, sequence, contentHash)))
	return "msg-" + hex.EncodeToString(sum[:8])
}

// countWords 统计词数，对 CJK 文本使用 gse 分词
func countWords(text string) int {
	if text == "" {
		return 0
	}

	if segmenter != nil && containsCJK(text) {
		count := 0
		for _, word := range segmenter.Cut(text, false) {
			if strings.TrimSpace(word) != "" {
				count++
			}
		}
		return count
	}

	return len(strings.Fields(text))
}

func containsCJK(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
