package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// Conversation 持久化单元：一个页面会话捕获到的全部消息
type Conversation struct {
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	URL            string    `json:"url" bson:"url"`
	Title          string    `json:"title" bson:"title"`
	Messages       []Message `json:"messages" bson:"messages"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	LastUpdated    time.Time `json:"last_updated" bson:"last_updated"`
}

// NewConversationID 派生会话 ID
// 页面提供稳定标识时直接使用，否则取 URL+日期 的哈希
func NewConversationID(stableID, url string, t time.Time) string {
	if stableID != "" {
		return stableID
	}
	sum := sha256.Sum256([]byte(url + t.UTC().Format("2006-01-02")))
	return "conv-" + hex.EncodeToString(sum[:8])
}

// SortMessages 按 Sequence 排序，Sequence 相同（旧记录缺失）时回退到 Timestamp
func (c *Conversation) SortMessages() {
	sort.SliceStable(c.Messages, func(i, j int) bool {
		a, b := c.Messages[i], c.Messages[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.Timestamp.Before(b.Timestamp)
	})
}

// DedupKeys 返回现有消息的去重键集合
func (c *Conversation) DedupKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		keys[m.DedupKey()] = struct{}{}
	}
	return keys
}
