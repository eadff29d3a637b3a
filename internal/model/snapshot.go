package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Snapshot 浏览器侧 shim 上报的一次完整 DOM 快照
// HTML 为序列化后的完整页面，提取器每次都在最新快照上从头重算
type Snapshot struct {
	PageID     string    `json:"page_id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	HTML       string    `json:"html"`
	CapturedAt time.Time `json:"captured_at"`
}

// Hash 快照内容哈希，用于日志与变更判断
func (s Snapshot) Hash() string {
	sum := sha256.Sum256([]byte(s.HTML))
	return hex.EncodeToString(sum[:])
}
