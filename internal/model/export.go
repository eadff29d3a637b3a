package model

import "time"

// ExportVersion 导出格式版本
const ExportVersion = "1.0"

// Export 全量导出包装
type Export struct {
	ExportDate         time.Time               `json:"export_date"`
	Version            string                  `json:"version"`
	TotalConversations int                     `json:"total_conversations"`
	Conversations      map[string]Conversation `json:"conversations"`
}
