package model

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// CaptureStatusResponse 捕获状态响应
type CaptureStatusResponse struct {
	State        string `json:"state"` // disabled/searching/observing
	Enabled      bool   `json:"enabled"`
	PendingCount int    `json:"pending_count"`
	PassCount    int64  `json:"pass_count"`
	SavedCount   int64  `json:"saved_count"`
}

// UsageResponse 存储用量响应
type UsageResponse struct {
	TotalSize         int64 `json:"total_size"`
	ConversationCount int   `json:"conversation_count"`
	TotalMessages     int   `json:"total_messages"`
	IsNearLimit       bool  `json:"is_near_limit"`
}

// ListConversationsResponse 会话列表响应
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
