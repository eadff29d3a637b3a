package model

// ToggleCaptureRequest 捕获开关请求
type ToggleCaptureRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SnapshotRequest 快照上报请求
type SnapshotRequest struct {
	PageID string `json:"page_id,omitempty"`
	URL    string `json:"url" binding:"required"`
	Title  string `json:"title,omitempty"`
	HTML   string `json:"html" binding:"required"`
}
