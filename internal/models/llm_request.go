package models

import "time"

// LLMRequest is a diagnostics record for one generation run. Rows are
// append-mostly; UpdateByRequestID patches counters as the run
// progresses and CompletedAt/Error land at the end.
type LLMRequest struct {
	ID           uint   `gorm:"primaryKey"`
	RequestID    string `gorm:"size:64;not null;uniqueIndex" json:"requestId"`
	Kind         string `gorm:"size:64;not null" json:"kind"`
	SessionKey   string `gorm:"size:255;index" json:"sessionKey"`
	Preview      string `gorm:"size:512" json:"preview"`
	ModelKey     string `gorm:"size:255" json:"modelKey"`
	Status       string `gorm:"size:32;not null;default:running" json:"status"` // "running" | "completed" | "failed"
	Error        string `gorm:"type:text" json:"error,omitempty"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
