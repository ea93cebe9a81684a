package models

import "time"

// ChatMessage is one persisted entry of a session's conversation.
// DisplayText is the chat prose after structured blocks were removed;
// RawText preserves the full generated output including block tags.
type ChatMessage struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SessionKey string `gorm:"size:255;not null;index:idx_chat_session" json:"sessionKey"`
	AuthorID   uint   `json:"authorId"`
	Role       string `gorm:"size:32;not null" json:"role"` // "user" | "assistant"
	Display    string `gorm:"type:text" json:"display"`
	Raw        string `gorm:"type:text" json:"raw,omitempty"`
	CreatedAt  time.Time
}
