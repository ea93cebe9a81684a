package models

import "time"

// Idea is one logical topic being planned. Each idea owns at most one
// streaming session at a time, keyed by SessionKey.
type Idea struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"index" json:"userId"`
	WorkspaceID string `gorm:"size:255;index" json:"workspaceId,omitempty"`
	Title       string `gorm:"size:512;not null" json:"title"`
	Summary     string `gorm:"type:text" json:"summary"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContextLink attaches an external context item (a local checkout or a
// remote repository) to an idea. Resolution of key properties happens
// lazily through the context service.
type ContextLink struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	IdeaID    uint   `gorm:"index" json:"ideaId"`
	UserID    uint   `gorm:"index" json:"userId"`
	Name      string `gorm:"size:255" json:"name"`
	LocalPath string `gorm:"size:1024" json:"localPath,omitempty"`
	RemoteURL string `gorm:"size:1024" json:"remoteUrl,omitempty"`
	Branch    string `gorm:"size:255" json:"branch,omitempty"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
