package models

// PromptTemplate stores a named system-prompt template. The planning
// prompt shipped with the binary can be overridden per installation.
type PromptTemplate struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:255;not null;unique" json:"name"`
	Content string `gorm:"type:text;not null;" json:"content"`
}
