package model

import (
	"time"

	"gorm.io/datatypes"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// Subject 辅导学科，由管理员维护，会话引擎只读
// swagger:model Subject
type Subject struct {
	ID           string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string                      `gorm:"size:100;not null" json:"name"`
	Description  string                      `gorm:"type:text" json:"description"`
	Icon         string                      `gorm:"size:50" json:"icon"`
	Color        string                      `gorm:"size:20" json:"color"`
	SystemPrompt string                      `gorm:"type:text" json:"systemPrompt"`
	Difficulty   Difficulty                  `gorm:"size:20;default:'beginner'" json:"difficulty"`
	Concepts     datatypes.JSONSlice[string] `json:"concepts"`
	IsActive     bool                        `gorm:"default:true;index" json:"isActive"`
	CreatedAt    time.Time                   `json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

func (Subject) TableName() string {
	return "subjects"
}
