package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConceptsForFullProgress 学科进度满 100% 所需的去重概念数
const ConceptsForFullProgress = 20

// SubjectProgress 每个 (用户, 学科) 一行，首次活动时惰性创建
// swagger:model SubjectProgress
type SubjectProgress struct {
	BaseModel
	UserID          string                      `gorm:"type:varchar(64);uniqueIndex:idx_user_subject;not null" json:"userId"`
	SubjectID       string                      `gorm:"type:varchar(64);uniqueIndex:idx_user_subject;not null" json:"subjectId"`
	ConceptsLearned datatypes.JSONSlice[string] `json:"conceptsLearned"`
	TotalSessions   int                         `gorm:"default:0" json:"totalSessions"`
	TotalMessages   int                         `gorm:"default:0" json:"totalMessages"`
	TotalTimeSpent  int                         `gorm:"default:0" json:"totalTimeSpent"`
	XP              int                         `gorm:"column:xp;default:0" json:"xp"`
	Level           int                         `gorm:"default:1" json:"level"`
	Progress        float64                     `gorm:"default:0" json:"progress"`
	LastActivity    time.Time                   `json:"lastActivity"`
	Version         int                         `gorm:"default:0" json:"-"`
}

func (SubjectProgress) TableName() string {
	return "subject_progress"
}

// RecomputeProgress 进度只由去重概念数决定
func (p *SubjectProgress) RecomputeProgress() {
	pct := float64(len(p.ConceptsLearned)) / ConceptsForFullProgress * 100
	if pct > 100 {
		pct = 100
	}
	p.Progress = pct
}
