package model

import (
	"time"

	"gorm.io/datatypes"
)

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
	GoalExpired   GoalStatus = "expired"
	GoalCancelled GoalStatus = "cancelled"
)

type GoalPriority string

const (
	PriorityLow      GoalPriority = "low"
	PriorityMedium   GoalPriority = "medium"
	PriorityHigh     GoalPriority = "high"
	PriorityCritical GoalPriority = "critical"
)

type GoalType string

const (
	GoalDailySessions   GoalType = "daily_sessions"
	GoalWeeklySessions  GoalType = "weekly_sessions"
	GoalStudyTime       GoalType = "study_time"
	GoalConceptsLearned GoalType = "concepts_learned"
	GoalStreak          GoalType = "streak"
	GoalSubjectProgress GoalType = "subject_progress"
	GoalCustom          GoalType = "custom"
)

type GoalMilestone struct {
	Title       string     `json:"title"`
	TargetValue int        `json:"targetValue"`
	Reached     bool       `json:"reached"`
	ReachedAt   *time.Time `json:"reachedAt,omitempty"`
}

// Goal 用户自定义学习目标，只能由创建者修改
// swagger:model Goal
type Goal struct {
	UUIDBase
	UserID       string                             `gorm:"type:varchar(64);index;not null" json:"userId"`
	Title        string                             `gorm:"size:255;not null" json:"title"`
	Description  string                             `gorm:"type:text" json:"description"`
	Type         GoalType                           `gorm:"size:32;default:'custom'" json:"type"`
	TargetValue  int                                `gorm:"not null" json:"targetValue"`
	CurrentValue int                                `gorm:"default:0" json:"currentValue"`
	Unit         string                             `gorm:"size:32" json:"unit"`
	Status       GoalStatus                         `gorm:"size:20;default:'active';index" json:"status"`
	Priority     GoalPriority                       `gorm:"size:20;default:'medium'" json:"priority"`
	Category     string                             `gorm:"size:64" json:"category"`
	Deadline     *time.Time                         `gorm:"index" json:"deadline,omitempty"`
	Milestones   datatypes.JSONSlice[GoalMilestone] `json:"milestones"`
	CompletedAt  *time.Time                         `json:"completedAt,omitempty"`
}

func (Goal) TableName() string {
	return "goals"
}

// Terminal 终态不可再迁移
func (s GoalStatus) Terminal() bool {
	return s == GoalCompleted || s == GoalExpired || s == GoalCancelled
}

// CanTransition 目标状态机：active⇄paused，active→completed，非终态→cancelled/expired
func (s GoalStatus) CanTransition(to GoalStatus) bool {
	if s.Terminal() || s == to {
		return false
	}
	switch to {
	case GoalActive:
		return s == GoalPaused
	case GoalPaused, GoalCompleted:
		return s == GoalActive
	case GoalCancelled, GoalExpired:
		return true
	}
	return false
}
