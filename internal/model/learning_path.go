package model

import (
	"time"

	"gorm.io/datatypes"
)

type ModuleType string

const (
	ModuleLesson     ModuleType = "lesson"
	ModulePractice   ModuleType = "practice"
	ModuleQuiz       ModuleType = "quiz"
	ModuleDiscussion ModuleType = "discussion"
	ModuleProject    ModuleType = "project"
)

type ContentKind string

const (
	ContentText         ContentKind = "text"
	ContentConversation ContentKind = "conversation"
	ContentQuiz         ContentKind = "quiz"
	ContentInteractive  ContentKind = "interactive"
)

type ResourceKind string

const (
	ResourceLink     ResourceKind = "link"
	ResourceDocument ResourceKind = "document"
	ResourceVideo    ResourceKind = "video"
	ResourceImage    ResourceKind = "image"
)

type ModuleResource struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Kind        ResourceKind `json:"type"`
	URL         string       `json:"url"`
	Description string       `json:"description,omitempty"`
}

// ModuleContent 模块内容，Kind 决定前端的渲染方式
type ModuleContent struct {
	Kind         ContentKind      `json:"type"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Instructions string           `json:"instructions,omitempty"`
	Prompts      []string         `json:"prompts,omitempty"`
	Resources    []ModuleResource `json:"resources,omitempty"`
}

// LearningPath 学习路径，读多写少；报名人数只通过原子自增修改
// swagger:model LearningPath
type LearningPath struct {
	ID                 string                      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title              string                      `gorm:"size:255;not null" json:"title"`
	Description        string                      `gorm:"type:text" json:"description"`
	Subject            string                      `gorm:"size:64;index" json:"subject"`
	Difficulty         Difficulty                  `gorm:"size:20;index" json:"difficulty"`
	EstimatedDuration  int                         `gorm:"default:0" json:"estimatedDuration"`
	Prerequisites      datatypes.JSONSlice[string] `json:"prerequisites"`
	LearningObjectives datatypes.JSONSlice[string] `json:"learningObjectives"`
	Tags               datatypes.JSONSlice[string] `json:"tags"`
	IsRecommended      bool                        `gorm:"default:false;index" json:"isRecommended"`
	EnrollmentCount    int                         `gorm:"default:0" json:"enrollmentCount"`
	AverageRating      float64                     `gorm:"default:0" json:"averageRating"`
	Modules            []LearningModule            `gorm:"foreignKey:PathID" json:"modules,omitempty"`
	CreatedAt          time.Time                   `json:"createdAt"`
	UpdatedAt          time.Time                   `json:"updatedAt"`
}

func (LearningPath) TableName() string {
	return "learning_paths"
}

// LearningModule 路径中的单元，按 Order 排列
type LearningModule struct {
	ID            string                            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PathID        string                            `gorm:"type:varchar(64);index;not null" json:"pathId"`
	Title         string                            `gorm:"size:255;not null" json:"title"`
	Description   string                            `gorm:"type:text" json:"description"`
	Type          ModuleType                        `gorm:"size:20" json:"type"`
	Order         int                               `gorm:"column:sort_order;default:0" json:"order"`
	EstimatedTime int                               `gorm:"default:0" json:"estimatedTime"`
	IsRequired    bool                              `gorm:"default:true" json:"isRequired"`
	Prerequisites datatypes.JSONSlice[string]       `json:"prerequisites"`
	Content       datatypes.JSONType[ModuleContent] `json:"content"`
	CreatedAt     time.Time                         `json:"createdAt"`
	UpdatedAt     time.Time                         `json:"updatedAt"`
}

func (LearningModule) TableName() string {
	return "learning_modules"
}

type PathStatus string

const (
	PathNotStarted PathStatus = "not_started"
	PathInProgress PathStatus = "in_progress"
	PathCompleted  PathStatus = "completed"
	PathPaused     PathStatus = "paused"
)

type ModuleStatus string

const (
	ModuleLocked     ModuleStatus = "locked"
	ModuleAvailable  ModuleStatus = "available"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
	ModuleFailed     ModuleStatus = "failed"
)

// Rank 状态的前进顺序，completed 与 failed 同为终态
func (s ModuleStatus) Rank() int {
	switch s {
	case ModuleLocked:
		return 0
	case ModuleAvailable:
		return 1
	case ModuleInProgress:
		return 2
	case ModuleCompleted, ModuleFailed:
		return 3
	}
	return -1
}

func (s ModuleStatus) Terminal() bool {
	return s == ModuleCompleted || s == ModuleFailed
}

// ModuleProgress 单个模块的学习进度
type ModuleProgress struct {
	ModuleID    string       `json:"moduleId"`
	Status      ModuleStatus `json:"status"`
	Progress    int          `json:"progress"`
	TimeSpent   int          `json:"timeSpent"`
	Attempts    int          `json:"attempts"`
	Score       *float64     `json:"score,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	LastAttempt *time.Time   `json:"lastAttempt,omitempty"`
}

// UserLearningPath 每个 (用户, 路径) 一行，Version 用于比较并交换更新
// swagger:model UserLearningPath
type UserLearningPath struct {
	BaseModel
	UserID           string                              `gorm:"type:varchar(64);uniqueIndex:idx_user_path;not null" json:"userId"`
	PathID           string                              `gorm:"type:varchar(64);uniqueIndex:idx_user_path;not null" json:"pathId"`
	Status           PathStatus                          `gorm:"size:20;default:'not_started'" json:"status"`
	Progress         int                                 `gorm:"default:0" json:"progress"`
	CurrentModuleID  *string                             `gorm:"type:varchar(64)" json:"currentModuleId,omitempty"`
	CompletedModules datatypes.JSONSlice[string]         `json:"completedModules"`
	ModuleProgress   datatypes.JSONSlice[ModuleProgress] `json:"moduleProgress"`
	TotalTimeSpent   int                                 `gorm:"default:0" json:"totalTimeSpent"`
	Score            *float64                            `json:"score,omitempty"`
	StartedAt        time.Time                           `gorm:"index" json:"startedAt"`
	LastActivity     time.Time                           `json:"lastActivity"`
	CompletedAt      *time.Time                          `json:"completedAt,omitempty"`
	Version          int                                 `gorm:"default:0" json:"-"`
	Path             *LearningPath                       `gorm:"foreignKey:PathID" json:"path,omitempty"`
}

func (UserLearningPath) TableName() string {
	return "user_learning_paths"
}

// FindModule 返回模块进度下标，不存在时为 -1
func (u *UserLearningPath) FindModule(moduleID string) int {
	for i, mp := range u.ModuleProgress {
		if mp.ModuleID == moduleID {
			return i
		}
	}
	return -1
}
