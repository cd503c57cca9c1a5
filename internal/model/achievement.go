package model

import (
	"time"

	"gorm.io/datatypes"
)

type RequirementKind string

const (
	RequirementSessions RequirementKind = "sessions_count"
	RequirementMessages RequirementKind = "messages_count"
	RequirementConcepts RequirementKind = "concepts_count"
	RequirementLevel    RequirementKind = "level_reached"
	RequirementTime     RequirementKind = "time_spent"
	RequirementModules  RequirementKind = "modules_completed"
)

type AchievementRequirement struct {
	Kind      RequirementKind `json:"type"`
	Threshold int             `json:"value"`
	Subject   string          `json:"subject,omitempty"`
}

// Achievement 成就目录
type Achievement struct {
	ID          string                                     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string                                     `gorm:"size:100;not null" json:"name"`
	Description string                                     `gorm:"type:text" json:"description"`
	Icon        string                                     `gorm:"size:50" json:"icon"`
	Category    string                                     `gorm:"size:32;index" json:"category"`
	Rarity      string                                     `gorm:"size:20" json:"rarity"`
	Points      int                                        `gorm:"default:0" json:"points"`
	Requirement datatypes.JSONType[AchievementRequirement] `json:"requirement"`
	IsActive    bool                                       `gorm:"default:true" json:"isActive"`
	CreatedAt   time.Time                                  `json:"createdAt"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement 用户在某个成就上的进度
type UserAchievement struct {
	BaseModel
	UserID        string       `gorm:"type:varchar(64);uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID string       `gorm:"type:varchar(64);uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	CurrentValue  int          `gorm:"default:0" json:"currentValue"`
	Progress      int          `gorm:"default:0" json:"progress"`
	IsCompleted   bool         `gorm:"default:false;index" json:"isCompleted"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	IsNotified    bool         `gorm:"default:false" json:"isNotified"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}
