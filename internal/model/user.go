package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "user"
	Admin   UserRole = "admin"
)

// User 本地用户档案，ID 为外部身份服务的 subject
// swagger:model User
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email     string    `gorm:"size:191;index" json:"email"`
	Name      string    `gorm:"size:100" json:"name"`
	Role      UserRole  `gorm:"size:20;default:'user'" json:"role"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
