package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageQuestion      MessageType = "question"
	MessageAnswer        MessageType = "answer"
	MessageExplanation   MessageType = "explanation"
	MessageHint          MessageType = "hint"
	MessageEncouragement MessageType = "encouragement"
)

// MessageAnalysis 启发式分类结果
type MessageAnalysis struct {
	MessageType   MessageType `json:"messageType"`
	Difficulty    Difficulty  `json:"difficulty"`
	Concepts      []string    `json:"concepts"`
	NeedsGuidance bool        `json:"needsGuidance"`
	// 流被调用方放弃时为 true，内容为截至放弃时已收到的文本
	Partial bool `json:"partial,omitempty"`
	// 生成失败时使用了兜底回复
	Fallback bool `json:"fallback,omitempty"`
}

// Attachment 消息附件元数据，二进制内容存放在对象存储
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Key      string `json:"key"`
	URL      string `json:"url"`
}

// ChatSession 辅导会话，只做软停用不物理删除
type ChatSession struct {
	UUIDBase
	UserID          string                      `gorm:"type:varchar(64);index;not null" json:"userId"`
	SubjectID       *string                     `gorm:"type:varchar(64);index" json:"subjectId,omitempty"`
	Title           string                      `gorm:"size:255" json:"title"`
	IsActive        bool                        `gorm:"default:true;index" json:"isActive"`
	Duration        int                         `gorm:"default:0" json:"duration"`
	LastMessageAt   *time.Time                  `json:"lastMessageAt,omitempty"`
	ConceptsLearned datatypes.JSONSlice[string] `json:"conceptsLearned"`
	MessageCount    uint64                      `gorm:"default:0" json:"messageCount"`
	Version         int                         `gorm:"default:0" json:"-"`
	Subject         *Subject                    `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	LastMessage     *ChatMessage                `gorm:"-" json:"lastMessage,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 创建后不可修改，会话内按 SeqID 排序
type ChatMessage struct {
	ID            string                              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID     string                              `gorm:"type:varchar(36);index:idx_session_seq;not null" json:"sessionId"`
	SeqID         uint64                              `gorm:"index:idx_session_seq" json:"seqId"`
	Content       string                              `gorm:"type:text" json:"content"`
	IsUserMessage bool                                `json:"isUserMessage"`
	MessageType   MessageType                         `gorm:"size:20" json:"messageType"`
	Difficulty    Difficulty                          `gorm:"size:20" json:"difficulty"`
	Concepts      datatypes.JSONSlice[string]         `json:"concepts"`
	Analysis      datatypes.JSONType[MessageAnalysis] `json:"analysis"`
	Attachments   datatypes.JSONSlice[Attachment]     `json:"attachments,omitempty"`
	CreatedAt     time.Time                           `json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
