package repository

import (
	"context"
	"errors"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/util"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	return storeErr(r.DB.WithContext(ctx).Create(session).Error)
}

func (r *ChatRepository) FindSession(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.DB.WithContext(ctx).Preload("Subject").Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, translate(err, util.ErrSessionNotFound)
	}
	return &session, nil
}

// ListSessions 返回用户的活跃会话，最近更新的在前
func (r *ChatRepository) ListSessions(ctx context.Context, userID, subjectID, search string) ([]model.ChatSession, error) {
	db := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
		Preload("Subject").
		Where("user_id = ? AND is_active = ?", userID, true)

	if subjectID != "" {
		db = db.Where("subject_id = ?", subjectID)
	}
	if search != "" {
		db = db.Where("title LIKE ?", "%"+search+"%")
	}

	var sessions []model.ChatSession
	err := db.Order("updated_at desc").Find(&sessions).Error
	return sessions, storeErr(err)
}

// LastMessages 批量获取每个会话的最后一条消息
func (r *ChatRepository) LastMessages(ctx context.Context, sessionIDs []string) (map[string]model.ChatMessage, error) {
	out := make(map[string]model.ChatMessage, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return out, nil
	}

	latest := r.DB.Model(&model.ChatMessage{}).
		Select("session_id, MAX(seq_id) AS max_seq").
		Where("session_id IN ?", sessionIDs).
		Group("session_id")

	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).
		Table("chat_messages AS m").
		Select("m.*").
		Joins("JOIN (?) AS t ON m.session_id = t.session_id AND m.seq_id = t.max_seq", latest).
		Scan(&msgs).Error
	if err != nil {
		return nil, storeErr(err)
	}
	for _, m := range msgs {
		out[m.SessionID] = m
	}
	return out, nil
}

// AppendMessage 在同一事务中分配会话内序号并写入消息
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ChatSession{}).Where("id = ?", msg.SessionID).Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + ?", 1),
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrSessionNotFound
		}

		var seq uint64
		if err := tx.Model(&model.ChatSession{}).Where("id = ?", msg.SessionID).
			Select("message_count").Scan(&seq).Error; err != nil {
			return err
		}
		msg.SeqID = seq

		return tx.Create(msg).Error
	})
	if errors.Is(err, util.ErrSessionNotFound) {
		return err
	}
	return storeErr(err)
}

func (r *ChatRepository) ListMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("seq_id asc").Find(&msgs).Error
	return msgs, storeErr(err)
}

// RecentMessages 返回最近 n 条消息，按时间正序
func (r *ChatRepository) RecentMessages(ctx context.Context, sessionID string, n int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("seq_id desc").Limit(n).Find(&msgs).Error
	if err != nil {
		return nil, storeErr(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MergeConcepts 以 version 做比较并交换，返回是否写入成功
func (r *ChatRepository) MergeConcepts(ctx context.Context, session *model.ChatSession, concepts []string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ? AND version = ?", session.ID, session.Version).
		Updates(map[string]interface{}{
			"concepts_learned": datatypes.JSONSlice[string](concepts),
			"version":          gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return false, storeErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RaiseDuration 仅在新值大于已记录值时更新，返回之前的值
func (r *ChatRepository) RaiseDuration(ctx context.Context, sessionID string, seconds int) (previous int, updated bool, err error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var session model.ChatSession
		if err := r.DB.WithContext(ctx).Select("id", "duration").Where("id = ?", sessionID).First(&session).Error; err != nil {
			return 0, false, translate(err, util.ErrSessionNotFound)
		}
		if seconds <= session.Duration {
			return session.Duration, false, nil
		}

		res := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
			Where("id = ? AND duration = ?", sessionID, session.Duration).
			Update("duration", seconds)
		if res.Error != nil {
			return 0, false, storeErr(res.Error)
		}
		if res.RowsAffected == 1 {
			return session.Duration, true, nil
		}
	}
	return 0, false, util.ErrConflict
}

func (r *ChatRepository) Deactivate(ctx context.Context, sessionID string) error {
	err := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ?", sessionID).Update("is_active", false).Error
	return storeErr(err)
}

// SessionFilter 统计查询的会话范围，零值表示不限制
type SessionFilter struct {
	Since    *time.Time
	Until    *time.Time
	Subjects []string
	Limit    int
}

// StatSessions 统计用的活跃会话，按创建时间倒序
func (r *ChatRepository) StatSessions(ctx context.Context, userID string, f SessionFilter) ([]model.ChatSession, error) {
	db := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
		Where("user_id = ? AND is_active = ?", userID, true)

	if f.Since != nil {
		db = db.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		db = db.Where("created_at < ?", *f.Until)
	}
	if len(f.Subjects) > 0 {
		db = db.Where("subject_id IN ?", f.Subjects)
	}
	if f.Limit > 0 {
		db = db.Limit(f.Limit)
	}

	var sessions []model.ChatSession
	err := db.Order("created_at desc").Find(&sessions).Error
	return sessions, storeErr(err)
}

// RecentSessions 最近有更新的活跃会话
func (r *ChatRepository) RecentSessions(ctx context.Context, userID, subjectID string, limit int) ([]model.ChatSession, error) {
	db := r.DB.WithContext(ctx).Model(&model.ChatSession{}).
		Preload("Subject").
		Where("user_id = ? AND is_active = ?", userID, true)
	if subjectID != "" {
		db = db.Where("subject_id = ?", subjectID)
	}

	var sessions []model.ChatSession
	err := db.Order("updated_at desc").Limit(limit).Find(&sessions).Error
	return sessions, storeErr(err)
}

// CountUserMessages 用户在活跃会话中发送的消息数
func (r *ChatRepository) CountUserMessages(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ChatMessage{}).
		Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
		Where("chat_sessions.user_id = ? AND chat_sessions.is_active = ? AND chat_messages.is_user_message = ?", userID, true, true).
		Count(&n).Error
	return n, storeErr(err)
}
