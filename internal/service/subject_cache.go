package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SubjectInvalidateChannel 跨实例广播学科配置变更
const SubjectInvalidateChannel = "tutor:subjects:invalidate"

type subjectSnapshot struct {
	byID     map[string]model.Subject
	ordered  []model.Subject
	loadedAt time.Time
}

// SubjectCache 活跃学科的只读快照。读取从不等待刷新，允许短暂的旧数据
type SubjectCache struct {
	Repo  *repository.SubjectRepository
	Redis *redis.Client

	snapshot  atomic.Pointer[subjectSnapshot]
	refreshMu sync.Mutex
}

func NewSubjectCache(repo *repository.SubjectRepository, rdb *redis.Client) *SubjectCache {
	return &SubjectCache{Repo: repo, Redis: rdb}
}

// Refresh 从存储重新加载并整体替换快照
func (c *SubjectCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	subjects, err := c.Repo.ListActive(ctx)
	if err != nil {
		return err
	}

	snap := &subjectSnapshot{
		byID:     make(map[string]model.Subject, len(subjects)),
		ordered:  subjects,
		loadedAt: time.Now(),
	}
	for _, s := range subjects {
		snap.byID[s.ID] = s
	}
	c.snapshot.Store(snap)
	logger.Log.Debug("Subject cache refreshed", zap.Int("subjects", len(subjects)))
	return nil
}

func (c *SubjectCache) Get(id string) (model.Subject, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return model.Subject{}, false
	}
	s, ok := snap.byID[id]
	return s, ok
}

func (c *SubjectCache) List() []model.Subject {
	snap := c.snapshot.Load()
	if snap == nil {
		return []model.Subject{}
	}
	out := make([]model.Subject, len(snap.ordered))
	copy(out, snap.ordered)
	return out
}

// Invalidate 本地立即刷新，并通知其他实例
func (c *SubjectCache) Invalidate(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if c.Redis != nil {
		if err := c.Redis.Publish(ctx, SubjectInvalidateChannel, time.Now().Unix()).Err(); err != nil {
			logger.Log.Warn("Failed to publish subject invalidation", zap.Error(err))
		}
	}
	return nil
}

// Listen 订阅失效通知直到 ctx 结束，未配置 Redis 时直接返回
func (c *SubjectCache) Listen(ctx context.Context) {
	if c.Redis == nil {
		return
	}
	sub := c.Redis.Subscribe(ctx, SubjectInvalidateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := c.Refresh(ctx); err != nil {
				logger.Log.Error("Subject cache refresh after invalidation failed", zap.Error(err))
			}
		}
	}
}
