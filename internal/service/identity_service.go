package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"tutor_backend/internal/config"
	"tutor_backend/internal/model"
	"tutor_backend/internal/repository"
	"tutor_backend/internal/util"
	"tutor_backend/pkg/logger"

	"go.uber.org/zap"
)

// 本地档案同步间隔，避免每个请求都写库
const profileSyncInterval = 5 * time.Minute

// IdentityService 校验外部身份服务签发的令牌并同步本地用户档案
type IdentityService struct {
	UserRepo    *repository.UserRepository
	Params      util.TokenParams
	AdminEmails []string

	lastSync sync.Map
}

func NewIdentityService(userRepo *repository.UserRepository, cfg config.JWTConfig) *IdentityService {
	return &IdentityService{
		UserRepo: userRepo,
		Params: util.TokenParams{
			Secret:   cfg.Secret,
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		},
		AdminEmails: cfg.AdminEmailList(),
	}
}

// Authenticate 返回调用方身份，失败统一为 ErrUnauthenticated
func (s *IdentityService) Authenticate(ctx context.Context, token string) (*util.Identity, error) {
	claims, err := util.ParseJWT(token, s.Params)
	if err != nil {
		return nil, err
	}

	identity := &util.Identity{
		UserID: claims.Subject,
		Email:  strings.ToLower(claims.Email),
		Role:   string(model.Student),
	}
	if claims.Role == string(model.Admin) || (identity.Email != "" && slices.Contains(s.AdminEmails, identity.Email)) {
		identity.Role = string(model.Admin)
	}

	s.syncProfile(ctx, identity, claims.Name)
	return identity, nil
}

func (s *IdentityService) syncProfile(ctx context.Context, identity *util.Identity, name string) {
	if last, ok := s.lastSync.Load(identity.UserID); ok && time.Since(last.(time.Time)) < profileSyncInterval {
		return
	}

	user := &model.User{
		ID:    identity.UserID,
		Email: identity.Email,
		Name:  name,
		Role:  model.UserRole(identity.Role),
	}
	if err := s.UserRepo.Sync(ctx, user); err != nil {
		logger.Log.Warn("Failed to sync user profile", zap.String("user_id", identity.UserID), zap.Error(err))
		return
	}
	s.lastSync.Store(identity.UserID, time.Now())
}
