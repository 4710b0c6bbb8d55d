package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event_ticketing/internal/domain/user/model"
	"event_ticketing/pkg/cache"
	"event_ticketing/pkg/metrics"

	"go.uber.org/zap"
)

// 缓存键常量
const (
	UserCacheKeyPrefix = "user:"
	UserCacheTTL       = time.Minute
)

// CachedUserService 带缓存的用户服务，缓存故障时回源
type CachedUserService struct {
	next    UserService
	cache   cache.CacheService
	metrics *metrics.MetricsCollector
	log     *zap.Logger
}

// NewCachedUserService 创建带缓存的用户服务
func NewCachedUserService(next UserService, c cache.CacheService, m *metrics.MetricsCollector, log *zap.Logger) UserService {
	return &CachedUserService{
		next:    next,
		cache:   c,
		metrics: m,
		log:     log,
	}
}

// getUserCacheKey 获取用户缓存键
func (s *CachedUserService) getUserCacheKey(id string) string {
	return fmt.Sprintf("%s%s", UserCacheKeyPrefix, id)
}

// GetUser 获取用户（带缓存）
func (s *CachedUserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	key := s.getUserCacheKey(id)

	var user model.User
	err := s.cache.Get(ctx, key, &user)
	if err == nil {
		s.metrics.RecordCacheLookup(UserCacheKeyPrefix, true)
		return &user, nil
	}
	s.metrics.RecordCacheLookup(UserCacheKeyPrefix, false)
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("user cache read failed", zap.String("user_id", id), zap.Error(err))
	}

	found, err := s.next.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, found, UserCacheTTL); err != nil {
		s.log.Warn("user cache write failed", zap.String("user_id", id), zap.Error(err))
	}
	return found, nil
}

// GetUserByEmail 按邮箱查询不走缓存
func (s *CachedUserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.next.GetUserByEmail(ctx, email)
}
