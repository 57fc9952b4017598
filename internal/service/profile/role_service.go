// internal/service/profile/role_service.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetdesk-service/internal/domain/auth"
	xerrors "fleetdesk-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProfileStore is the read side of the profiles table.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*auth.Profile, error)
}

// RoleCache holds resolved roles between requests.
type RoleCache interface {
	Get(ctx context.Context, userID string) (auth.Role, bool, error)
	Set(ctx context.Context, userID string, role auth.Role, ttl time.Duration) error
}

type RoleService struct {
	store       ProfileStore
	cache       RoleCache
	cacheTTL    time.Duration
	defaultRole auth.Role
	logger      *zap.Logger
}

// NewRoleService builds the profile lookup. cache may be nil; a zero ttl
// disables caching as well.
func NewRoleService(store ProfileStore, cache RoleCache, cacheTTL time.Duration, defaultRole auth.Role, logger *zap.Logger) *RoleService {
	if defaultRole == "" {
		defaultRole = auth.RoleAdmin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cache = nil
	}
	return &RoleService{
		store:       store,
		cache:       cache,
		cacheTTL:    cacheTTL,
		defaultRole: defaultRole,
		logger:      logger,
	}
}

// FetchRole returns the normalized user_level of a profile. A missing row or
// a NULL/blank level returns ErrNotFound.
func (s *RoleService) FetchRole(ctx context.Context, userID string) (auth.Role, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", xerrors.ErrInvalidInput)
	}

	if s.cache != nil {
		role, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Debug("role cache read failed", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			return role, nil
		}
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.UserLevel == nil {
		return "", fmt.Errorf("%w: profile has no user level", xerrors.ErrNotFound)
	}
	role := auth.ParseRole(*profile.UserLevel)
	if role == "" {
		return "", fmt.Errorf("%w: profile has blank user level", xerrors.ErrNotFound)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, role, s.cacheTTL); err != nil {
			s.logger.Debug("role cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return role, nil
}

// ResolveRole never fails: any lookup problem yields the default role with
// defaulted set.
func (s *RoleService) ResolveRole(ctx context.Context, userID string) (auth.Role, bool) {
	role, err := s.FetchRole(ctx, userID)
	if err == nil {
		return role, false
	}

	if errors.Is(err, xerrors.ErrNotFound) {
		s.logger.Warn("no usable profile role, using default",
			zap.String("user_id", userID),
			zap.String("default_role", s.defaultRole.String()),
			zap.Error(err),
		)
	} else {
		s.logger.Warn("profile lookup failed, using default role",
			zap.String("user_id", userID),
			zap.String("default_role", s.defaultRole.String()),
			zap.Error(err),
		)
	}
	return s.defaultRole, true
}

// RedisRoleCache stores roles under profile_role:<id>.
type RedisRoleCache struct {
	client *redis.Client
}

func NewRedisRoleCache(client *redis.Client) *RedisRoleCache {
	return &RedisRoleCache{client: client}
}

func (c *RedisRoleCache) Get(ctx context.Context, userID string) (auth.Role, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached role: %w", err)
	}
	return auth.Role(val), true, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, userID string, role auth.Role, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(userID), role.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache role: %w", err)
	}
	return nil
}

func (c *RedisRoleCache) key(userID string) string {
	return fmt.Sprintf("profile_role:%s", userID)
}
