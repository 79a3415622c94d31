package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nfdrepairs/repair-ops/internal/repository"
)

const keyPrefix = "settings:"

// Settings is a read-through redis cache in front of the admin_settings
// table. Dispatch-time reads (relay URL, review link, API key) hit this
// instead of the DB on every SMS. Redis failures fall back to the DB.
type Settings struct {
	rds  *redis.Client
	repo repository.SettingsRepository
	ttl  time.Duration
}

func NewSettings(rds *redis.Client, repo repository.SettingsRepository, ttl time.Duration) *Settings {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Settings{rds: rds, repo: repo, ttl: ttl}
}

func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	if s.rds != nil {
		v, err := s.rds.Get(ctx, keyPrefix+key).Result()
		if err == nil {
			return v, true, nil
		}
		// redis.Nil and transport errors both fall through to the DB
	}

	v, ok, err := s.repo.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}

	if s.rds != nil {
		_ = s.rds.Set(ctx, keyPrefix+key, v, s.ttl).Err()
	}
	return v, true, nil
}

// Invalidate drops a cached key after a settings write.
func (s *Settings) Invalidate(ctx context.Context, key string) {
	if s.rds != nil {
		_ = s.rds.Del(ctx, keyPrefix+key).Err()
	}
}
