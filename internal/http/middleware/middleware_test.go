package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfdrepairs/repair-ops/internal/cache"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

type memSettings struct {
	values map[string]string
}

func (m *memSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memSettings) All(_ context.Context) ([]model.AdminSetting, error) {
	return nil, nil
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func doRequest(mw echo.MiddlewareFunc, mutate func(*http.Request)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = mw(okHandler)(c)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	settings := cache.NewSettings(nil, &memSettings{values: map[string]string{
		model.SettingWarrantyAPIKey: "sekrit",
	}}, time.Minute)
	mw := APIKeyMiddleware(settings)

	rec := doRequest(mw, func(r *http.Request) { r.Header.Set("X-API-KEY", "sekrit") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mw, func(r *http.Request) { r.Header.Set("X-API-KEY", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid api key")

	rec = doRequest(mw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing api key")
}

func TestAPIKeyMiddleware_NoKeyConfigured(t *testing.T) {
	settings := cache.NewSettings(nil, &memSettings{values: map[string]string{}}, time.Minute)

	rec := doRequest(APIKeyMiddleware(settings), func(r *http.Request) { r.Header.Set("X-API-KEY", "anything") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronAuthMiddleware(t *testing.T) {
	mw := CronAuthMiddleware("cron-secret")

	rec := doRequest(mw, func(r *http.Request) { r.Header.Set("Authorization", "Bearer cron-secret") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mw, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(mw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCronAuthMiddleware_EmptySecretRejectsAll(t *testing.T) {
	rec := doRequest(CronAuthMiddleware(""), func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:          rds,
		RPS:            2,
		KeyPrefix:      "rl:test:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	rec := doRequest(mw, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(mw, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mw, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limited")
}

func TestRateLimitMiddleware_BurstAboveRPS(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mw := RateLimitMiddleware(RateLimitConfig{
		Redis:  rds,
		RPS:    1,
		Burst:  3,
		Window: time.Second,
	})

	for i := 0; i < 3; i++ {
		rec := doRequest(mw, nil)
		require.Equal(t, http.StatusOK, rec.Code, "burst admits request %d", i+1)
	}

	rec := doRequest(mw, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddleware_ZeroRPSDisablesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 0})
	for i := 0; i < 10; i++ {
		rec := doRequest(mw, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitMiddleware_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	mw := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1})
	for i := 0; i < 3; i++ {
		rec := doRequest(mw, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
