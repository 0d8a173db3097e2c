// internal/middleware/session.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/cache"
	"github.com/saptechnologies/sap-backend/internal/config"
)

// Session keys
const (
	SessionKeyUserID = "user_id"
)

const sessionKeyPrefix = "sessions:"

// NewSessionManager returns an scs manager whose sessions live in the application cache, so they
// are shared between instances whenever the cache is Redis.
func NewSessionManager(cfg *config.Config, c cache.Cache) *scs.SessionManager {
	sm := scs.New()
	sm.Store = &cacheStore{cache: c}
	sm.Lifetime = cfg.Session.Lifetime
	sm.IdleTimeout = cfg.Session.IdleTimeout
	sm.Cookie.Name = cfg.Session.CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.IsProduction()
	sm.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		logrus.WithError(err).WithField("path", r.URL.Path).Error("Session error")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"INTERNAL_ERROR","message":"Session unavailable"}}`))
	}
	return sm
}

// cacheStore implements scs.Store and scs.CtxStore on top of cache.Cache.
type cacheStore struct {
	cache cache.Cache
}

func (s *cacheStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	b, err := s.cache.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *cacheStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return s.cache.Delete(ctx, sessionKeyPrefix+token)
	}
	return s.cache.Set(ctx, sessionKeyPrefix+token, b, ttl)
}

func (s *cacheStore) DeleteCtx(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+token)
}

func (s *cacheStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *cacheStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *cacheStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

var (
	_ scs.Store    = (*cacheStore)(nil)
	_ scs.CtxStore = (*cacheStore)(nil)
)
