// Package notify keeps track of the push-notification token registered for
// each signed-in session so a device is registered once per session and
// forgotten on logout.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// TokenCache maps a session owner (the auth token) to the push token
// registered on its behalf. The zero value is not usable; use NewTokenCache.
type TokenCache struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]string)}
}

// Get returns the push token cached for owner.
func (c *TokenCache) Get(owner string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[owner]
	return t, ok
}

// Set records token for owner.
func (c *TokenCache) Set(owner, token string) {
	c.mu.Lock()
	c.tokens[owner] = token
	c.mu.Unlock()
}

// Invalidate forgets owner and returns the token that was cached.
func (c *TokenCache) Invalidate(owner string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tokens[owner]
	delete(c.tokens, owner)
	return t, ok
}

// Len returns the number of cached sessions.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tokens)
}

// Registrar is the API side of push token registration.
type Registrar interface {
	RegisterPushToken(ctx context.Context, token string) error
	UnregisterPushToken(ctx context.Context, token string) error
}

// Service registers push tokens through a Registrar, skipping tokens the
// cache already holds for the session.
type Service struct {
	cache  *TokenCache
	api    Registrar
	logger *zap.Logger
}

// NewService wires a cache to a registrar.
func NewService(cache *TokenCache, api Registrar, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cache: cache, api: api, logger: logger}
}

// Register registers token for owner unless it is already cached. It
// reports whether an API call was made.
func (s *Service) Register(ctx context.Context, owner, token string) (bool, error) {
	if cur, ok := s.cache.Get(owner); ok && cur == token {
		return false, nil
	}
	if err := s.api.RegisterPushToken(ctx, token); err != nil {
		return true, err
	}
	s.cache.Set(owner, token)
	return true, nil
}

// Logout invalidates owner's entry and unregisters its token. Unregister
// failures are logged and otherwise ignored.
func (s *Service) Logout(ctx context.Context, owner string) {
	token, ok := s.cache.Invalidate(owner)
	if !ok {
		return
	}
	if err := s.api.UnregisterPushToken(ctx, token); err != nil {
		s.logger.Warn("unregistering push token failed", zap.Error(err))
	}
}
