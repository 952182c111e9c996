package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/FACorreiaa/go-complaint-auth/internal/cache"
	"github.com/FACorreiaa/go-complaint-auth/internal/types"
)

// UserLookup resolves an identifier to a password-free profile. A missing user
// is reported as an error wrapping api.ErrNotFound.
type UserLookup interface {
	LookupUser(ctx context.Context, id Identifier) (*types.UserProfile, error)
}

// ProfileInvalidator is implemented by lookups that hold copies of profiles.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, u *types.UserProfile)
}

var (
	_ UserLookup         = (*StoreLookup)(nil)
	_ UserLookup         = (*CachedLookup)(nil)
	_ ProfileInvalidator = (*CachedLookup)(nil)
)

// StoreLookup reads straight from the credential store.
type StoreLookup struct {
	repo AuthRepo
}

func NewStoreLookup(repo AuthRepo) *StoreLookup {
	return &StoreLookup{repo: repo}
}

func (s *StoreLookup) LookupUser(ctx context.Context, id Identifier) (*types.UserProfile, error) {
	if id.Email != "" {
		return s.repo.GetUserByEmail(ctx, id.Email)
	}
	if id.Phone != "" {
		return s.repo.GetUserByPhone(ctx, id.Phone)
	}
	return nil, ErrIdentifierRequired
}

// CachedLookup is a read-through decorator. Only UserProfile values are cached,
// so a password hash can never end up in the cache. Cache failures fall back to
// the wrapped lookup.
type CachedLookup struct {
	next   UserLookup
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedLookup(next UserLookup, store cache.Store, ttl time.Duration, logger *slog.Logger) *CachedLookup {
	return &CachedLookup{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachedLookup) LookupUser(ctx context.Context, id Identifier) (*types.UserProfile, error) {
	l := c.logger.With(slog.String("method", "LookupUser"))
	key := id.CacheKey()

	raw, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var u types.UserProfile
		jerr := json.Unmarshal(raw, &u)
		if jerr == nil {
			return &u, nil
		}
		l.WarnContext(ctx, "Discarding undecodable cached profile", slog.Any("error", jerr))
		_ = c.store.Delete(ctx, key)
	case !errors.Is(err, cache.ErrMiss):
		l.WarnContext(ctx, "Profile cache unavailable, reading from store", slog.Any("error", err))
	}

	u, err := c.next.LookupUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(u); err == nil {
		if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
			l.WarnContext(ctx, "Failed to cache profile", slog.Any("error", err))
		}
	}
	return u, nil
}

// Invalidate drops every cached entry for the user.
func (c *CachedLookup) Invalidate(ctx context.Context, u *types.UserProfile) {
	if u == nil {
		return
	}
	keys := []string{Identifier{Phone: u.Phone}.CacheKey()}
	if email := u.EmailAddress(); email != "" {
		keys = append(keys, Identifier{Email: email}.CacheKey())
	}
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			c.logger.WarnContext(ctx, "Failed to invalidate cached profile", slog.String("key", k), slog.Any("error", err))
		}
	}
}
