package upstream

import (
	"context"
	"time"

	"healthbff/internal/enrichment/models"
	"healthbff/internal/permissions"
)

// Cache is the subset of internal/cache the decorators need.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, v any, ttl time.Duration)
}

type userInfoFetcher interface {
	FetchUserInfo(ctx context.Context, subjectID string) (*models.UserInfo, error)
}

type eligibilityFetcher interface {
	FetchEligibility(ctx context.Context, enterpriseID string) (*models.Eligibility, error)
}

type permissionsFetcher interface {
	FetchManagedMembers(ctx context.Context, subjectID string) ([]permissions.DependentAccess, error)
}

// Cache keys. Evictions issued by operators use the same form.
func UserInfoKey(subjectID string) string       { return "userinfo:" + subjectID }
func EligibilityKey(enterpriseID string) string { return "eligibility:" + enterpriseID }
func PermissionsKey(subjectID string) string    { return "permissions:" + subjectID }

// CachedUserInfo serves identity lookups from cache, falling through to next.
// Only successful responses are cached.
type CachedUserInfo struct {
	next  userInfoFetcher
	cache Cache
	ttl   time.Duration
}

func NewCachedUserInfo(next userInfoFetcher, cache Cache, ttl time.Duration) *CachedUserInfo {
	return &CachedUserInfo{next: next, cache: cache, ttl: ttl}
}

func (c *CachedUserInfo) FetchUserInfo(ctx context.Context, subjectID string) (*models.UserInfo, error) {
	key := UserInfoKey(subjectID)
	var hit models.UserInfo
	if c.cache.Get(ctx, key, &hit) {
		return &hit, nil
	}
	info, err := c.next.FetchUserInfo(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, info, c.ttl)
	return info, nil
}

type CachedEligibility struct {
	next  eligibilityFetcher
	cache Cache
	ttl   time.Duration
}

func NewCachedEligibility(next eligibilityFetcher, cache Cache, ttl time.Duration) *CachedEligibility {
	return &CachedEligibility{next: next, cache: cache, ttl: ttl}
}

func (c *CachedEligibility) FetchEligibility(ctx context.Context, enterpriseID string) (*models.Eligibility, error) {
	key := EligibilityKey(enterpriseID)
	var hit models.Eligibility
	if c.cache.Get(ctx, key, &hit) {
		return &hit, nil
	}
	el, err := c.next.FetchEligibility(ctx, enterpriseID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, el, c.ttl)
	return el, nil
}

type CachedPermissions struct {
	next  permissionsFetcher
	cache Cache
	ttl   time.Duration
}

func NewCachedPermissions(next permissionsFetcher, cache Cache, ttl time.Duration) *CachedPermissions {
	return &CachedPermissions{next: next, cache: cache, ttl: ttl}
}

func (c *CachedPermissions) FetchManagedMembers(ctx context.Context, subjectID string) ([]permissions.DependentAccess, error) {
	key := PermissionsKey(subjectID)
	var hit []permissions.DependentAccess
	if c.cache.Get(ctx, key, &hit) {
		return hit, nil
	}
	members, err := c.next.FetchManagedMembers(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ctx, key, members, c.ttl)
	return members, nil
}
