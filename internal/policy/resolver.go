package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/kv"
	"github.com/diewo77/labdesk/internal/models"
)

// DBRoleResolver derives the role from the user row.
// Unknown and inactive users resolve to a nil role.
type DBRoleResolver struct {
	DB *gorm.DB
}

func NewDBRoleResolver(db *gorm.DB) *DBRoleResolver {
	return &DBRoleResolver{DB: db}
}

func (r *DBRoleResolver) Resolve(ctx context.Context, userID uint) (gate.Role, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Select("id", "is_active", "is_staff", "is_superuser").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return RoleFor(&user), nil
}

// KVRoleCache caches role names in a shared key/value store so several
// server instances see the same invalidations.
type KVRoleCache struct {
	inner gate.RoleResolver[uint]
	store kv.KV
	ttl   time.Duration
}

const roleKeyPrefix = "labdesk:role:"

func NewKVRoleCache(inner gate.RoleResolver[uint], store kv.KV, ttl time.Duration) *KVRoleCache {
	return &KVRoleCache{inner: inner, store: store, ttl: ttl}
}

func roleKey(userID uint) string {
	return fmt.Sprintf("%s%d", roleKeyPrefix, userID)
}

// Resolve reads through the store. Store errors fall back to the inner resolver.
func (c *KVRoleCache) Resolve(ctx context.Context, userID uint) (gate.Role, error) {
	if name, err := c.store.Get(ctx, roleKey(userID)); err == nil {
		if role, err := registry.Lookup(name); err == nil {
			return role, nil
		}
	}
	role, err := c.inner.Resolve(ctx, userID)
	if err != nil || role == nil {
		return role, err
	}
	_ = c.store.Set(ctx, roleKey(userID), role.Name(), c.ttl)
	return role, nil
}

// Invalidate removes the cached role of a user.
func (c *KVRoleCache) Invalidate(ctx context.Context, userID uint) {
	_ = c.store.Del(ctx, roleKey(userID))
}

// InvalidateAll drops every cached role.
func (c *KVRoleCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.store.ScanKeys(ctx, roleKeyPrefix+"*")
	if err != nil {
		return err
	}
	return c.store.Del(ctx, keys...)
}
