// Package policy maps accounts to roles and answers authorization questions
// for services and HTTP middleware.
package policy

import (
	"context"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/auth"
	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/httpx"
	"github.com/diewo77/labdesk/internal/kv"
)

// AuthGate holds the configured HybridGate with its caches. It answers role
// questions only; record ownership is decided by Access inside the services.
type AuthGate struct {
	Gate          *gate.HybridGate[uint]
	CacheResolver *gate.CachedResolver[uint]
	shared        *KVRoleCache
}

// NewAuthGate wires DB role lookups behind an optional shared KV cache and a
// per-process TTL cache. store may be nil.
func NewAuthGate(db *gorm.DB, store kv.KV, cacheTTL time.Duration) *AuthGate {
	var resolver gate.RoleResolver[uint] = NewDBRoleResolver(db)
	var shared *KVRoleCache
	if store != nil {
		shared = NewKVRoleCache(resolver, store, cacheTTL)
		resolver = shared
	}
	cached := gate.NewCachedResolver[uint](resolver, cacheTTL)
	ag := &AuthGate{
		Gate:          gate.NewHybridGate[uint](cached),
		CacheResolver: cached,
		shared:        shared,
	}
	return ag
}

// Actor resolves the authenticated actor of ctx.
func (ag *AuthGate) Actor(ctx context.Context) (Actor, bool) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return Actor{}, false
	}
	role := ag.Gate.RoleOf(ctx, userID)
	if role == nil {
		return Actor{}, false
	}
	return Actor{UserID: userID, Role: role}, true
}

// CanRole checks only role permissions, used by templates.
func (ag *AuthGate) CanRole(ctx context.Context, action gate.Action, resourceType string) bool {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanRole(ctx, userID, action, resourceType)
}

// Invalidate clears every cache layer for a user whose flags changed.
func (ag *AuthGate) Invalidate(ctx context.Context, userID uint) {
	if ag.shared != nil {
		ag.shared.Invalidate(ctx, userID)
	}
	ag.CacheResolver.Invalidate(ctx, userID)
}

// VerifyUser reports whether the session user still resolves to a role,
// which excludes deleted and deactivated accounts.
func (ag *AuthGate) VerifyUser(ctx context.Context, userID uint) bool {
	return ag.Gate.RoleOf(ctx, userID) != nil
}

func forbid(w http.ResponseWriter, r *http.Request) {
	if httpx.WantsJSON(r) {
		httpx.Fail(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// RequirePermission returns middleware that checks the role permission.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ag.CanRole(r.Context(), action, resourceType) {
				forbid(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperuser only allows roles holding "*:*".
func (ag *AuthGate) RequireSuperuser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ag.Actor(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			if !actor.Role.HasPermission(gate.PermissionAll) {
				forbid(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
