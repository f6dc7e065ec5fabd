package policy_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/labdesk/internal/auth"
	"github.com/diewo77/labdesk/internal/gate"
	"github.com/diewo77/labdesk/internal/kv"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, staff, super, active bool) models.User {
	t.Helper()
	u := models.User{Username: name, Password: "x", IsActive: active, IsStaff: staff, IsSuperuser: super}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func TestDBRoleResolver(t *testing.T) {
	db := openDB(t)
	client := createUser(t, db, "client", false, false, true)
	staff := createUser(t, db, "staff", true, false, true)
	gone := createUser(t, db, "gone", false, false, false)
	r := policy.NewDBRoleResolver(db)
	ctx := context.Background()

	role, err := r.Resolve(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, role.Name())

	role, err = r.Resolve(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleStaff, role.Name())

	role, err = r.Resolve(ctx, gone.ID)
	require.NoError(t, err)
	assert.Nil(t, role)

	role, err = r.Resolve(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestKVRoleCache(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	client, _ := policy.Registry().Lookup(policy.RoleClient)
	staff, _ := policy.Registry().Lookup(policy.RoleStaff)
	inner.Set(1, client)
	store := kv.NewMemory()
	c := policy.NewKVRoleCache(inner, store, time.Minute)
	ctx := context.Background()

	role, err := c.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleClient, role.Name())

	inner.Set(1, staff)
	role, _ = c.Resolve(ctx, 1)
	assert.Equal(t, policy.RoleClient, role.Name(), "served from the shared store")

	c.Invalidate(ctx, 1)
	role, _ = c.Resolve(ctx, 1)
	assert.Equal(t, policy.RoleStaff, role.Name())

	require.NoError(t, c.InvalidateAll(ctx))
	_, err = store.Get(ctx, "labdesk:role:1")
	assert.ErrorIs(t, err, kv.ErrMiss)
}

func TestAuthGateMiddlewareAndInvalidate(t *testing.T) {
	db := openDB(t)
	client := createUser(t, db, "client", false, false, true)
	super := createUser(t, db, "root", true, true, true)
	ag := policy.NewAuthGate(db, kv.NewMemory(), time.Minute)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	staffOnly := ag.RequirePermission(policy.ResourceRequest, gate.ActionSetStatus)(ok)
	superOnly := ag.RequireSuperuser()(ok)

	do := func(h http.Handler, uid uint) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusForbidden, do(staffOnly, client.ID))
	assert.Equal(t, http.StatusNoContent, do(staffOnly, super.ID))
	assert.Equal(t, http.StatusForbidden, do(superOnly, client.ID))
	assert.Equal(t, http.StatusNoContent, do(superOnly, super.ID))

	var acc policy.Access
	ctx := auth.WithUserID(context.Background(), client.ID)
	clientActor, found := ag.Actor(ctx)
	require.True(t, found)
	assert.True(t, acc.CanView(clientActor, client.ID))
	assert.False(t, acc.CanView(clientActor, super.ID))

	superActor, found := ag.Actor(auth.WithUserID(context.Background(), super.ID))
	require.True(t, found)
	assert.True(t, acc.CanView(superActor, client.ID))

	// promote the client; cached role survives until invalidated
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", client.ID).Update("is_staff", true).Error)
	assert.Equal(t, http.StatusForbidden, do(staffOnly, client.ID))
	ag.Invalidate(context.Background(), client.ID)
	assert.Equal(t, http.StatusNoContent, do(staffOnly, client.ID))

	actor, found := ag.Actor(ctx)
	require.True(t, found)
	assert.Equal(t, policy.RoleStaff, actor.Role.Name())
	assert.True(t, ag.VerifyUser(ctx, client.ID))
	assert.False(t, ag.VerifyUser(ctx, 12345))
}
