package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
)

func actors() (client, other, staff, super policy.Actor) {
	client = policy.ActorFor(&models.User{ID: 1})
	other = policy.ActorFor(&models.User{ID: 2})
	staff = policy.ActorFor(&models.User{ID: 3, IsStaff: true})
	super = policy.ActorFor(&models.User{ID: 4, IsSuperuser: true, IsStaff: true})
	return
}

func TestRoleNameFor(t *testing.T) {
	assert.Equal(t, policy.RoleClient, policy.RoleNameFor(&models.User{}))
	assert.Equal(t, policy.RoleStaff, policy.RoleNameFor(&models.User{IsStaff: true}))
	assert.Equal(t, policy.RoleSuperuser, policy.RoleNameFor(&models.User{IsSuperuser: true}))
}

func TestAccessMatrix(t *testing.T) {
	var acc policy.Access
	client, other, staff, super := actors()

	assert.True(t, acc.CanView(client, 1))
	assert.False(t, acc.CanView(other, 1))
	assert.True(t, acc.CanView(staff, 1))
	assert.True(t, acc.CanView(super, 1))

	assert.False(t, acc.CanMutateStatus(client))
	assert.True(t, acc.CanMutateStatus(staff))
	assert.True(t, acc.CanMutateStatus(super))

	assert.True(t, acc.CanUploadReceipt(client, 1))
	assert.False(t, acc.CanUploadReceipt(other, 1))
	assert.True(t, acc.CanUploadReceipt(staff, 1))

	assert.False(t, acc.CanSetItemPrice(client))
	assert.True(t, acc.CanSetItemPrice(staff))

	assert.False(t, acc.CanListAll(client))
	assert.True(t, acc.CanListAll(staff))

	assert.False(t, acc.CanManageUsers(staff))
	assert.True(t, acc.CanManageUsers(super))

	assert.False(t, acc.CanExport(client))
	assert.True(t, acc.CanExport(staff))

	assert.True(t, acc.CanCreate(client))
}

func TestAnonymousActorDenied(t *testing.T) {
	var acc policy.Access
	anon := policy.Actor{}
	assert.True(t, anon.Anonymous())
	assert.False(t, acc.CanView(anon, 0))
	assert.False(t, acc.CanUploadReceipt(anon, 0))
	assert.False(t, acc.CanCreate(anon))
}
