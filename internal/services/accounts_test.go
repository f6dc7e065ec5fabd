package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/models"
)

type invalidations struct{ ids []uint }

func (i *invalidations) Invalidate(_ context.Context, userID uint) { i.ids = append(i.ids, userID) }

func validSignup(username string) SignupInput {
	return SignupInput{
		Username:    username,
		Password1:   "Secret123",
		Password2:   "Secret123",
		AccountType: "organization",
		OrgName:     "Acme",
		RoleInOrg:   "Engineer",
	}
}

func TestSignup_ClientIDsIncrease(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a@example.com", "bob", "carol"} {
		u, err := svc.Signup(ctx, validSignup(name))
		require.NoError(t, err)
		require.NotNil(t, u.Profile)
		ids = append(ids, u.Profile.ClientID)
	}
	assert.Equal(t, []string{"000001", "000002", "000003"}, ids)

	var u models.User
	require.NoError(t, db.Where("username = ?", "a@example.com").First(&u).Error)
	assert.Equal(t, "a@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "Secret123", u.Password)
}

func TestSignup_Validation(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	in := validSignup("dave")
	in.Password1, in.Password2 = "weakpass", "other"
	in.OrgName = ""
	_, err := svc.Signup(ctx, in)
	v, ok := AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, "password_needs_upper", v["password1"])
	assert.Equal(t, "password_mismatch", v["password2"])
	assert.Equal(t, "required", v["org_name"])

	self := validSignup("erin")
	self.AccountType, self.OrgName, self.RoleInOrg = "self", "", ""
	_, err = svc.Signup(ctx, self)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, validSignup("ERIN"))
	v, ok = AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, "username_taken", v["username"])
}

func TestAuthenticate_Resolution(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	in := validSignup("frank")
	in.Phone = "+880 1711"
	u, err := svc.Signup(ctx, in)
	require.NoError(t, err)
	require.NoError(t, db.Model(u).Update("email", "Frank@Example.com").Error)

	for _, login := range []string{"frank", "FRANK", "frank@example.com", "+880 1711"} {
		got, err := svc.Authenticate(ctx, login, "Secret123")
		require.NoError(t, err, login)
		assert.Equal(t, u.ID, got.ID, login)
		assert.NotNil(t, got.LastLogin)
	}

	_, err = svc.Authenticate(ctx, "frank", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "nobody", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_AmbiguousAndInactive(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	for _, name := range []string{"gina", "hank"} {
		in := validSignup(name)
		in.Phone = "555-0100"
		_, err := svc.Signup(ctx, in)
		require.NoError(t, err)
	}
	// two accounts share the phone: the login is tried as a username
	_, err := svc.Authenticate(ctx, "555-0100", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "gina").Update("is_active", false).Error)
	_, err = svc.Authenticate(ctx, "gina", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureProfile(t *testing.T) {
	db := setupDB(t)
	u := createUser(t, db, "ivy", false, false)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	p, err := svc.EnsureProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "000001", p.ClientID)

	again, err := svc.EnsureProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, "000001", again.ClientID)
}

func TestUpdateProfile(t *testing.T) {
	db := setupDB(t)
	u := createUser(t, db, "jack", false, false)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, actorOf(u), ProfileInput{FullName: "Jack 2"},
		&Upload{Filename: "x.gif", ContentType: "image/gif", Size: MaxProfileImageBytes + 1, Body: strings.NewReader("x")})
	v, ok := AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, "required", v["email"])
	assert.Equal(t, "letters_spaces_only", v["full_name"])
	assert.Equal(t, "file_too_large", v["profile_image"])

	p, err := svc.UpdateProfile(ctx, actorOf(u), ProfileInput{Email: "jack@example.com", FullName: "Jack Smith", City: "Dhaka"},
		&Upload{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "Jack Smith", p.FullName)
	assert.True(t, strings.HasPrefix(p.ProfileImage, PrefixProfileImages+"/"))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, u.ID).Error)
	assert.Equal(t, "jack@example.com", reloaded.Email)
}

// keyRecorder remembers every key written through it.
type keyRecorder struct {
	blob.Store
	keys []string
}

func (k *keyRecorder) Put(ctx context.Context, key string, r io.Reader, contentType string) (blob.Info, error) {
	info, err := k.Store.Put(ctx, key, r, contentType)
	if err == nil {
		k.keys = append(k.keys, info.Key)
	}
	return info, err
}

func TestUpdateProfile_FailedSaveRemovesImage(t *testing.T) {
	db := setupDB(t)
	u := createUser(t, db, "jack", false, false)
	store := &keyRecorder{Store: memStore()}
	svc := NewAccountService(db, store, nil, nil)
	ctx := context.Background()

	_, err := svc.EnsureProfile(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}))

	_, err = svc.UpdateProfile(ctx, actorOf(u), ProfileInput{Email: "jack@example.com", FullName: "Jack Smith"},
		&Upload{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	require.Error(t, err)

	require.Len(t, store.keys, 1)
	_, _, err = store.Get(ctx, store.keys[0])
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	db := setupDB(t)
	u := createUser(t, db, "kim", false, false)
	svc := NewAccountService(db, memStore(), nil, nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, actorOf(u), "nope", "NewSecret1", "NewSecret2")
	v, ok := AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, "password_incorrect", v["old_password"])
	assert.Equal(t, "password_mismatch", v["confirm_password"])

	require.NoError(t, svc.ChangePassword(ctx, actorOf(u), "Secret123", "NewSecret1", "NewSecret1"))
	_, err = svc.Authenticate(ctx, "kim", "NewSecret1")
	assert.NoError(t, err)
}

func TestSetStaff(t *testing.T) {
	db := setupDB(t)
	root := createUser(t, db, "root", true, true)
	staff := createUser(t, db, "staff", true, false)
	client := createUser(t, db, "client", false, false)
	inv := &invalidations{}
	svc := NewAccountService(db, memStore(), nil, inv)
	ctx := context.Background()

	_, err := svc.SetStaff(ctx, actorOf(staff), client.ID, true)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListUsers(ctx, actorOf(staff))
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := svc.SetStaff(ctx, actorOf(root), client.ID, true)
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.Equal(t, []uint{client.ID}, inv.ids)

	_, err = svc.SetStaff(ctx, actorOf(root), 999, true)
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := svc.ListUsers(ctx, actorOf(root))
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestCreateUser(t *testing.T) {
	db := setupDB(t)
	svc := NewAccountService(db, memStore(), nil, nil)

	u, err := svc.CreateUser(context.Background(), NewUser{Username: "admin", Password: "pw", IsSuperuser: true})
	require.NoError(t, err)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)
	require.NotNil(t, u.Profile)
	assert.Equal(t, "000001", u.Profile.ClientID)

	_, err = svc.CreateUser(context.Background(), NewUser{Username: "admin", Password: "pw"})
	v, ok := AsViolations(err)
	require.True(t, ok)
	assert.Equal(t, "username_taken", v["username"])
}
