package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
	"github.com/diewo77/labdesk/internal/validation"
)

// MaxProfileImageBytes caps uploaded profile pictures.
const MaxProfileImageBytes = 1 << 20

var profileImageTypes = []string{"image/jpeg", "image/png"}

// RoleInvalidator drops cached roles after account flags change.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID uint)
}

// SignupInput is the registration form.
type SignupInput struct {
	Username    string
	Password1   string
	Password2   string
	FullName    string
	AccountType string
	OrgName     string
	RoleInOrg   string
	Phone       string
	Address     string
}

// ProfileInput is the profile edit form.
type ProfileInput struct {
	Email       string
	FullName    string
	AccountType string
	OrgName     string
	RoleInOrg   string
	Phone       string
	Address     string
	City        string
	Country     string
}

// NewUser describes an account created from the command line.
type NewUser struct {
	Username    string
	Email       string
	Password    string
	IsStaff     bool
	IsSuperuser bool
}

// AccountService manages users, profiles and credentials.
type AccountService struct {
	db          *gorm.DB
	store       blob.Store
	log         *zap.Logger
	access      policy.Access
	invalidator RoleInvalidator
	now         func() time.Time
}

func NewAccountService(gdb *gorm.DB, store blob.Store, log *zap.Logger, inv RoleInvalidator) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{db: gdb, store: store, log: log, invalidator: inv, now: time.Now}
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Signup registers a client account and its profile in one transaction.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	v := validation.Violations{}
	validation.Required("username", username, v)
	validation.Required("password1", in.Password1, v)
	if in.Password1 != "" {
		validation.Password("password1", in.Password1, v)
	}
	if in.Password1 != in.Password2 {
		v.Add("password2", "password_mismatch")
	}
	accountType := models.AccountType(strings.TrimSpace(in.AccountType))
	if accountType == "" {
		accountType = models.AccountOrganization
	}
	if !accountType.Valid() {
		v.Add("account_type", "invalid_choice")
	}
	if accountType == models.AccountOrganization {
		validation.Required("org_name", in.OrgName, v)
		validation.Required("role_in_org", in.RoleInOrg, v)
	}
	if username != "" {
		taken, err := s.usernameTaken(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken {
			v.Add("username", "username_taken")
		}
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	hash, err := hashPassword(in.Password1)
	if err != nil {
		return nil, err
	}
	user := models.User{Username: username, Password: hash, IsActive: true}
	if strings.Contains(username, "@") {
		user.Email = username
	}
	profile := models.Profile{
		FullName:    strings.TrimSpace(in.FullName),
		AccountType: accountType,
		OrgName:     strings.TrimSpace(in.OrgName),
		RoleInOrg:   strings.TrimSpace(in.RoleInOrg),
		Phone:       strings.TrimSpace(in.Phone),
		Address:     strings.TrimSpace(in.Address),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		clientID, err := models.NextClientID(tx)
		if err != nil {
			return err
		}
		profile.UserID = user.ID
		profile.ClientID = clientID
		return tx.Create(&profile).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, invalid(validation.Violations{"username": "username_taken"})
		}
		return nil, fmt.Errorf("signup: %w", err)
	}
	user.Profile = &profile
	s.log.Info("account created", zap.Uint("user_id", user.ID), zap.String("client_id", profile.ClientID))
	return &user, nil
}

func (s *AccountService) usernameTaken(ctx context.Context, username string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

// CreateUser creates an active account with a profile, used by the CLI.
func (s *AccountService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	v := validation.Violations{}
	validation.Required("username", in.Username, v)
	validation.Required("password", in.Password, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.TrimSpace(in.Email),
		Password:    hash,
		IsActive:    true,
		IsStaff:     in.IsStaff || in.IsSuperuser,
		IsSuperuser: in.IsSuperuser,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		clientID, err := models.NextClientID(tx)
		if err != nil {
			return err
		}
		profile := models.Profile{UserID: user.ID, AccountType: models.AccountSelf, ClientID: clientID}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}
		user.Profile = &profile
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, invalid(validation.Violations{"username": "username_taken"})
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// resolveUsername maps a login to a username: by email when it contains
// "@", by profile phone when it contains a digit, else by username, all
// case-insensitive. Without exactly one active match the login is used as is.
func (s *AccountService) resolveUsername(ctx context.Context, login string) (string, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("users.is_active = ?", true)
	switch {
	case strings.Contains(login, "@"):
		q = q.Where("LOWER(users.email) = LOWER(?)", login)
	case hasDigit(login):
		q = q.Joins("JOIN profiles ON profiles.user_id = users.id").
			Where("LOWER(profiles.phone) = LOWER(?)", login)
	default:
		q = q.Where("LOWER(users.username) = LOWER(?)", login)
	}
	var names []string
	if err := q.Limit(2).Pluck("users.username", &names).Error; err != nil {
		return "", fmt.Errorf("resolve login: %w", err)
	}
	if len(names) == 1 {
		return names[0], nil
	}
	return login, nil
}

// Authenticate checks credentials and stamps the last login time.
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	username, err := s.resolveUsername(ctx, login)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now
	return &user, nil
}

// EnsureProfile returns the user's profile, creating it with a fresh client
// id when missing.
func (s *AccountService) EnsureProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clientID, err := models.NextClientID(tx)
		if err != nil {
			return err
		}
		profile = models.Profile{UserID: userID, AccountType: models.AccountOrganization, ClientID: clientID}
		return tx.Create(&profile).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			// created concurrently
			if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err == nil {
				return &profile, nil
			}
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile saves the actor's own profile and email.
func (s *AccountService) UpdateProfile(ctx context.Context, actor policy.Actor, in ProfileInput, image *Upload) (*models.Profile, error) {
	if actor.Anonymous() {
		return nil, ErrForbidden
	}
	v := validation.Violations{}
	email := strings.TrimSpace(in.Email)
	validation.Required("email", email, v)
	if email != "" && !strings.Contains(email, "@") {
		v.Add("email", "invalid_email")
	}
	fullName := strings.TrimSpace(in.FullName)
	validation.LettersAndSpaces("full_name", fullName, v)
	accountType := models.AccountType(strings.TrimSpace(in.AccountType))
	if accountType == "" {
		accountType = models.AccountOrganization
	}
	if !accountType.Valid() {
		v.Add("account_type", "invalid_choice")
	}
	if image != nil && image.Body != nil {
		validation.MaxBytes("profile_image", image.Size, MaxProfileImageBytes, v)
		validation.ContentType("profile_image", image.ContentType, profileImageTypes, v)
	}
	if err := invalid(v); err != nil {
		return nil, err
	}

	profile, err := s.EnsureProfile(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	key, err := storeUpload(ctx, s.store, PrefixProfileImages, image)
	if err != nil {
		return nil, err
	}
	profile.FullName = fullName
	profile.AccountType = accountType
	profile.OrgName = strings.TrimSpace(in.OrgName)
	profile.RoleInOrg = strings.TrimSpace(in.RoleInOrg)
	profile.Phone = strings.TrimSpace(in.Phone)
	profile.Address = strings.TrimSpace(in.Address)
	profile.City = strings.TrimSpace(in.City)
	profile.Country = strings.TrimSpace(in.Country)
	if key != "" {
		profile.ProfileImage = key
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: actor.UserID}).Update("email", email).Error; err != nil {
			return err
		}
		return tx.Save(profile).Error
	})
	if err != nil {
		discardUpload(ctx, s.store, s.log, key)
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// ChangePassword replaces the actor's password after checking the old one.
func (s *AccountService) ChangePassword(ctx context.Context, actor policy.Actor, oldPassword, newPassword, confirm string) error {
	if actor.Anonymous() {
		return ErrForbidden
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, actor.UserID).Error; err != nil {
		return notFound(err, "user")
	}
	v := validation.Violations{}
	if newPassword != confirm {
		v.Add("confirm_password", "password_mismatch")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		v.Add("old_password", "password_incorrect")
	}
	validation.Password("new_password", newPassword, v)
	if err := invalid(v); err != nil {
		return err
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("save password: %w", err)
	}
	return nil
}

// SetStaff grants or revokes staff access. Superusers only.
func (s *AccountService) SetStaff(ctx context.Context, actor policy.Actor, userID uint, staff bool) (*models.User, error) {
	if !s.access.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFound(err, "user")
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("is_staff", staff).Error; err != nil {
		return nil, fmt.Errorf("save staff flag: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, user.ID)
	}
	s.log.Info("staff flag changed", zap.Uint("user_id", user.ID), zap.Bool("staff", staff), zap.Uint("by", actor.UserID))
	return &user, nil
}

// ListUsers returns every account with its profile. Superusers only.
func (s *AccountService) ListUsers(ctx context.Context, actor policy.Actor) ([]models.User, error) {
	if !s.access.CanManageUsers(actor) {
		return nil, ErrForbidden
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Profile").Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get loads a user with its profile.
func (s *AccountService) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Profile").First(&user, userID).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}
