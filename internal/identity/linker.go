// Package identity creates users from phone, mail and openid signups and
// reconciles those identities into a single record.
package identity

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/auth_center/internal/hash"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
)

type UserStore interface {
	GetUser(ctx context.Context, filter models.UserFilter) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	SaveUser(ctx context.Context, u *models.User) error
	SetUserStatus(ctx context.Context, id string, status models.UserStatus) (bool, error)
}

// Linker never checks verification codes; callers do that before any call.
// "Already exists" conditions come back as a nil user, not an error.
type Linker struct {
	store UserStore
}

func NewLinker(store UserStore) *Linker {
	return &Linker{store: store}
}

func roleOrDefault(role models.Role) models.Role {
	if role == "" {
		return models.RoleUser
	}
	return role
}

func scopeOrDefault(scope string) string {
	if s := models.NormalizeScope(scope); s != "" {
		return s
	}
	return models.ScopeRead
}

func (l *Linker) CreatePhoneUser(ctx context.Context, phone, password string, role models.Role, scope string) (*models.User, error) {
	existing, err := l.store.GetUser(ctx, models.UserFilter{Phone: phone})
	if err != nil {
		return nil, fmt.Errorf("lookup phone user: %w", err)
	}
	if existing != nil {
		return nil, nil
	}
	return l.create(ctx, &models.User{Phone: phone, Username: phone}, password, role, scope)
}

func (l *Linker) CreateMailUser(ctx context.Context, email, password string, role models.Role, scope string) (*models.User, error) {
	existing, err := l.store.GetUser(ctx, models.UserFilter{Email: email})
	if err != nil {
		return nil, fmt.Errorf("lookup mail user: %w", err)
	}
	if existing != nil {
		return nil, nil
	}
	return l.create(ctx, &models.User{Email: email, Username: email}, password, role, scope)
}

// create returns nil when the username is already taken.
func (l *Linker) create(ctx context.Context, u *models.User, password string, role models.Role, scope string) (*models.User, error) {
	taken, err := l.store.GetUser(ctx, models.UserFilter{Username: u.Username})
	if err != nil {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if taken != nil {
		logging.FromContext(ctx).Warn("username_taken", "svc", "identity.create", "user_id", taken.ID)
		return nil, nil
	}
	pw, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = pw
	u.Role = roleOrDefault(role)
	u.Scope = scopeOrDefault(scope)
	u.Status = models.UserNew
	if err := l.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	logging.FromContext(ctx).Info("user_created", "svc", "identity.create", "user_id", u.ID)
	return u, nil
}

// CreateOrMergeOpenIDUser attaches openid to the user already holding phone,
// or creates an openid account that cannot log in with a password. merged
// reports which branch ran.
func (l *Linker) CreateOrMergeOpenIDUser(ctx context.Context, phone, openid string, role models.Role, scope string) (user *models.User, merged bool, err error) {
	existing, err := l.store.GetUser(ctx, models.UserFilter{Phone: phone})
	if err != nil {
		return nil, false, fmt.Errorf("lookup phone user: %w", err)
	}
	if existing != nil {
		if existing.OpenID != "" && existing.OpenID != openid {
			logging.FromContext(ctx).Warn("openid_replaced", "svc", "identity.merge",
				"user_id", existing.ID, "previous_openid", existing.OpenID)
		}
		existing.OpenID = openid
		if err := l.store.SaveUser(ctx, existing); err != nil {
			return nil, false, fmt.Errorf("merge openid: %w", err)
		}
		logging.FromContext(ctx).Info("openid_merged", "svc", "identity.merge", "user_id", existing.ID)
		return existing, true, nil
	}

	taken, err := l.store.GetUser(ctx, models.UserFilter{Username: openid})
	if err != nil {
		return nil, false, fmt.Errorf("lookup username: %w", err)
	}
	if taken != nil {
		return nil, false, nil
	}
	u := &models.User{
		Phone:        phone,
		OpenID:       openid,
		Username:     openid,
		PasswordHash: models.OpenIDPassword,
		Role:         roleOrDefault(role),
		Scope:        scopeOrDefault(scope),
		Status:       models.UserNew,
	}
	if err := l.store.CreateUser(ctx, u); err != nil {
		return nil, false, fmt.Errorf("create openid user: %w", err)
	}
	return u, false, nil
}

// UpgradeOpenIDUser turns an openid-only account into a phone/password one
// in place. Accounts whose username is not their openid are left alone and
// nil is returned.
func (l *Linker) UpgradeOpenIDUser(ctx context.Context, u *models.User, phone, password string, role models.Role, scope string) (*models.User, error) {
	if u == nil || u.OpenID == "" || u.OpenID != u.Username {
		return nil, nil
	}
	pw, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u.Phone = phone
	u.Username = phone
	u.PasswordHash = pw
	u.Role = roleOrDefault(role)
	u.Scope = scopeOrDefault(scope)
	if err := l.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("upgrade openid user: %w", err)
	}
	return u, nil
}

// RebindPhoneToOpenID moves the openid account onto phone. It returns nil
// when no account has openid or when the account already has phone. The
// caller must make sure phone is not owned by another user. A username that
// was the old phone follows the account to the new one.
func (l *Linker) RebindPhoneToOpenID(ctx context.Context, phone, openid string) (*models.User, error) {
	if openid == "" {
		return nil, nil
	}
	u, err := l.store.GetUser(ctx, models.UserFilter{OpenID: openid})
	if err != nil {
		return nil, fmt.Errorf("lookup openid user: %w", err)
	}
	if u == nil || u.Phone == phone {
		return nil, nil
	}
	if u.Username == u.Phone {
		u.Username = phone
	}
	u.Phone = phone
	if err := l.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("rebind phone: %w", err)
	}
	return u, nil
}

// DeleteUser blocks the account; the record stays.
func (l *Linker) DeleteUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ok, err := l.store.SetUserStatus(ctx, userID, models.UserBlocked)
	if err != nil {
		return false, fmt.Errorf("block user: %w", err)
	}
	return ok, nil
}
