package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/auth_center/internal/events"
	"github.com/Skotchmaster/auth_center/internal/grant"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/Skotchmaster/auth_center/internal/validate"
)

// App adds the end-user flows: signups, rebind, code login and sessions.
type App struct {
	*Core
}

func NewApp(core *Core) *App {
	return &App{Core: core}
}

func invalidCode() transport.Reply {
	return transport.Failure(http.StatusBadRequest, transport.Reason(transport.InvalidCode), "Code is invalid.")
}

func invalidClient() transport.Reply {
	return transport.Failure(http.StatusBadRequest, transport.Reason(transport.InvalidClient), "Client is invalid!")
}

func missingClient() transport.Reply {
	return transport.Failure(http.StatusUnprocessableEntity, nil, "Please fill client_id or client_secret field!")
}

func unprocessable(errs ...error) transport.Reply {
	return transport.Failure(http.StatusUnprocessableEntity, nil, errors.Join(errs...).Error())
}

func (a *App) MailSignup(ctx context.Context, req transport.MailSignupRequest) (transport.Reply, error) {
	l := logging.FromContext(ctx).With("svc", "auth.mail_signup")

	email, emailErr := validate.Email(req.Email)
	if pwErr := validate.Password(req.Password, req.ConfirmPassword); emailErr != nil || pwErr != nil {
		return unprocessable(emailErr, pwErr), nil
	}
	if req.Missing() {
		return missingClient(), nil
	}
	if !a.checkCode(ctx, email, req.Code) {
		return invalidCode(), nil
	}
	ok, err := a.signupClient(ctx, req.ClientCredentials)
	if err != nil {
		return transport.Reply{}, err
	}
	if !ok {
		return invalidClient(), nil
	}

	existing, err := a.Store.GetUser(ctx, models.UserFilter{Email: email})
	if err != nil {
		return transport.Reply{}, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return transport.Warning(transport.Reason(transport.EmailExists), "Account with that email address already exists."), nil
	}
	u, err := a.Linker.CreateMailUser(ctx, email, req.Password, a.Policy.Role, models.ScopeRead)
	if err != nil {
		return transport.Reply{}, err
	}
	if u == nil {
		return transport.Warning(transport.Reason(transport.InvalidUser), "Signup failed."), nil
	}
	l.Info("signup_succeeded", "user_id", u.ID)
	a.publish(ctx, events.UserSignedUp, u, map[string]any{"via": "mail"})
	a.Codes.Consume(ctx, email)

	return a.Token(ctx, transport.TokenRequest{
		ClientCredentials: req.ClientCredentials,
		GrantType:         string(models.GrantPassword),
		Username:          u.Username,
		Password:          req.Password,
		Scope:             models.ScopeRead,
	})
}

func (a *App) PhoneSignup(ctx context.Context, req transport.PhoneSignupRequest) (transport.Reply, error) {
	l := logging.FromContext(ctx).With("svc", "auth.phone_signup")

	phone, phoneErr := validate.Phone(req.Phone.String())
	if pwErr := validate.Password(req.Password, req.ConfirmPassword); phoneErr != nil || pwErr != nil {
		return unprocessable(phoneErr, pwErr), nil
	}
	if req.Missing() {
		return missingClient(), nil
	}
	if !a.checkCode(ctx, phone, req.Code) {
		return invalidCode(), nil
	}
	ok, err := a.signupClient(ctx, req.ClientCredentials)
	if err != nil {
		return transport.Reply{}, err
	}
	if !ok {
		return invalidClient(), nil
	}

	existing, err := a.Store.GetUser(ctx, models.UserFilter{Phone: phone})
	if err != nil {
		return transport.Reply{}, fmt.Errorf("lookup phone: %w", err)
	}
	var u *models.User
	if existing != nil {
		u, err = a.Linker.UpgradeOpenIDUser(ctx, existing, phone, req.Password, a.Policy.Role, models.ScopeRead)
		if err != nil {
			return transport.Reply{}, err
		}
		if u == nil {
			return transport.Warning(transport.Reason(transport.PhoneExists), "Account with that phone number already exists."), nil
		}
		l.Info("openid_user_upgraded", "user_id", u.ID)
		a.publish(ctx, events.UserUpgraded, u, nil)
	} else {
		u, err = a.Linker.CreatePhoneUser(ctx, phone, req.Password, a.Policy.Role, models.ScopeRead)
		if err != nil {
			return transport.Reply{}, err
		}
		if u == nil {
			return transport.Warning(transport.Reason(transport.InvalidUser), "Signup failed."), nil
		}
		l.Info("signup_succeeded", "user_id", u.ID)
		a.publish(ctx, events.UserSignedUp, u, map[string]any{"via": "phone"})
	}
	a.Codes.Consume(ctx, phone)

	return a.Token(ctx, transport.TokenRequest{
		ClientCredentials: req.ClientCredentials,
		GrantType:         string(models.GrantPassword),
		Username:          u.Username,
		Password:          req.Password,
		Scope:             models.ScopeRead,
	})
}

// MiniSignup signs up (or merges) an openid account and logs it in through
// the authorization_code grant.
func (a *App) MiniSignup(ctx context.Context, req transport.MiniSignupRequest) (transport.Reply, error) {
	l := logging.FromContext(ctx).With("svc", "auth.mini_signup")

	phone, err := validate.Phone(req.Phone.String())
	if err != nil {
		return unprocessable(err), nil
	}
	if req.OpenID == "" || req.Missing() {
		return transport.Failure(http.StatusUnprocessableEntity, nil, "Please fill openid/client_id/client_secret field!"), nil
	}
	if !a.checkCode(ctx, phone, req.Code) {
		return invalidCode(), nil
	}
	ok, err := a.signupClient(ctx, req.ClientCredentials)
	if err != nil {
		return transport.Reply{}, err
	}
	if !ok {
		return invalidClient(), nil
	}

	u, err := a.Store.GetUser(ctx, models.UserFilter{OpenID: req.OpenID})
	if err != nil {
		return transport.Reply{}, fmt.Errorf("lookup openid: %w", err)
	}
	if u != nil && u.Phone != phone {
		return transport.Warning(transport.Reason(transport.PhoneExists),
			fmt.Sprintf("The account is already bound to a phone number other than %s.", MaskPhone(phone))), nil
	}
	if u == nil {
		var merged bool
		u, merged, err = a.Linker.CreateOrMergeOpenIDUser(ctx, phone, req.OpenID, a.Policy.Role, models.ScopeRead)
		if err != nil {
			return transport.Reply{}, err
		}
		if u == nil {
			return transport.Warning(transport.Reason(transport.InvalidUser), "Create user failed."), nil
		}
		if merged {
			l.Info("openid_merged", "user_id", u.ID)
			a.publish(ctx, events.UserMerged, u, nil)
		} else {
			l.Info("signup_succeeded", "user_id", u.ID)
			a.publish(ctx, events.UserSignedUp, u, map[string]any{"via": "openid"})
		}
	}
	a.Codes.Consume(ctx, phone)

	return a.tokenViaCode(ctx, u, req.ClientCredentials, models.ScopeRead)
}

// RebindPhone moves the caller's openid account onto a new phone number.
// The phone must not belong to anyone yet.
func (a *App) RebindPhone(ctx context.Context, p *grant.Principal, req transport.RebindRequest) (transport.Reply, error) {
	phone, err := validate.Phone(req.Phone.String())
	if err != nil {
		return unprocessable(err), nil
	}
	if !a.checkCode(ctx, phone, req.Code) {
		return invalidCode(), nil
	}

	owner, err := a.Store.GetUser(ctx, models.UserFilter{Phone: phone})
	if err != nil {
		return transport.Reply{}, fmt.Errorf("lookup phone: %w", err)
	}
	if owner != nil {
		return transport.Warning(transport.Reason(transport.PhoneExists), "The phone is already existed in system."), nil
	}
	if p != nil && p.User != nil && p.User.OpenID != req.OpenID {
		return transport.Warning(transport.Reason(transport.InvalidInfo), "Invalid openid."), nil
	}

	u, err := a.Linker.RebindPhoneToOpenID(ctx, phone, req.OpenID)
	if err != nil {
		return transport.Reply{}, err
	}
	if u == nil {
		return transport.Warning(transport.Reason(transport.InvalidInfo), "Invalid openid."), nil
	}
	a.Codes.Consume(ctx, phone)
	a.publish(ctx, events.UserPhoneRebound, u, nil)
	logging.FromContext(ctx).Info("phone_rebound", "svc", "auth.rebind_phone", "user_id", u.ID)
	return transport.OK(u), nil
}

// CodeLogin logs a phone user in with a verification code instead of a
// password.
func (a *App) CodeLogin(ctx context.Context, req transport.CodeLoginRequest) (transport.Reply, error) {
	phone := req.Username.String()
	if canonical, err := validate.Phone(phone); err == nil {
		phone = canonical
	}
	if !a.checkCode(ctx, phone, req.Code) {
		return transport.Failure(http.StatusBadRequest, transport.Reason(transport.InvalidCode), "Code is not valid."), nil
	}
	if req.Missing() {
		return missingClient(), nil
	}

	u, err := a.Store.GetUser(ctx, models.UserFilter{Phone: phone})
	if err != nil {
		return transport.Reply{}, fmt.Errorf("lookup phone: %w", err)
	}
	if u == nil {
		return transport.Warning(transport.Reason(transport.InvalidUser), "The user is notfound."), nil
	}

	r, err := a.tokenViaCode(ctx, u, req.ClientCredentials, req.Scope)
	if err != nil {
		return transport.Reply{}, err
	}
	if r.Code == transport.KindSuccess {
		a.Codes.Consume(ctx, phone)
	}
	return r, nil
}

func (a *App) Authorize(ctx context.Context, p *grant.Principal, req transport.AuthorizeRequest) (transport.Reply, error) {
	if p == nil {
		return transport.Warning(transport.Reason(transport.InvalidAuthorize), "Invalid token."), nil
	}
	code, err := a.Engine.Authorize(ctx, grant.AuthorizeRequest{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       req.Scope,
		User:        p.User,
		ClientType:  a.clientType(),
	})
	var rej *grant.Rejection
	if errors.As(err, &rej) {
		return transport.Warning(transport.Reason(transport.InvalidAuthorize), rej.Error()), nil
	}
	if err != nil {
		return transport.Reply{}, fmt.Errorf("authorize: %w", err)
	}
	return transport.OK(code), nil
}

// Clean hard-deletes the caller's own account. Other users are left to the
// admin surface.
func (a *App) Clean(ctx context.Context, p *grant.Principal, userID string) (transport.Reply, error) {
	if p == nil || userID == "" || p.UserID != userID {
		return transport.Failure(http.StatusForbidden, transport.Reason(transport.InvalidAuthorize), "Forbidden."), nil
	}
	return a.Core.Clean(ctx, userID)
}

func (a *App) Logout(ctx context.Context, p *grant.Principal) (transport.Reply, error) {
	ok, err := a.Engine.Revoke(ctx, p)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("revoke: %w", err)
	}
	if !ok {
		return transport.Warning(transport.Reason(transport.InvalidAuthorize), "Invalid token."), nil
	}
	logging.FromContext(ctx).Info("logout_succeeded", "svc", "auth.logout", "user_id", p.UserID)
	return transport.OK(nil), nil
}
