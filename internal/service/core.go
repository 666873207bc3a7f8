// Package service holds the request-level auth flows: the shared core, the
// app and admin surfaces built on it, and the client registry.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Skotchmaster/auth_center/internal/dispatch"
	"github.com/Skotchmaster/auth_center/internal/events"
	"github.com/Skotchmaster/auth_center/internal/grant"
	"github.com/Skotchmaster/auth_center/internal/identity"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/transport"
	"github.com/Skotchmaster/auth_center/internal/validate"
)

// Policy is what distinguishes the app and admin surfaces.
type Policy struct {
	Role       models.Role
	ClientType models.ClientType
}

var (
	AppPolicy   = Policy{Role: models.RoleUser, ClientType: models.ClientTypeApp}
	AdminPolicy = Policy{Role: models.RoleStaff, ClientType: models.ClientTypeAdmin}
)

type Store interface {
	grant.Store
	identity.UserStore
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
}

type CodeRegistry interface {
	Issue(ctx context.Context, destination string) (string, error)
	Check(ctx context.Context, destination, candidate string) bool
	Consume(ctx context.Context, destination string)
}

type Core struct {
	Engine     *grant.Engine
	Codes      CodeRegistry
	Dispatcher dispatch.CodeDispatcher
	Linker     *identity.Linker
	Store      Store
	Events     events.Publisher
	UserTopic  string
	Policy     Policy
	// Dev echoes verification codes back to the caller.
	Dev bool
}

func (s *Core) clientType() *models.ClientType {
	t := s.Policy.ClientType
	return &t
}

// Token runs a grant and maps the three outcomes onto the envelope.
func (s *Core) Token(ctx context.Context, req transport.TokenRequest) (transport.Reply, error) {
	l := logging.FromContext(ctx).With("svc", "auth.token")
	if strings.TrimSpace(req.GrantType) == "" {
		return transport.Failure(http.StatusUnauthorized, transport.Reason(transport.InvalidInfo), "the grant_type field invalid."), nil
	}

	res, err := s.Engine.IssueToken(ctx, grant.TokenRequest{
		GrantType:    req.GrantType,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Username:     req.Username,
		Password:     req.Password,
		RefreshToken: req.RefreshToken,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		Scope:        req.Scope,
		ClientType:   s.clientType(),
	})
	if err != nil {
		l.Error("token_error", "error", err)
		return transport.Reply{}, fmt.Errorf("issue token: %w", err)
	}

	switch res.Outcome {
	case grant.Issued:
		l.Info("token_issued", "user_id", res.Token.UserID, "grant_type", req.GrantType)
		return transport.OK(res.Token), nil
	case grant.CredentialMismatch:
		return transport.Warning(transport.Reason(transport.InvalidUser), "username or password invalid."), nil
	default:
		return transport.Warning(transport.Reason(transport.InvalidUser), "Unauthenticated user."), nil
	}
}

// OpenIDLogin is Token with infrastructure errors reported as a warning.
func (s *Core) OpenIDLogin(ctx context.Context, req transport.TokenRequest) (transport.Reply, error) {
	r, err := s.Token(ctx, req)
	if err != nil {
		logging.FromContext(ctx).Warn("openid_login_failed", "svc", "auth.openid_login", "error", err)
		return transport.Warning(transport.Reason(transport.InvalidAuthorize), err.Error()), nil
	}
	return r, nil
}

func (s *Core) RequestMailCode(ctx context.Context, req transport.MailCodeRequest) (transport.Reply, error) {
	email, err := validate.Email(req.Email)
	if err != nil {
		return transport.Failure(http.StatusUnprocessableEntity, nil, err.Error()), nil
	}
	return s.sendCode(ctx, email)
}

func (s *Core) RequestPhoneCode(ctx context.Context, req transport.PhoneCodeRequest) (transport.Reply, error) {
	phone, err := validate.Phone(req.Phone.String())
	if err != nil {
		return transport.Failure(http.StatusUnprocessableEntity, nil, err.Error()), nil
	}
	return s.sendCode(ctx, phone)
}

// sendCode issues before dispatching, so a failed dispatch leaves the code
// pending until it expires.
func (s *Core) sendCode(ctx context.Context, destination string) (transport.Reply, error) {
	l := logging.FromContext(ctx).With("svc", "auth.send_code", "channel", dispatch.ChannelFor(destination))

	code, err := s.Codes.Issue(ctx, destination)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("issue code: %w", err)
	}
	if err := s.Dispatcher.SendCode(ctx, destination, code); err != nil {
		l.Warn("dispatch_failed", "error", err)
		return transport.Warning(transport.Reason(transport.InvalidInfo), err.Error()), nil
	}
	l.Info("code_sent")
	if s.Dev {
		return transport.Success(http.StatusOK, map[string]string{"code": code}, "Success!"), nil
	}
	return transport.Success(http.StatusOK, nil, "Success!"), nil
}

// Authenticate resolves the bearer. When it returns a nil principal the
// reply says why.
func (s *Core) Authenticate(ctx context.Context, header, query string) (*grant.Principal, transport.Reply, error) {
	if strings.TrimSpace(header) == "" && strings.TrimSpace(query) == "" {
		return nil, transport.Failure(http.StatusUnauthorized, transport.Reason(transport.InvalidInfo), "authorization invalid for headers."), nil
	}
	p, err := s.Engine.Authenticate(ctx, grant.ExtractBearer(header, query))
	if err != nil {
		return nil, transport.Reply{}, fmt.Errorf("authenticate: %w", err)
	}
	if p == nil {
		return nil, transport.Warning(transport.Reason(transport.InvalidAuthorize), "Invalid token."), nil
	}
	return p, transport.Reply{}, nil
}

// Admit checks that p came in through an admin client with a staff role.
func (s *Core) Admit(p *grant.Principal) (transport.Reply, bool) {
	if p == nil || p.Client == nil || p.User == nil {
		return transport.Failure(http.StatusForbidden, transport.Reason(transport.InvalidAuthorize), "Forbidden."), false
	}
	staff := p.User.Role == models.RoleStaff || p.User.Role == models.RoleSuper
	if p.Client.Type != models.ClientTypeAdmin || !staff {
		return transport.Failure(http.StatusForbidden, transport.Reason(transport.InvalidAuthorize), "Forbidden."), false
	}
	return transport.Reply{}, true
}

// Clean hard-deletes a user and everything issued to it.
func (s *Core) Clean(ctx context.Context, userID string) (transport.Reply, error) {
	ok, err := s.Store.DeleteUser(ctx, userID)
	if err != nil {
		return transport.Reply{}, fmt.Errorf("clean user: %w", err)
	}
	if !ok {
		return transport.Warning(transport.Reason(transport.InvalidUser), "The user is notfound."), nil
	}
	logging.FromContext(ctx).Info("user_cleaned", "svc", "auth.clean", "user_id", userID)
	return transport.OK(nil), nil
}

func (s *Core) checkCode(ctx context.Context, destination, code string) bool {
	return code != "" && s.Codes.Check(ctx, destination, code)
}

// signupClient reports whether the credentials name an active client of
// this surface's type.
func (s *Core) signupClient(ctx context.Context, creds transport.ClientCredentials) (bool, error) {
	client, err := s.Store.GetClient(ctx, creds.ClientID, creds.ClientSecret)
	if err != nil {
		return false, fmt.Errorf("get client: %w", err)
	}
	return client != nil && client.Active() && client.Type == s.Policy.ClientType, nil
}

// tokenViaCode logs u in without a password by minting an authorization
// code for it and redeeming the code straight away.
func (s *Core) tokenViaCode(ctx context.Context, u *models.User, creds transport.ClientCredentials, scope string) (transport.Reply, error) {
	code, err := s.Engine.Authorize(ctx, grant.AuthorizeRequest{
		ClientID:   creds.ClientID,
		Scope:      scope,
		User:       u,
		ClientType: s.clientType(),
	})
	var rej *grant.Rejection
	if errors.As(err, &rej) {
		return transport.Warning(transport.Reason(transport.InvalidAuthorize), rej.Error()), nil
	}
	if err != nil {
		return transport.Reply{}, fmt.Errorf("authorize: %w", err)
	}
	return s.Token(ctx, transport.TokenRequest{
		ClientCredentials: creds,
		GrantType:         string(models.GrantAuthorizationCode),
		Username:          u.Username,
		Code:              code.Code,
		Scope:             scope,
	})
}

func (s *Core) publish(ctx context.Context, typ string, u *models.User, data map[string]any) {
	if s.Events == nil || u == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, s.UserTopic, u.ID, events.New(typ, u.ID, data)); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", typ, "error", err)
	}
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
