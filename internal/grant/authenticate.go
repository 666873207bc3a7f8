package grant

import (
	"context"

	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/tokens"
	"github.com/golang-jwt/jwt/v5"
)

type Principal struct {
	UserID   string
	ClientID string
	Scope    string
	User     *models.User
	Client   *models.Client
	Token    *models.Token
}

// Authenticate resolves a bearer token. It returns nil for anything that is
// not a live, stored token of an unblocked user.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	if bearer == "" {
		return nil, nil
	}
	if _, err := tokens.AccessClaimsFromToken(bearer, e.cfg.Secret, jwt.WithTimeFunc(e.clock)); err != nil {
		logging.FromContext(ctx).Debug("bearer_rejected", "error", err)
		return nil, nil
	}

	t, err := e.store.GetAccessToken(ctx, bearer)
	if err != nil {
		return nil, err
	}
	switch {
	case t == nil, t.User == nil, t.Client == nil:
		return nil, nil
	case !e.clock().Before(t.AccessTokenExpiresAt):
		return nil, nil
	case t.User.Status == models.UserBlocked:
		return nil, nil
	}
	return &Principal{
		UserID:   t.User.ID,
		ClientID: t.Client.ClientID,
		Scope:    t.Scope,
		User:     t.User,
		Client:   t.Client,
		Token:    t,
	}, nil
}

// AuthenticateScope additionally requires the token to cover scope.
func (e *Engine) AuthenticateScope(ctx context.Context, bearer, scope string) (*Principal, error) {
	p, err := e.Authenticate(ctx, bearer)
	if err != nil || p == nil {
		return nil, err
	}
	if !e.store.VerifyScope(p.Token, scope) {
		return nil, nil
	}
	return p, nil
}

// Revoke deletes the token behind p, ending that session.
func (e *Engine) Revoke(ctx context.Context, p *Principal) (bool, error) {
	if p == nil || p.Token == nil {
		return false, nil
	}
	return e.store.RevokeToken(ctx, p.Token)
}

type AuthorizeRequest struct {
	ClientID    string
	RedirectURI string
	Scope       string
	User        *models.User
	ClientType  *models.ClientType
}

// Authorize mints a single-use authorization code for req.User. Protocol
// refusals come back as *Rejection.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest) (*models.AuthorizationCode, error) {
	if req.User == nil {
		return nil, reject(ErrInvalidRequest, "missing user")
	}
	if req.ClientID == "" {
		return nil, reject(ErrInvalidClient, "missing client_id")
	}
	client, err := e.store.GetClient(ctx, req.ClientID, "")
	if err != nil {
		return nil, err
	}
	if rej := checkClient(client, req.ClientType); rej != nil {
		return nil, rej
	}
	if !client.Grants.Has(models.GrantAuthorizationCode) {
		return nil, reject(ErrUnauthorizedClient, string(models.GrantAuthorizationCode))
	}
	if req.User.Status == models.UserBlocked {
		return nil, reject(ErrInvalidGrant, "user is blocked")
	}
	scope, rej := resolveScope(req.Scope, req.User.Scope)
	if rej != nil {
		return nil, rej
	}

	value, err := tokens.NewOpaque(20)
	if err != nil {
		return nil, err
	}
	return e.store.SaveAuthorizationCode(ctx, &models.AuthorizationCode{
		Code:        value,
		ExpiresAt:   e.clock().Add(e.cfg.AuthorizationCodeTTL),
		RedirectURI: req.RedirectURI,
		Scope:       scope,
	}, client, req.User)
}
