package grant

import (
	"context"
	"time"

	"github.com/Skotchmaster/auth_center/internal/hash"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/tokens"
)

type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	Code         string
	RedirectURI  string
	Scope        string
	// ClientType pins the surface the client must belong to when set.
	ClientType *models.ClientType
}

type Outcome int

const (
	Issued Outcome = iota
	CredentialMismatch
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Issued:
		return "issued"
	case CredentialMismatch:
		return "credential_mismatch"
	default:
		return "rejected"
	}
}

// ClientAuth is the public projection of an issued token.
type ClientAuth struct {
	UserID                string     `json:"userId"`
	ClientID              string     `json:"clientId"`
	AccessToken           string     `json:"accessToken"`
	AccessTokenExpiresAt  time.Time  `json:"accessTokenExpiresAt"`
	RefreshToken          string     `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt *time.Time `json:"refreshTokenExpiresAt,omitempty"`
	Scope                 string     `json:"scope"`
}

// Result is exactly one of: Issued with Token, CredentialMismatch, or
// Rejected with Reason.
type Result struct {
	Outcome Outcome
	Token   *ClientAuth
	Reason  *Rejection
}

func issued(t *ClientAuth) Result  { return Result{Outcome: Issued, Token: t} }
func mismatch() Result             { return Result{Outcome: CredentialMismatch} }
func rejected(r *Rejection) Result { return Result{Outcome: Rejected, Reason: r} }

type principal struct {
	user *models.User
	code *models.AuthorizationCode
}

// IssueToken runs a token grant. Every grant except refresh_token first has
// to prove the principal (password, or possession of an authorization code
// bound to the user) before the client or the grant itself is looked at.
func (e *Engine) IssueToken(ctx context.Context, req TokenRequest) (Result, error) {
	l := logging.FromContext(ctx).With("svc", "grant.issue_token", "grant_type", req.GrantType, "client_id", req.ClientID)

	kind, ok := models.ParseGrantKind(req.GrantType)
	if !ok {
		return rejected(reject(ErrUnsupportedGrant, req.GrantType)), nil
	}

	var p *principal
	if kind != models.GrantRefreshToken {
		var err error
		p, err = e.verifyPrincipal(ctx, kind, req)
		if err != nil {
			return Result{}, err
		}
		if p == nil {
			l.Info("credential_mismatch")
			return mismatch(), nil
		}
	}

	client, rej, err := e.authenticateClient(ctx, req.ClientID, req.ClientSecret, req.ClientType)
	if err != nil {
		return Result{}, err
	}
	if rej == nil && !client.Grants.Has(kind) {
		rej = reject(ErrUnauthorizedClient, string(kind))
	}
	if rej != nil {
		l.Info("token_rejected", "reason", rej.Error())
		return rejected(rej), nil
	}

	var res Result
	switch kind {
	case models.GrantPassword:
		res, err = e.issueForUser(ctx, client, p.user, req.Scope, p.user.Scope, client.Grants.Has(models.GrantRefreshToken))
	case models.GrantClientCredentials:
		res, err = e.issueForUser(ctx, client, p.user, req.Scope, p.user.Scope, false)
	case models.GrantAuthorizationCode:
		res, err = e.exchangeCode(ctx, client, p, req.RedirectURI)
	case models.GrantRefreshToken:
		res, err = e.refresh(ctx, client, req.RefreshToken, req.Scope)
	}
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == Rejected {
		l.Info("token_rejected", "reason", res.Reason.Error())
	}
	return res, nil
}

func (e *Engine) verifyPrincipal(ctx context.Context, kind models.GrantKind, req TokenRequest) (*principal, error) {
	if req.Username == "" {
		return nil, nil
	}
	switch kind {
	case models.GrantPassword, models.GrantClientCredentials:
		if req.Password == "" {
			return nil, nil
		}
		user, err := e.store.GetUser(ctx, models.UserFilter{Username: req.Username})
		if err != nil || user == nil {
			return nil, err
		}
		if !hash.CheckPassword(user.PasswordHash, req.Password) {
			return nil, nil
		}
		return &principal{user: user}, nil
	case models.GrantAuthorizationCode:
		if req.Code == "" {
			return nil, nil
		}
		user, err := e.store.GetUser(ctx, models.UserFilter{Username: req.Username})
		if err != nil || user == nil {
			return nil, err
		}
		code, err := e.store.GetAuthorizationCode(ctx, req.Code)
		if err != nil || code == nil {
			return nil, err
		}
		if code.UserID != user.ID {
			return nil, nil
		}
		return &principal{user: user, code: code}, nil
	}
	return nil, nil
}

func (e *Engine) authenticateClient(ctx context.Context, clientID, secret string, want *models.ClientType) (*models.Client, *Rejection, error) {
	if clientID == "" || secret == "" {
		return nil, reject(ErrInvalidClient, "missing client credentials"), nil
	}
	client, err := e.store.GetClient(ctx, clientID, secret)
	if err != nil {
		return nil, nil, err
	}
	if rej := checkClient(client, want); rej != nil {
		return nil, rej, nil
	}
	return client, nil, nil
}

func checkClient(client *models.Client, want *models.ClientType) *Rejection {
	switch {
	case client == nil:
		return reject(ErrInvalidClient, "unknown client")
	case !client.Active():
		return reject(ErrInvalidClient, "client is blocked")
	case want != nil && client.Type != *want:
		return reject(ErrInvalidClient, "client type mismatch")
	}
	return nil
}

func (e *Engine) issueForUser(ctx context.Context, client *models.Client, user *models.User, requested, allowed string, withRefresh bool) (Result, error) {
	if user.Status == models.UserBlocked {
		return rejected(reject(ErrInvalidGrant, "user is blocked")), nil
	}
	scope, rej := resolveScope(requested, allowed)
	if rej != nil {
		return rejected(rej), nil
	}

	now := e.clock()
	access, err := tokens.SignAccessToken(e.cfg.Secret, user.ID, client.ClientID, scope, now, now.Add(e.cfg.AccessTokenTTL))
	if err != nil {
		return Result{}, err
	}
	token := &models.Token{
		AccessToken:          access,
		AccessTokenExpiresAt: now.Add(e.cfg.AccessTokenTTL),
		Scope:                scope,
	}
	if withRefresh {
		refresh, err := tokens.NewOpaque(32)
		if err != nil {
			return Result{}, err
		}
		token.RefreshToken = refresh
		token.RefreshTokenExpiresAt = now.Add(e.cfg.RefreshTokenTTL)
	}

	saved, err := e.store.SaveToken(ctx, token, client, user)
	if err != nil {
		return Result{}, err
	}
	return issued(project(saved, client, user)), nil
}

func (e *Engine) exchangeCode(ctx context.Context, client *models.Client, p *principal, redirectURI string) (Result, error) {
	code := p.code
	now := e.clock()
	switch {
	case code.ClientID != client.ID:
		return rejected(reject(ErrInvalidGrant, "code was issued to another client")), nil
	case !now.Before(code.ExpiresAt):
		return rejected(reject(ErrInvalidGrant, "code expired")), nil
	case code.RedirectURI != "" && code.RedirectURI != redirectURI:
		return rejected(reject(ErrInvalidGrant, "redirect_uri mismatch")), nil
	}

	ok, err := e.store.RevokeAuthorizationCode(ctx, code)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(reject(ErrInvalidGrant, "code already used")), nil
	}
	return e.issueForUser(ctx, client, p.user, code.Scope, p.user.Scope, client.Grants.Has(models.GrantRefreshToken))
}

func (e *Engine) refresh(ctx context.Context, client *models.Client, refreshToken, requested string) (Result, error) {
	old, err := e.store.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return Result{}, err
	}
	now := e.clock()
	switch {
	case old == nil:
		return rejected(reject(ErrInvalidGrant, "unknown refresh token")), nil
	case old.ClientID != client.ID:
		return rejected(reject(ErrInvalidGrant, "refresh token was issued to another client")), nil
	case !old.RefreshTokenExpiresAt.IsZero() && !now.Before(old.RefreshTokenExpiresAt):
		return rejected(reject(ErrInvalidGrant, "refresh token expired")), nil
	case old.User == nil:
		return rejected(reject(ErrInvalidGrant, "refresh token has no user")), nil
	}

	scope := old.Scope
	if models.NormalizeScope(requested) != "" {
		if !e.store.VerifyScope(old, requested) {
			return rejected(reject(ErrInvalidScope, "exceeds refresh token scope")), nil
		}
		scope = models.NormalizeScope(requested)
	}

	ok, err := e.store.RevokeToken(ctx, old)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return rejected(reject(ErrInvalidGrant, "refresh token already used")), nil
	}
	return e.issueForUser(ctx, client, old.User, scope, old.Scope, true)
}

func project(t *models.Token, client *models.Client, user *models.User) *ClientAuth {
	out := &ClientAuth{
		UserID:               user.ID,
		ClientID:             client.ClientID,
		AccessToken:          t.AccessToken,
		AccessTokenExpiresAt: t.AccessTokenExpiresAt,
		RefreshToken:         t.RefreshToken,
		Scope:                t.Scope,
	}
	if t.RefreshToken != "" {
		exp := t.RefreshTokenExpiresAt
		out.RefreshTokenExpiresAt = &exp
	}
	return out
}
