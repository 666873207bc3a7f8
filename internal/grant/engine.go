// Package grant issues, validates and revokes OAuth2 style tokens on top of
// the credential store.
package grant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/auth_center/internal/models"
)

const (
	DefaultAccessTokenTTL       = 24 * time.Hour
	DefaultRefreshTokenTTL      = 14 * 24 * time.Hour
	DefaultAuthorizationCodeTTL = 5 * time.Minute
)

var (
	ErrUnsupportedGrant   = errors.New("unsupported grant type")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidClient      = errors.New("invalid client")
	ErrUnauthorizedClient = errors.New("unauthorized client")
	ErrInvalidGrant       = errors.New("invalid grant")
	ErrInvalidScope       = errors.New("invalid scope")
)

// Rejection is a protocol-level refusal. It is an expected outcome, unlike
// the store errors the engine passes through unchanged.
type Rejection struct {
	Reason error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Reason }

func reject(reason error, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Store is the persistence contract the engine drives.
type Store interface {
	GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error)
	GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error)
	GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	GetClient(ctx context.Context, clientID, secret string) (*models.Client, error)
	GetUser(ctx context.Context, filter models.UserFilter) (*models.User, error)
	SaveToken(ctx context.Context, token *models.Token, client *models.Client, user *models.User) (*models.Token, error)
	SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user *models.User) (*models.AuthorizationCode, error)
	RevokeToken(ctx context.Context, token *models.Token) (bool, error)
	RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error)
	VerifyScope(token *models.Token, scope string) bool
}

type Config struct {
	Secret               []byte
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	AuthorizationCodeTTL time.Duration
}

type Engine struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewEngine(store Store, cfg Config) *Engine {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if cfg.AuthorizationCodeTTL <= 0 {
		cfg.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	return &Engine{store: store, cfg: cfg, now: time.Now}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) clock() time.Time { return e.now().UTC() }

// ExtractBearer pulls the token out of an Authorization header, falling back
// to the access_token query value.
func ExtractBearer(header, query string) string {
	if header != "" {
		scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return strings.TrimSpace(query)
}

// resolveScope picks the scope to grant: the request's if given, otherwise
// everything allowed. The result must be a known scope inside allowed.
func resolveScope(requested, allowed string) (string, *Rejection) {
	scope := models.NormalizeScope(requested)
	if scope == "" {
		scope = models.NormalizeScope(allowed)
	}
	if scope == "" {
		scope = models.ScopeRead
	}
	if !models.ValidScope(scope) {
		return "", reject(ErrInvalidScope, scope)
	}
	if allowed != "" && !models.ScopeCovers(allowed, scope) {
		return "", reject(ErrInvalidScope, "exceeds granted scope")
	}
	return scope, nil
}
