package grant

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Skotchmaster/auth_center/internal/hash"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/repo"
	"github.com/Skotchmaster/auth_center/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	userLookups atomic.Int32
}

func (s *countingStore) GetUser(ctx context.Context, f models.UserFilter) (*models.User, error) {
	s.userLookups.Add(1)
	return s.Store.GetUser(ctx, f)
}

type failingStore struct {
	Store
}

func (failingStore) GetUser(context.Context, models.UserFilter) (*models.User, error) {
	return nil, errors.New("store down")
}

type fixture struct {
	engine *Engine
	store  *countingStore
	repo   *repo.GormRepo
	client *models.Client
	user   *models.User
	now    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	r := repo.New(testutil.InitTestDB(t))
	client := &models.Client{
		ClientID:    "app",
		Secret:      "s3cret",
		DisplayName: "app",
		Grants:      models.GrantSet(models.ValidGrants),
		Type:        models.ClientTypeApp,
		Status:      models.ClientActive,
	}
	require.NoError(t, r.CreateClient(ctx, client))

	pw, err := hash.HashPassword("secret1")
	require.NoError(t, err)
	user := &models.User{
		Email:        "a@x.com",
		Username:     "a@x.com",
		PasswordHash: pw,
		Scope:        "read",
		Role:         models.RoleUser,
	}
	require.NoError(t, r.CreateUser(ctx, user))

	now := time.Now().UTC()
	store := &countingStore{Store: r}
	engine := NewEngine(store, Config{Secret: []byte("test-secret")}).WithClock(func() time.Time { return now })

	return &fixture{engine: engine, store: store, repo: r, client: client, user: user, now: &now}
}

func (f *fixture) passwordRequest() TokenRequest {
	return TokenRequest{
		GrantType:    "password",
		ClientID:     "app",
		ClientSecret: "s3cret",
		Username:     "a@x.com",
		Password:     "secret1",
	}
}

func TestIssueToken_PasswordSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	require.NotNil(t, res.Token)

	tok := res.Token
	assert.Equal(t, f.user.ID, tok.UserID)
	assert.Equal(t, "app", tok.ClientID)
	assert.Equal(t, "read", tok.Scope)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	require.NotNil(t, tok.RefreshTokenExpiresAt)
	assert.WithinDuration(t, f.now.Add(DefaultAccessTokenTTL), tok.AccessTokenExpiresAt, time.Second)

	p, err := f.engine.Authenticate(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, f.user.ID, p.UserID)
	assert.Equal(t, "app", p.ClientID)
	assert.Equal(t, "read", p.Scope)
}

func TestIssueToken_CredentialMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mod  func(*TokenRequest)
	}{
		{"wrong password", func(r *TokenRequest) { r.Password = "wrong" }},
		{"unknown user", func(r *TokenRequest) { r.Username = "nobody@x.com" }},
		{"missing password", func(r *TokenRequest) { r.Password = "" }},
		{"missing username", func(r *TokenRequest) { r.Username = "" }},
		{"wrong password and bad client", func(r *TokenRequest) { r.Password = "wrong"; r.ClientSecret = "bad" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.passwordRequest()
			tt.mod(&req)
			res, err := f.engine.IssueToken(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, CredentialMismatch, res.Outcome)
			assert.Nil(t, res.Token)
		})
	}
}

func TestIssueToken_OpenIDSentinelNeverMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateUser(ctx, &models.User{
		Username: "oid-1", OpenID: "oid-1", PasswordHash: models.OpenIDPassword, Scope: "read", Role: models.RoleUser,
	}))

	req := f.passwordRequest()
	req.Username = "oid-1"
	req.Password = models.OpenIDPassword
	res, err := f.engine.IssueToken(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CredentialMismatch, res.Outcome)
}

func TestIssueToken_EngineRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := models.ClientTypeAdmin

	restricted := &models.Client{
		ClientID: "pw-only", Secret: "s3cret", DisplayName: "pw-only",
		Grants: models.GrantSet{models.GrantPassword}, Type: models.ClientTypeApp, Status: models.ClientActive,
	}
	require.NoError(t, f.repo.CreateClient(ctx, restricted))
	blocked := &models.Client{
		ClientID: "blocked", Secret: "s3cret", DisplayName: "blocked",
		Grants: models.GrantSet(models.ValidGrants), Type: models.ClientTypeApp, Status: models.ClientBlocked,
	}
	require.NoError(t, f.repo.CreateClient(ctx, blocked))

	tests := []struct {
		name   string
		mod    func(*TokenRequest)
		reason error
	}{
		{"unsupported grant", func(r *TokenRequest) { r.GrantType = "implicit" }, ErrUnsupportedGrant},
		{"wrong secret", func(r *TokenRequest) { r.ClientSecret = "bad" }, ErrInvalidClient},
		{"missing secret", func(r *TokenRequest) { r.ClientSecret = "" }, ErrInvalidClient},
		{"blocked client", func(r *TokenRequest) { r.ClientID = "blocked" }, ErrInvalidClient},
		{"wrong surface", func(r *TokenRequest) { r.ClientType = &admin }, ErrInvalidClient},
		{"grant not allowed", func(r *TokenRequest) { r.ClientID = "pw-only"; r.GrantType = "client_credentials" }, ErrUnauthorizedClient},
		{"scope beyond user", func(r *TokenRequest) { r.Scope = "write" }, ErrInvalidScope},
		{"unknown scope", func(r *TokenRequest) { r.Scope = "admin" }, ErrInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.passwordRequest()
			tt.mod(&req)
			res, err := f.engine.IssueToken(ctx, req)
			require.NoError(t, err)
			require.Equal(t, Rejected, res.Outcome)
			require.NotNil(t, res.Reason)
			assert.ErrorIs(t, res.Reason, tt.reason)
		})
	}
}

func TestIssueToken_PasswordWithoutRefreshGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateClient(ctx, &models.Client{
		ClientID: "pw-only", Secret: "s3cret", DisplayName: "pw-only",
		Grants: models.GrantSet{models.GrantPassword}, Type: models.ClientTypeApp, Status: models.ClientActive,
	}))

	req := f.passwordRequest()
	req.ClientID = "pw-only"
	res, err := f.engine.IssueToken(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	assert.Empty(t, res.Token.RefreshToken)
	assert.Nil(t, res.Token.RefreshTokenExpiresAt)
}

func TestIssueToken_BlockedUserRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.SetUserStatus(ctx, f.user.ID, models.UserBlocked)
	require.NoError(t, err)

	res, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrInvalidGrant)
}

func TestIssueToken_RefreshSkipsPasswordCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Issued, first.Outcome)

	f.store.userLookups.Store(0)
	res, err := f.engine.IssueToken(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app",
		ClientSecret: "s3cret",
		RefreshToken: first.Token.RefreshToken,
		Username:     "a@x.com",
		Password:     "wrong",
	})
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	assert.EqualValues(t, 0, f.store.userLookups.Load())
	assert.NotEqual(t, first.Token.AccessToken, res.Token.AccessToken)
	assert.NotEqual(t, first.Token.RefreshToken, res.Token.RefreshToken)
	assert.Equal(t, f.user.ID, res.Token.UserID)

	again, err := f.engine.IssueToken(ctx, TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app",
		ClientSecret: "s3cret",
		RefreshToken: first.Token.RefreshToken,
	})
	require.NoError(t, err)
	require.Equal(t, Rejected, again.Outcome)
	assert.ErrorIs(t, again.Reason, ErrInvalidGrant)
}

func TestIssueToken_RefreshRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateClient(ctx, &models.Client{
		ClientID: "other", Secret: "s3cret", DisplayName: "other",
		Grants: models.GrantSet(models.ValidGrants), Type: models.ClientTypeApp, Status: models.ClientActive,
	}))
	first, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Issued, first.Outcome)

	base := TokenRequest{GrantType: "refresh_token", ClientID: "app", ClientSecret: "s3cret", RefreshToken: first.Token.RefreshToken}

	otherClient := base
	otherClient.ClientID = "other"
	res, err := f.engine.IssueToken(ctx, otherClient)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)

	wider := base
	wider.Scope = "read write"
	res, err = f.engine.IssueToken(ctx, wider)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrInvalidScope)

	unknown := base
	unknown.RefreshToken = "nope"
	res, err = f.engine.IssueToken(ctx, unknown)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)

	*f.now = f.now.Add(DefaultRefreshTokenTTL + time.Minute)
	res, err = f.engine.IssueToken(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	code, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "app", RedirectURI: "https://app/cb", User: f.user})
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, "read", code.Scope)

	req := TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app",
		ClientSecret: "s3cret",
		Username:     "a@x.com",
		Code:         code.Code,
		RedirectURI:  "https://app/cb",
	}

	wrongRedirect := req
	wrongRedirect.RedirectURI = "https://evil/cb"
	res, err := f.engine.IssueToken(ctx, wrongRedirect)
	require.NoError(t, err)
	assert.Equal(t, Rejected, res.Outcome)

	res, err = f.engine.IssueToken(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	assert.Equal(t, f.user.ID, res.Token.UserID)

	res, err = f.engine.IssueToken(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, CredentialMismatch, res.Outcome)
}

func TestAuthorizationCode_BoundToUserAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateUser(ctx, &models.User{Username: "b@x.com", PasswordHash: "x", Scope: "read", Role: models.RoleUser}))

	code, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "app", User: f.user})
	require.NoError(t, err)

	res, err := f.engine.IssueToken(ctx, TokenRequest{
		GrantType: "authorization_code", ClientID: "app", ClientSecret: "s3cret",
		Username: "b@x.com", Code: code.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, CredentialMismatch, res.Outcome)

	*f.now = f.now.Add(DefaultAuthorizationCodeTTL + time.Second)
	res, err = f.engine.IssueToken(ctx, TokenRequest{
		GrantType: "authorization_code", ClientID: "app", ClientSecret: "s3cret",
		Username: "a@x.com", Code: code.Code,
	})
	require.NoError(t, err)
	require.Equal(t, Rejected, res.Outcome)
	assert.ErrorIs(t, res.Reason, ErrInvalidGrant)
}

func TestAuthorize_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := models.ClientTypeAdmin

	_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "missing", User: f.user})
	require.Error(t, err)
	assert.True(t, IsRejection(err))
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "app", User: f.user, ClientType: &admin})
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "app", User: f.user, Scope: "write"})
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "app"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIssueToken_ClientCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.passwordRequest()
	req.GrantType = "client_credentials"
	res, err := f.engine.IssueToken(ctx, req)
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	assert.Empty(t, res.Token.RefreshToken)
}

func TestIssueToken_StoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(failingStore{Store: f.repo}, Config{Secret: []byte("test-secret")})

	_, err := engine.IssueToken(context.Background(), f.passwordRequest())
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)
	access := res.Token.AccessToken

	p, err := f.engine.AuthenticateScope(ctx, access, "read")
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = f.engine.AuthenticateScope(ctx, access, "write")
	require.NoError(t, err)
	assert.Nil(t, p)

	for _, bearer := range []string{"", "garbage"} {
		p, err = f.engine.Authenticate(ctx, bearer)
		require.NoError(t, err)
		assert.Nil(t, p)
	}

	other := NewEngine(f.store, Config{Secret: []byte("other-secret")})
	p, err = other.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = f.engine.Authenticate(ctx, access)
	require.NoError(t, err)
	require.NotNil(t, p)
	ok, err := f.engine.Revoke(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err = f.engine.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAuthenticate_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.IssueToken(ctx, f.passwordRequest())
	require.NoError(t, err)
	require.Equal(t, Issued, res.Outcome)

	*f.now = f.now.Add(DefaultAccessTokenTTL + time.Second)
	p, err := f.engine.Authenticate(ctx, res.Token.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestExtractBearer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", ExtractBearer("Bearer abc", ""))
	assert.Equal(t, "abc", ExtractBearer("bearer  abc ", ""))
	assert.Equal(t, "", ExtractBearer("Basic abc", "q"))
	assert.Equal(t, "q", ExtractBearer("", "q"))
	assert.Equal(t, "", ExtractBearer("", ""))
}
