package identity

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/Skotchmaster/auth_center/internal/hash"
	"github.com/Skotchmaster/auth_center/internal/logging"
	"github.com/Skotchmaster/auth_center/internal/models"
	"github.com/Skotchmaster/auth_center/internal/repo"
	"github.com/Skotchmaster/auth_center/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLinker(t *testing.T) (*Linker, *repo.GormRepo) {
	t.Helper()
	r := repo.New(testutil.InitTestDB(t))
	return NewLinker(r), r
}

func countUsers(t *testing.T, r *repo.GormRepo, where string, arg any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, r.DB.Model(&models.User{}).Where(where, arg).Count(&n).Error)
	return n
}

func TestCreateMailUser(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()

	u, err := l.CreateMailUser(ctx, "a@x.com", "secret1", "", "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "a@x.com", u.Username)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, models.ScopeRead, u.Scope)
	assert.Equal(t, models.UserNew, u.Status)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.True(t, hash.CheckPassword(u.PasswordHash, "secret1"))

	dup, err := l.CreateMailUser(ctx, "a@x.com", "other12", models.RoleUser, "read")
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestCreatePhoneUser(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	u, err := l.CreatePhoneUser(ctx, "13800000000", "secret1", models.RoleStaff, "read write")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "13800000000", u.Username)
	assert.Equal(t, models.RoleStaff, u.Role)
	assert.Equal(t, "read write", u.Scope)

	dup, err := l.CreatePhoneUser(ctx, "13800000000", "secret1", "", "")
	require.NoError(t, err)
	assert.Nil(t, dup)
	assert.EqualValues(t, 1, countUsers(t, r, "phone = ?", "13800000000"))
}

func TestCreateOrMergeOpenIDUser_Merges(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	orig, err := l.CreatePhoneUser(ctx, "13800000000", "secret1", "", "")
	require.NoError(t, err)

	u, merged, err := l.CreateOrMergeOpenIDUser(ctx, "13800000000", "oid-1", "", "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, merged)
	assert.Equal(t, orig.ID, u.ID)
	assert.Equal(t, "oid-1", u.OpenID)
	assert.Equal(t, "13800000000", u.Phone)
	assert.EqualValues(t, 1, countUsers(t, r, "phone = ?", "13800000000"))

	stored, err := r.GetUser(ctx, models.UserFilter{OpenID: "oid-1"})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, orig.ID, stored.ID)
	assert.True(t, hash.CheckPassword(stored.PasswordHash, "secret1"))
}

func TestCreateOrMergeOpenIDUser_Creates(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()

	u, merged, err := l.CreateOrMergeOpenIDUser(ctx, "13800000001", "oid-2", "", "")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.False(t, merged)
	assert.Equal(t, "oid-2", u.Username)
	assert.Equal(t, "oid-2", u.OpenID)
	assert.Equal(t, "13800000001", u.Phone)
	assert.Equal(t, models.OpenIDPassword, u.PasswordHash)
	assert.False(t, hash.CheckPassword(u.PasswordHash, models.OpenIDPassword))
}

func TestUpgradeOpenIDUser(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	oid, _, err := l.CreateOrMergeOpenIDUser(ctx, "13800000000", "oid-1", "", "")
	require.NoError(t, err)

	up, err := l.UpgradeOpenIDUser(ctx, oid, "13800000000", "secret1", models.RoleUser, "read")
	require.NoError(t, err)
	require.NotNil(t, up)

	stored, err := r.GetUser(ctx, models.UserFilter{Phone: "13800000000"})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "13800000000", stored.Username)
	assert.Equal(t, "oid-1", stored.OpenID)
	assert.True(t, hash.CheckPassword(stored.PasswordHash, "secret1"))

	again, err := l.UpgradeOpenIDUser(ctx, stored, "13800000000", "secret2", "", "")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRebindPhoneToOpenID(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	_, _, err := l.CreateOrMergeOpenIDUser(ctx, "13800000000", "oid-1", "", "")
	require.NoError(t, err)

	u, err := l.RebindPhoneToOpenID(ctx, "13800000009", "missing")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = l.RebindPhoneToOpenID(ctx, "13800000000", "oid-1")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = l.RebindPhoneToOpenID(ctx, "13800000009", "oid-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "13800000009", u.Phone)

	stored, err := r.GetUser(ctx, models.UserFilter{OpenID: "oid-1"})
	require.NoError(t, err)
	assert.Equal(t, "13800000009", stored.Phone)
}

func TestRebindPhoneToOpenID_UsernameFollowsPhone(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	_, err := l.CreatePhoneUser(ctx, "13800000001", "secretA", "", "")
	require.NoError(t, err)
	_, merged, err := l.CreateOrMergeOpenIDUser(ctx, "13800000001", "oid-1", "", "")
	require.NoError(t, err)
	require.True(t, merged)

	u, err := l.RebindPhoneToOpenID(ctx, "13800000002", "oid-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "13800000002", u.Username)

	fresh, err := l.CreatePhoneUser(ctx, "13800000001", "secretB", "", "")
	require.NoError(t, err)
	require.NotNil(t, fresh)
	assert.Equal(t, "13800000001", fresh.Username)
	assert.EqualValues(t, 1, countUsers(t, r, "username = ?", "13800000001"))
}

func TestRebindPhoneToOpenID_KeepsOpenIDUsername(t *testing.T) {
	l, _ := newLinker(t)
	ctx := context.Background()

	_, _, err := l.CreateOrMergeOpenIDUser(ctx, "13800000001", "oid-1", "", "")
	require.NoError(t, err)

	u, err := l.RebindPhoneToOpenID(ctx, "13800000002", "oid-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "oid-1", u.Username)
}

func TestCreateRefusesTakenUsername(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	require.NoError(t, r.CreateUser(ctx, &models.User{
		Username: "13800000005", Phone: "13800000006", PasswordHash: "x", Scope: "read", Role: models.RoleUser,
	}))

	u, err := l.CreatePhoneUser(ctx, "13800000005", "secret1", "", "")
	require.NoError(t, err)
	assert.Nil(t, u)

	_, _, err = l.CreateOrMergeOpenIDUser(ctx, "13800000007", "13800000005", "", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, countUsers(t, r, "username = ?", "13800000005"))
}

func TestCreateOrMergeOpenIDUser_LogsReplacedOpenID(t *testing.T) {
	l, r := newLinker(t)
	var buf bytes.Buffer
	ctx := logging.IntoContext(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	_, err := l.CreatePhoneUser(ctx, "13800000000", "secret1", "", "")
	require.NoError(t, err)
	_, _, err = l.CreateOrMergeOpenIDUser(ctx, "13800000000", "oid-1", "", "")
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "openid_replaced")

	u, merged, err := l.CreateOrMergeOpenIDUser(ctx, "13800000000", "oid-2", "", "")
	require.NoError(t, err)
	require.True(t, merged)
	assert.Equal(t, "oid-2", u.OpenID)
	assert.Contains(t, buf.String(), "openid_replaced")
	assert.Contains(t, buf.String(), `"previous_openid":"oid-1"`)

	gone, err := r.GetUser(ctx, models.UserFilter{OpenID: "oid-1"})
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteUserBlocks(t *testing.T) {
	l, r := newLinker(t)
	ctx := context.Background()

	u, err := l.CreateMailUser(ctx, "a@x.com", "secret1", "", "")
	require.NoError(t, err)

	ok, err := l.DeleteUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := r.GetUser(ctx, models.UserFilter{ID: u.ID})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.UserBlocked, stored.Status)

	ok, err = l.DeleteUser(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
