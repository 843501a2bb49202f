package allowlist_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/user"
	"github.com/trezcool/placegrade/fs"
	"github.com/trezcool/placegrade/services/email"
	"github.com/trezcool/placegrade/storage/database/inmem"
	"github.com/trezcool/placegrade/tests"
)

func setup(t *testing.T) (allowlist.Service, user.Repository) {
	conf := testutil.NewConfig()
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf))
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	svc := allowlist.NewService(inmemdb.NewAllowlistRepository(db), emailsvc.NewConsoleServiceMock(conf))
	return svc, inmemdb.NewUserRepository(db)
}

func TestService_AuthorizeBootstrap(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "admin@test.cd")
	stranger := testutil.CreateUser(t, usrRepo, "stranger@test.cd")

	// anyone can sign in while the list is empty
	ok, err := svc.CanSignIn(ctx, "stranger@test.cd")
	require.NoError(t, err)
	assert.True(t, ok)

	// the first user to sign in becomes the admin
	isAdmin, err := svc.Authorize(ctx, admin)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	entries, err := svc.Query(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin@test.cd", entries[0].Email)
	assert.Equal(t, admin.ID, entries[0].AddedBy)
	assert.True(t, entries[0].IsAdmin)

	// others are now rejected
	_, err = svc.Authorize(ctx, stranger)
	assert.Equal(t, allowlist.ErrNotAllowed, err)

	ok, err = svc.CanSignIn(ctx, "stranger@test.cd")
	require.NoError(t, err)
	assert.False(t, ok)

	// the admin keeps being the admin
	isAdmin, err = svc.Authorize(ctx, admin)
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestService_AddRemove(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "admin@test.cd")
	_, err := svc.Authorize(ctx, admin)
	require.NoError(t, err)

	ae, err := svc.Add(ctx, allowlist.NewAllowedEmail{Email: "  Friend@Test.CD "}, admin)
	require.NoError(t, err)
	assert.Equal(t, "friend@test.cd", ae.Email)
	assert.Equal(t, admin.ID, ae.AddedBy)
	assert.False(t, ae.AddedAt.IsZero())

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "invite", msg.TemplateName)
	assert.Equal(t, "friend@test.cd", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "friend@test.cd")

	// duplicate
	_, err = svc.Add(ctx, allowlist.NewAllowedEmail{Email: "FRIEND@test.cd"}, admin)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Equal(t, allowlist.ErrExists.Error(), verr.Fields[0].Error)

	// the friend may now sign in, but is not admin
	friend := testutil.CreateUser(t, usrRepo, "friend@test.cd")
	isAdmin, err := svc.Authorize(ctx, friend)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	isAdmin, err = svc.IsAdmin(ctx, "ADMIN@test.cd")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	entries, err := svc.Query(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "admin@test.cd", entries[0].Email)
	assert.Equal(t, "friend@test.cd", entries[1].Email)
	assert.False(t, entries[1].IsAdmin)

	// removals
	assert.Equal(t, allowlist.ErrCannotRemoveAdmin, svc.Remove(ctx, "admin@test.cd"))
	assert.NoError(t, svc.Remove(ctx, " friend@test.cd"))
	assert.Equal(t, allowlist.ErrNotFound, svc.Remove(ctx, "friend@test.cd"))

	_, err = svc.Authorize(ctx, friend)
	assert.Equal(t, allowlist.ErrNotAllowed, err)
}
