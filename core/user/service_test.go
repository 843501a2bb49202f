package user_test

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/user"
	"github.com/trezcool/placegrade/fs"
	"github.com/trezcool/placegrade/services/email"
	"github.com/trezcool/placegrade/storage/database/inmem"
	"github.com/trezcool/placegrade/tests"
)

func setup(t *testing.T) (user.Service, user.Repository, *core.Config) {
	conf := testutil.NewConfig()
	conf.FrontendBaseURL = "https://placegrade.test/"
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf))
	emailsvc.ResetSentMessages()

	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf), repo, conf
}

// signInLink requests a sign-in link for `email` and returns its query values.
func signInLink(t *testing.T, svc user.Service, email, next string) url.Values {
	require.NoError(t, svc.RequestSignIn(context.Background(), user.SignInRequest{Email: email, Next: next}))

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no message sent")
	require.Len(t, msg.To, 1)
	assert.Equal(t, strings.ToLower(strings.TrimSpace(email)), msg.To[0].Address)
	assert.Equal(t, "signin", msg.TemplateName)

	data := msg.TemplateData.(map[string]interface{})
	link, err := url.Parse(data["URL"].(string))
	require.NoError(t, err)
	assert.Equal(t, "placegrade.test", link.Host)
	assert.Equal(t, "/auth/callback", link.Path)
	assert.Contains(t, msg.TextContent, data["URL"].(string))
	return link.Query()
}

func TestService_GetOrCreate(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.GetOrCreate(ctx, "  Jane@Test.CD ")
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "jane@test.cd", usr.Email)
	assert.True(t, usr.LastLogin.IsZero())

	again, err := svc.GetOrCreate(ctx, "jane@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr, again)

	byEmail, err := svc.GetByEmail(ctx, "JANE@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, byEmail.ID)

	_, err = svc.GetByID(ctx, "unknown")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_QueryEmails(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	usr1 := testutil.CreateUser(t, repo, "one@test.cd")
	usr2 := testutil.CreateUser(t, repo, "two@test.cd")

	emails, err := svc.QueryEmails(ctx, []string{usr1.ID, usr2.ID, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{usr1.ID: "one@test.cd", usr2.ID: "two@test.cd"}, emails)

	emails, err = svc.QueryEmails(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestService_SignIn(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	q := signInLink(t, svc, " Jane@Test.CD", "/place/42")
	assert.Equal(t, "/place/42", q.Get("next"))

	usr, err := svc.VerifySignIn(ctx, user.SignInConfirmation{UID: q.Get("uid"), Token: q.Get("token")})
	require.NoError(t, err)
	assert.Equal(t, "jane@test.cd", usr.Email)
	assert.False(t, usr.LastLogin.IsZero())

	// links are single use
	_, err = svc.VerifySignIn(ctx, user.SignInConfirmation{UID: q.Get("uid"), Token: q.Get("token")})
	assert.Equal(t, user.ErrInvalidToken, err)

	// a new link works again
	q = signInLink(t, svc, "jane@test.cd", "")
	assert.Empty(t, q.Get("next"))
	_, err = svc.VerifySignIn(ctx, user.SignInConfirmation{UID: q.Get("uid"), Token: q.Get("token")})
	assert.NoError(t, err)
}

func TestService_VerifySignInErrors(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	q := signInLink(t, svc, "jane@test.cd", "")
	other := signInLink(t, svc, "john@test.cd", "")

	tests := []struct {
		name string
		data user.SignInConfirmation
	}{
		{name: "invalid uid", data: user.SignInConfirmation{UID: "!!", Token: q.Get("token")}},
		{name: "unknown user", data: user.SignInConfirmation{UID: user.EncodeUID(user.User{ID: "unknown"}), Token: q.Get("token")}},
		{name: "token of another user", data: user.SignInConfirmation{UID: q.Get("uid"), Token: other.Get("token")}},
		{name: "tampered token", data: user.SignInConfirmation{UID: q.Get("uid"), Token: q.Get("token") + "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifySignIn(ctx, tt.data)
			assert.Equal(t, user.ErrInvalidToken, err)
		})
	}
}
