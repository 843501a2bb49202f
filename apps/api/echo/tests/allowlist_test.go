package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/services/email"
)

func Test_allowlistApi(t *testing.T) {
	a := setup(t)
	admin := a.createAllowedUser(t, "admin@test.cd")
	friend := a.createAllowedUser(t, "friend@test.cd")
	adminToken := a.getToken(t, admin, true)
	friendToken := a.getToken(t, friend, false)
	// an outdated admin claim is checked against the allowed list
	forgedToken := a.getToken(t, friend, true)

	runHTTPTests(t, a, []httpTest{
		{name: "auth required", path: "/v1/allowed-emails", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin only", path: "/v1/allowed-emails", token: friendToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin claim", path: "/v1/allowed-emails", token: forgedToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "add: admin only", method: http.MethodPost, path: "/v1/allowed-emails", token: friendToken,
			body: []byte(`{"email": "guest@test.cd"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "add: invalid email", method: http.MethodPost, path: "/v1/allowed-emails", token: adminToken,
			body:     []byte(`{"email": "guest"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "enter a valid email address"}),
		},
		{
			name: "add: duplicate", method: http.MethodPost, path: "/v1/allowed-emails", token: adminToken,
			body:     []byte(`{"email": " Friend@Test.cd "}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "this email is already in the allowed list"}),
		},
		{
			name: "remove: admin", method: http.MethodDelete, path: "/v1/allowed-emails/admin@test.cd", token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "the admin email cannot be removed"}),
		},
		{
			name: "remove: unknown", method: http.MethodDelete, path: "/v1/allowed-emails/nobody@test.cd", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "email not in the allowed list"}),
		},
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/allowed-emails", adminToken)
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []allowlist.AllowedEmail
		unmarshal(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, "admin@test.cd", entries[0].Email)
		assert.True(t, entries[0].IsAdmin)
		assert.Equal(t, "friend@test.cd", entries[1].Email)
		assert.Equal(t, admin.ID, entries[1].AddedBy)
		assert.False(t, entries[1].IsAdmin)
	})

	t.Run("add", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		req, rec := newAuthRequest(http.MethodPost, "/v1/allowed-emails", adminToken, []byte(`{"email": "Guest@Test.CD"}`))
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var ae allowlist.AllowedEmail
		unmarshal(t, rec, &ae)
		assert.Equal(t, "guest@test.cd", ae.Email)
		assert.Equal(t, admin.ID, ae.AddedBy)
		assert.False(t, ae.AddedAt.IsZero())

		// the guest is invited by email
		msg, sent := emailsvc.LastSentMessage()
		require.True(t, sent)
		assert.Equal(t, "guest@test.cd", msg.To[0].Address)
	})

	t.Run("remove", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/allowed-emails/guest@test.cd", adminToken)
		a.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		// the guest can no longer sign in
		req, rec = newRequest(http.MethodPost, "/v1/auth/signin", []byte(`{"email": "guest@test.cd"}`))
		a.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errNotAllowed)}, rec)
	})
}
