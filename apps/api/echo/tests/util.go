package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/placegrade/apps/api/echo"
	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/place"
	"github.com/trezcool/placegrade/core/review"
	"github.com/trezcool/placegrade/core/user"
	"github.com/trezcool/placegrade/fs"
	"github.com/trezcool/placegrade/services/email"
	"github.com/trezcool/placegrade/services/logger"
	"github.com/trezcool/placegrade/services/places"
	"github.com/trezcool/placegrade/storage/database/inmem"
	"github.com/trezcool/placegrade/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotAllowed   = httpErr{Error: "email not allowed"}
	errForbidden    = httpErr{Error: "permission denied"}

	tonton = place.PlaceResult{PlaceID: "pid-tonton", Name: "Chez Tonton", Address: "1 Av. du Commerce", Lat: -4.30, Lng: 15.30}
	kitoko = place.PlaceResult{PlaceID: "pid-kitoko", Name: "Mama Kitoko", Address: "2 Bd du 30 Juin", Lat: -4.31, Lng: 15.31}
)

type app struct {
	*Server
	conf      *core.Config
	usrRepo   user.Repository
	placeRepo place.Repository
	allowSvc  allowlist.Service
	placeSvc  place.Service
	reviewSvc review.Service
}

func setup(t *testing.T) app {
	conf := testutil.NewConfig()
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf))
	emailsvc.ResetSentMessages()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	placeRepo := inmemdb.NewPlaceRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	allowSvc := allowlist.NewService(inmemdb.NewAllowlistRepository(db), mailSvc)
	placeSvc := place.NewService(placeRepo, placesvc.NewProviderMock(tonton, kitoko), conf)
	reviewSvc := review.NewService(nil, inmemdb.NewReviewRepository(db), placeSvc, usrSvc)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	place.RegisterValidators(validate, translator)

	// set up server
	server := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logsvc.New("API : ", conf),
		UserSvc:        usrSvc,
		AllowlistSvc:   allowSvc,
		PlaceSvc:       placeSvc,
		ReviewSvc:      reviewSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = server.Close() })

	return app{
		Server:    server,
		conf:      conf,
		usrRepo:   usrRepo,
		placeRepo: placeRepo,
		allowSvc:  allowSvc,
		placeSvc:  placeSvc,
		reviewSvc: reviewSvc,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// createAllowedUser creates a User and adds them to the allowed list; the first one is the admin.
func (a app) createAllowedUser(t *testing.T, email string) user.User {
	usr := testutil.CreateUser(t, a.usrRepo, email)
	ctx := context.Background()
	if _, err := a.allowSvc.Authorize(ctx, usr); err == nil {
		return usr
	}
	entries, err := a.allowSvc.Query(ctx)
	require.NoError(t, err)
	_, err = a.allowSvc.Add(ctx, allowlist.NewAllowedEmail{Email: email}, user.User{ID: entries[0].AddedBy})
	require.NoError(t, err)
	return usr
}

func (a app) getToken(t *testing.T, usr user.User, isAdmin bool) string {
	token, err := GenerateToken(a.conf, GetUserClaims(a.conf, usr, isAdmin))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

// signInLink returns the values of the last emailed sign-in link.
func signInLink(t *testing.T) url.Values {
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no message sent")
	link, err := url.Parse(msg.TemplateData.(map[string]interface{})["URL"].(string))
	require.NoError(t, err)
	return link.Query()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, a app, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			a.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
