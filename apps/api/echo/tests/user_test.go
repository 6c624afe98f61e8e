package tests

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/neuromagic/academy/apps/api/echo"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/user"
	emailsvc "github.com/neuromagic/academy/services/email"
	"github.com/neuromagic/academy/tests"
)

const strongPwd = "Zx9!kq#Lm2"

func Test_userApi_registration(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "taken", "taken@test.ru", strongPwd, true, false)

	f.run(t, []httpTest{
		{
			name: "invalid data", method: http.MethodPost, path: "/v1/auth/register",
			body: []byte(`{"username":"","email":"lol","password":""}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/auth/register",
			body: []byte(`{"username":"Taken","email":"new@test.ru","password":"` + strongPwd + `"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "confirm (no pending)", method: http.MethodPost, path: "/v1/auth/register/confirm",
			body: []byte(`{"email":"nobody@test.ru","code":"123456"}`), wantCode: http.StatusNotFound,
			wantData: marshalObj(t, httpErr{Error: "no pending registration for this email"}),
		},
	})

	t.Run("register then confirm", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/auth/register", "",
			[]byte(`{"username":"Anna","email":"Anna@Test.ru","password":"`+strongPwd+`"}`))
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "anna@test.ru", msg.To[0].Address)
		code, _ := msg.TemplateData["Code"].(string)
		require.Len(t, code, 6)

		// resend is throttled
		rec = f.do(http.MethodPost, "/v1/auth/register/resend", "", []byte(`{"email":"anna@test.ru"}`))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		rec = f.do(http.MethodPost, "/v1/auth/register/confirm", "", []byte(`{"email":"anna@test.ru","code":"`+wrong+`"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"code":"invalid code"}`, rec.Body.String())

		rec = f.do(http.MethodPost, "/v1/auth/register/confirm", "", []byte(`{"email":"anna@test.ru","code":"`+code+`"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp TokenResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "anna", resp.User.Username)
		assert.True(t, resp.User.IsActive)

		rec = f.do(http.MethodGet, "/v1/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		unmarshal(t, rec, &me)
		assert.Equal(t, resp.User.ID, me.ID)
	})
}

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "anna", "anna@test.ru", strongPwd, true, false)
	testutil.CreateUser(t, f.usrRepo, "ndog", "ndog@test.ru", strongPwd, false, false)
	testutil.CreateUser(t, f.usrRepo, "boris", "boris@test.ru", strongPwd, true, false)

	login := func(username, pwd string) []byte {
		return marshalObj(t, LoginRequest{Username: username, Password: pwd})
	}

	f.run(t, []httpTest{
		{name: "missing fields", method: http.MethodPost, path: "/v1/auth/login", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/auth/login", body: login("nobody", strongPwd),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "inactive user", method: http.MethodPost, path: "/v1/auth/login", body: login("ndog", strongPwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("by username or email", func(t *testing.T) {
		for _, id := range []string{"anna", "ANNA@test.ru"} {
			rec := f.do(http.MethodPost, "/v1/auth/login", "", login(id, strongPwd))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp TokenResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.False(t, resp.User.LastLogin.IsZero())
		}
	})

	t.Run("throttling", func(t *testing.T) {
		for i := 0; i < f.conf.Auth.LoginMaxAttempts; i++ {
			rec := f.do(http.MethodPost, "/v1/auth/login", "", login("anna", "wrong-password"))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		}
		// blocked, even with the right password
		rec := f.do(http.MethodPost, "/v1/auth/login", "", login("anna", strongPwd))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"error":"too many login attempts, try again later"}`, rec.Body.String())
	})

	t.Run("forwarded-for header is not trusted", func(t *testing.T) {
		loginFrom := func(pwd string, i int) int {
			req, rec := newAuthRequest(http.MethodPost, "/v1/auth/login", "", login("boris", pwd))
			req.Header.Set("X-Forwarded-For", "10.0.0."+strconv.Itoa(i))
			f.app.ServeHTTP(rec, req)
			return rec.Code
		}
		for i := 0; i < f.conf.Auth.LoginMaxAttempts; i++ {
			require.Equal(t, http.StatusBadRequest, loginFrom("wrong-password", i+1))
		}
		assert.Equal(t, http.StatusTooManyRequests, loginFrom("wrong-password", 100))
		assert.Equal(t, http.StatusTooManyRequests, loginFrom(strongPwd, 101))
	})
}

func Test_userApi_me(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "anna", "anna@test.ru", strongPwd, true, false)
	naughty := testutil.CreateUser(t, f.usrRepo, "ndog", "ndog@test.ru", strongPwd, false, false)
	token := f.getToken(t, usr)

	f.run(t, []httpTest{
		{name: "auth required", path: "/v1/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/me", token: "lol", wantCode: http.StatusUnauthorized},
		{
			name: "deactivated", path: "/v1/me", token: f.getToken(t, naughty), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "me", path: "/v1/me", token: token, wantCode: http.StatusOK},
		{
			name: "update (invalid avatar)", method: http.MethodPut, path: "/v1/me", token: token,
			body: []byte(`{"avatar_url":"lol"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "update (script avatar)", method: http.MethodPut, path: "/v1/me", token: token,
			body: []byte(`{"avatar_url":"javascript:alert(1)"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"avatar_url":"must be an http or https link"}`),
		},
		{name: "my courses (none)", path: "/v1/me/courses", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	})

	t.Run("update", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/v1/me", token, []byte(`{"avatar_url":"https://cdn.test.ru/anna.png"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var me user.User
		unmarshal(t, rec, &me)
		assert.Equal(t, "https://cdn.test.ru/anna.png", me.AvatarURL)
		assert.Equal(t, "anna", me.Username)
	})

	t.Run("my courses", func(t *testing.T) {
		_, _, err := f.access.Grant(context.Background(), access.Grant{UserID: usr.ID, CourseSlug: "vibe-coding", Method: access.MethodAdmin})
		require.NoError(t, err)

		rec := f.do(http.MethodGet, "/v1/me/courses", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var enrs []access.Enrollment
		unmarshal(t, rec, &enrs)
		require.Len(t, enrs, 1)
		assert.Equal(t, "vibe-coding", enrs[0].CourseSlug)
	})

	t.Run("token refresh", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/v1/auth/token-refresh", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp TokenResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "anna", "anna@test.ru", strongPwd, true, false)
	testutil.CreateUser(t, f.usrRepo, "ndog", "ndog@test.ru", strongPwd, false, false)
	success := marshalObj(t, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	f.run(t, []httpTest{
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/password-reset",
			body: []byte(`{"email":"nobody@test.ru"}`), wantCode: http.StatusOK, wantData: success,
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/auth/password-reset",
			body: []byte(`{"email":"ndog@test.ru"}`), wantCode: http.StatusOK, wantData: success,
		},
		{
			name: "known email", method: http.MethodPost, path: "/v1/auth/password-reset",
			body: []byte(`{"email":"anna@test.ru"}`), wantCode: http.StatusOK, wantData: success,
		},
	})
	assert.Empty(t, f.logs.reported())

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "anna@test.ru", msg.To[0].Address)
	assert.NotEmpty(t, msg.TemplateData["Token"])
}
