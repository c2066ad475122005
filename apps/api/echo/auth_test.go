package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core/user"
)

func Test_authApi_login(t *testing.T) {
	env := setup(t)
	usr := env.createUser(t, "Alice", "alice@test.cd", false)
	naughty := env.createUser(t, "N Dog", "ndog@test.cd", false)

	inactive := false
	_, err := env.userSvc.Update(context.Background(), user.User{IsAdmin: true}, naughty, user.UpdateUser{
		Name:     naughty.Name,
		Email:    naughty.Email,
		IsActive: &inactive,
	})
	require.NoError(t, err)

	type loginData struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	env.run(t, []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/api/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"email":    "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name: "malformed body", method: http.MethodPost, path: "/api/login", body: []byte(`{"email": `),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, loginData{Email: "bob@test.cd", Password: testPassword}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, loginData{Email: usr.Email, Password: "Wr0ng-Pass!"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/api/login",
			body:     marchallObj(t, loginData{Email: naughty.Email, Password: testPassword}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success", func(t *testing.T) {
		var resp LoginResponse
		rec := env.do(t, http.MethodPost, "/api/login", "", loginData{Email: " ALICE@test.cd ", Password: testPassword}, &resp)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, NewIdentity(usr), resp.User)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == env.conf.Auth.CookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Equal(t, resp.Token, cookie.Value)
		assert.True(t, cookie.HttpOnly)

		// a fresh token is reused
		var resp2 LoginResponse
		env.do(t, http.MethodPost, "/api/login", "", loginData{Email: usr.Email, Password: testPassword}, &resp2)
		assert.Equal(t, resp.Token, resp2.Token)

		// last login is recorded
		usr, err := env.userSvc.GetByID(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.NotNil(t, usr.LastLogin)
	})
}

func Test_authApi_checkAuthAndLogout(t *testing.T) {
	env := setup(t)
	usr := env.createUser(t, "Alice", "alice@test.cd", false)
	token := env.getToken(t, usr)

	t.Run("anonymous", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/check-auth")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
	})

	t.Run("invalid token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/check-auth", "not-a-token")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
	})

	t.Run("bearer header", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/check-auth", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, NewIdentity(usr))}, rec)
	})

	t.Run("token header", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/check-auth")
		req.Header.Set("Authorization", "Token "+token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, NewIdentity(usr))}, rec)
	})

	t.Run("cookie", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/check-auth")
		req.AddCookie(&http.Cookie{Name: env.conf.Auth.CookieName, Value: token})
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, NewIdentity(usr))}, rec)
	})

	t.Run("invalid cookie falls through to header", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/check-auth", token)
		req.AddCookie(&http.Cookie{Name: env.conf.Auth.CookieName, Value: "stale"})
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, NewIdentity(usr))}, rec)
	})

	t.Run("logout", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/logout", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, MessageResponse{Message: "Logout successful"})}, rec)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == env.conf.Auth.CookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
		assert.True(t, cookie.MaxAge < 0)

		// the token is revoked
		req, rec = newAuthRequest(http.MethodGet, "/api/check-auth", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
	})

	t.Run("logout requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/logout")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)}, rec)
	})
}

func Test_home(t *testing.T) {
	env := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to SisTIRA API!", rec.Body.String())
}
