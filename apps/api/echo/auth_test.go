package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
	"github.com/mindzed/attendance/tests"
)

func signClaims(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	conf := core.NewTestConfig()
	id := user.Identity{ID: "u1", Name: "Teacher", Email: "teacher@test.io", Role: user.RoleTeacher}

	valid := GetIdentityClaims(conf, id)
	expired := GetIdentityClaims(conf, id)
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	noSubject := GetIdentityClaims(conf, user.Identity{Role: user.RoleAdmin})
	badRole := GetIdentityClaims(conf, id)
	badRole.Role = "HOD"
	noExpiry := GetIdentityClaims(conf, id)
	noExpiry.ExpiresAt = 0

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{name: "valid", token: signClaims(t, jwt.SigningMethodHS256, conf.SecretKey, valid)},
		{name: "expired", token: signClaims(t, jwt.SigningMethodHS256, conf.SecretKey, expired), wantErr: true},
		{name: "wrong secret", token: signClaims(t, jwt.SigningMethodHS256, "not-the-secret", valid), wantErr: true},
		{name: "other HMAC method", token: signClaims(t, jwt.SigningMethodHS512, conf.SecretKey, valid), wantErr: true},
		{name: "no expiry", token: signClaims(t, jwt.SigningMethodHS256, conf.SecretKey, noExpiry), wantErr: true},
		{name: "no subject", token: signClaims(t, jwt.SigningMethodHS256, conf.SecretKey, noSubject), wantErr: true},
		{name: "unknown role", token: signClaims(t, jwt.SigningMethodHS256, conf.SecretKey, badRole), wantErr: true},
		{name: "garbage", token: "not.a.token", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(conf, tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, claims.Identity())
			assert.Equal(t, conf.AppName, claims.Issuer)
		})
	}
}

func TestSession_cookie(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Student", "student@test.io", "", user.RoleStudent)

	req, rec := newRequest(http.MethodGet, "/api/auth/me")
	req.AddCookie(&http.Cookie{Name: app.conf.Server.SessionCookie, Value: getToken(t, app.conf, usr)})
	app.server.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshallObj(t, usr.Identity())}, rec)
}

func TestSession_invalidTokenIsNoSession(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Admin", "admin@test.io", "", user.RoleAdmin)
	neverExpires := GetIdentityClaims(app.conf, usr.Identity())
	neverExpires.ExpiresAt = 0

	runHttpTests(t, app, []httpTest{
		{name: "no token", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNoSession)},
		{name: "bad token", path: "/api/auth/me", token: "garbage", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNoSession)},
		{
			name:     "token without expiry",
			path:     "/api/auth/me",
			token:    signClaims(t, jwt.SigningMethodHS256, app.conf.SecretKey, neverExpires),
			wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errNoSession),
		},
	})
}

func TestUserApi_refreshToken(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateUser(t, app.usrRepo, "Admin", "admin@test.io", "", user.RoleAdmin)

	sign := func(origIat time.Time) string {
		token, err := GenerateToken(app.conf, GetIdentityClaims(app.conf, usr.Identity(), origIat.Unix()))
		require.NoError(t, err)
		return token
	}

	t.Run("within refresh window", func(t *testing.T) {
		origIat := time.Now().Add(-time.Hour)
		rec := app.serve(httpTest{method: http.MethodPost, path: "/api/auth/token-refresh", token: sign(origIat)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp TokenResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		claims, err := ParseToken(app.conf, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, origIat.Unix(), claims.OrigIssuedAt)
		assert.Equal(t, usr.Identity(), claims.Identity())
	})

	runHttpTests(t, app, []httpTest{
		{
			name: "refresh expired", method: http.MethodPost, path: "/api/auth/token-refresh",
			token:    sign(time.Now().Add(-app.conf.Server.JWTRefreshExpirationDelta - time.Minute)),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "no session", method: http.MethodPost, path: "/api/auth/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNoSession),
		},
		{
			name: "deleted account", method: http.MethodPost, path: "/api/auth/token-refresh",
			token:    getToken(t, app.conf, user.User{ID: "ghost", Role: user.RoleAdmin}),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errNoSession),
		},
	})
}
