package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func TestJWTRoundTrip(t *testing.T) {
	store := testutil.NewStore(t)
	auth := service.NewAuthService(store.Users, testSecret, time.Hour, false)
	user := testutil.CreateUser(t, store, "alice@example.com")

	token, expiry, err := auth.GenerateJWT(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := auth.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, "alice@example.com", claims["email"])

	other := service.NewAuthService(store.Users, "another-secret-that-is-long-enough", time.Hour, false)
	_, err = other.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWTRejectsExpiredAndNoneAlg(t *testing.T) {
	store := testutil.NewStore(t)
	auth := service.NewAuthService(store.Users, testSecret, -time.Minute, false)
	user := testutil.CreateUser(t, store, "alice@example.com")

	expired, _, err := auth.GenerateJWT(user)
	require.NoError(t, err)
	_, err = auth.VerifyJWT(expired)
	assert.Error(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": user.ID.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.VerifyJWT(raw)
	assert.Error(t, err)
}

func TestResolveUser(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	auth := service.NewAuthService(store.Users, testSecret, time.Hour, false)
	user := testutil.CreateUser(t, store, "alice@example.com")

	token, _, err := auth.GenerateJWT(user)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*model.User, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := auth.ResolveUser(ctx, token)
			assert.NoError(t, err)
			results[i] = u
		}(i)
	}
	wg.Wait()

	for _, u := range results {
		require.NotNil(t, u)
		assert.Equal(t, user.ID, u.ID)
	}
	results[0].Name = "changed"
	assert.Equal(t, "alice", results[1].Name)

	_, err = auth.ResolveUser(ctx, "garbage")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	ghost := &model.User{ID: model.NewID(), Email: "ghost@example.com"}
	ghostToken, _, err := auth.GenerateJWT(ghost)
	require.NoError(t, err)
	_, err = auth.ResolveUser(ctx, ghostToken)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestCredentials(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, time.Hour, false)

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantToken  string
		wantBearer bool
	}{
		{name: "none"},
		{name: "cookie", cookie: "c-token", wantToken: "c-token"},
		{name: "bearer", header: "Bearer b-token", wantToken: "b-token", wantBearer: true},
		{name: "bearer wins", header: "bearer b-token", cookie: "c-token", wantToken: "b-token", wantBearer: true},
		{name: "other scheme", header: "Basic abc", cookie: "c-token", wantToken: "c-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: service.AuthCookieName, Value: tt.cookie})
			}

			token, bearer := auth.Credentials(r)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantBearer, bearer)
		})
	}
}

func TestAuthCookies(t *testing.T) {
	auth := service.NewAuthService(nil, testSecret, time.Hour, true)

	rec := httptest.NewRecorder()
	auth.SetJWTCookie(rec, "tok", time.Now().Add(time.Hour))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, service.AuthCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	rec = httptest.NewRecorder()
	auth.ClearJWTCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
}
