package handler

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/suleymanmyradov/auth-core/internal/config"
	"github.com/suleymanmyradov/auth-core/internal/domain"
	"github.com/suleymanmyradov/auth-core/internal/passwordhasher"
	"github.com/suleymanmyradov/auth-core/internal/svc"
	"github.com/suleymanmyradov/auth-core/internal/types"
	"github.com/suleymanmyradov/auth-core/internal/useraccount"
)

func init() {
	httpx.SetErrorHandlerCtx(ErrorHandler)
}

func writeKeyPair(t *testing.T, dir string) (privPath, pubPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPath = filepath.Join(dir, "k1.private.pem")
	pubPath = filepath.Join(dir, "k1.public.pem")

	privBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(privPath, privBytes, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	require.NoError(t, os.WriteFile(pubPath, pubBytes, 0o644))

	return privPath, pubPath
}

func newTestServiceContext(t *testing.T, namespace string) *svc.ServiceContext {
	dir := t.TempDir()
	priv, pub := writeKeyPair(t, dir)

	var c config.Config
	c.Mode = "dev"
	c.JWT.Issuer = "auth-core-test"
	c.JWT.AccessAudience = "aud:access"
	c.JWT.RefreshAudience = "aud:refresh"
	c.JWT.ActiveKid = "k1"
	c.JWT.VerificationKids = []string{"k1"}
	c.JWT.Keys = []config.KeySource{{Kid: "k1", PrivateKeyPath: priv, PublicKeyPath: pub}}
	c.JWT.AccessTTL = 15 * time.Minute
	c.JWT.RefreshTTL = 24 * time.Hour
	c.JWT.RotateRefresh = true
	c.Security.Store.RefreshBackend = "memory"
	c.Security.Redis.Addr = "localhost:6379"
	c.Security.Attempts.MaxAttempts = 5
	c.Security.Attempts.Window = 15 * time.Minute
	c.Security.Attempts.BlockDuration = 15 * time.Minute
	c.Security.RateLimit.Strategy = "IP_USER"
	c.Metrics.Namespace = namespace

	ctx := svc.NewServiceContext(c)

	hasher := passwordhasher.NewBcryptHasher(4)
	hash, err := hasher.Hash("admin123")
	require.NoError(t, err)

	accounts, ok := ctx.Accounts.(*useraccount.MemoryGateway)
	require.True(t, ok)
	accounts.Put(domain.User{
		ID: "u1", Username: "admin", Status: domain.UserActive,
		Roles:        []domain.Role{{Name: "ROLE_ADMIN", Scopes: []domain.Scope{"profile:read"}}},
		PasswordHash: hash,
	})

	return ctx
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginHandler_ValidCredentialsReturnsTokenPair(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_login_ok")
	rec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "admin", Password: "admin123"})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
}

func TestLoginHandler_WrongPasswordReturnsUnauthorized(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_login_bad")
	rec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "admin", Password: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginHandler_LockedAccountReturnsForbidden(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_login_locked")

	hasher := passwordhasher.NewBcryptHasher(4)
	hash, err := hasher.Hash("admin123")
	require.NoError(t, err)

	accounts, ok := ctx.Accounts.(*useraccount.MemoryGateway)
	require.True(t, ok)
	accounts.Put(domain.User{
		ID: "u2", Username: "locked", Status: domain.UserLocked,
		PasswordHash: hash,
	})

	rec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "locked", Password: "admin123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRefreshHandler_RotatesToken(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_refresh")
	loginRec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, loginRec.Code)

	var loginResp types.LoginResponse
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))

	refreshRec := postJSON(t, RefreshHandler(ctx), types.RefreshRequest{RefreshToken: loginResp.RefreshToken})
	require.Equal(t, http.StatusOK, refreshRec.Code)

	var refreshResp types.RefreshResponse
	require.NoError(t, json.Unmarshal(refreshRec.Body.Bytes(), &refreshResp))
	assert.NotEqual(t, loginResp.RefreshToken, refreshResp.RefreshToken)
}

func TestRefreshHandler_ReusedTokenReturnsUnauthorized(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_refresh_reuse")
	loginRec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "admin", Password: "admin123"})
	var loginResp types.LoginResponse
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))

	first := postJSON(t, RefreshHandler(ctx), types.RefreshRequest{RefreshToken: loginResp.RefreshToken})
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, RefreshHandler(ctx), types.RefreshRequest{RefreshToken: loginResp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestMeHandler_WithValidBearerTokenReturnsPrincipal(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_me_ok")
	loginRec := postJSON(t, LoginHandler(ctx), types.LoginRequest{Username: "admin", Password: "admin123"})
	var loginResp types.LoginResponse
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	rec := httptest.NewRecorder()

	guarded := ctx.AuthzFilter.Handle(MeHandler(ctx))
	guarded(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp types.MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "admin", resp.Username)
	assert.Equal(t, "u1", resp.UserID)
}

func TestMeHandler_WithoutTokenReturnsUnauthorized(t *testing.T) {
	ctx := newTestServiceContext(t, "handlertest_me_noauth")

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	guarded := ctx.AuthzFilter.Handle(MeHandler(ctx))
	guarded(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
