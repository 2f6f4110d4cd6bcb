package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/bfametrics/xerrors"
)

const testSecret = "this-is-a-valid-secret-key-at-least-32-chars"

func newTestAuth(t *testing.T, cfg *Config) Authenticator {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = testSecret
	}
	a, err := New(cfg)
	require.NoError(t, err)
	return a
}

func mint(t *testing.T, a Authenticator, subject string, roles ...string) string {
	t.Helper()
	token, err := a.GenerateToken(context.Background(), &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		Roles:            roles,
	})
	require.NoError(t, err)
	return token
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "empty secret key", cfg: &Config{}, wantErr: true},
		{name: "secret key too short", cfg: &Config{SecretKey: "short"}, wantErr: true},
		{name: "unsupported signing method", cfg: &Config{SecretKey: testSecret, SigningMethod: "RS256"}, wantErr: true},
		{name: "valid config", cfg: &Config{SecretKey: testSecret}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				assert.Nil(t, a)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, a)
		})
	}
}

func TestGenerateAndValidate(t *testing.T) {
	a := newTestAuth(t, &Config{Issuer: "bfa-metrics", Audience: []string{"intake"}})
	ctx := context.Background()

	token := mint(t, a, "jenkins-ci-1", RoleReporter)
	claims, err := a.ValidateToken(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, "jenkins-ci-1", claims.Subject)
	assert.Equal(t, "bfa-metrics", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"intake"}, claims.Audience)
	assert.True(t, claims.HasRole(RoleReporter))
	assert.False(t, claims.HasRole(RoleAdmin))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = a.GenerateToken(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestValidateTokenErrors(t *testing.T) {
	a := newTestAuth(t, nil)
	ctx := context.Background()

	t.Run("expired", func(t *testing.T) {
		token, err := a.GenerateToken(ctx, &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ci",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}})
		require.NoError(t, err)
		_, err = a.ValidateToken(ctx, token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newTestAuth(t, &Config{SecretKey: "another-valid-secret-key-with-32-characters"})
		_, err := a.ValidateToken(ctx, mint(t, other, "ci"))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.ValidateToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		strict := newTestAuth(t, &Config{Issuer: "bfa-metrics"})
		loose := newTestAuth(t, &Config{Issuer: "someone-else"})
		_, err := strict.ValidateToken(ctx, mint(t, loose, "ci"))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaimsHasRole(t *testing.T) {
	var nilClaims *Claims
	assert.False(t, nilClaims.HasRole(RoleReporter))
	assert.True(t, (&Claims{Roles: []string{RoleAdmin}}).HasRole(RoleReporter), "admin holds every role")
}

func newAuthRouter(a Authenticator, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(a.GinMiddleware(), RequireRoles(roles...))
	r.POST("/v1/events", func(c *gin.Context) {
		claims, _ := GetClaims(c)
		c.String(http.StatusAccepted, claims.Subject)
	})
	return r
}

func TestGinMiddleware(t *testing.T) {
	a := newTestAuth(t, nil)
	router := newAuthRouter(a, RoleReporter)

	do := func(mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
		mutate(req)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("bearer header", func(t *testing.T) {
		w := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mint(t, a, "ci-1", RoleReporter)) })
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "ci-1", w.Body.String())
	})

	t.Run("query fallback", func(t *testing.T) {
		token := mint(t, a, "ci-2", RoleReporter)
		w := do(func(r *http.Request) { r.URL.RawQuery = "token=" + token })
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := do(func(*http.Request) {})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := do(func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing role", func(t *testing.T) {
		w := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+mint(t, a, "viewer")) })
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})
}

func TestTokenLookupHeaderOnly(t *testing.T) {
	a := newTestAuth(t, &Config{TokenLookup: "header:X-BFA-Token", TokenHeadName: "Token"})
	router := newAuthRouter(a)
	token := mint(t, a, "ci")

	req := httptest.NewRequest(http.MethodPost, "/v1/events?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query is ignored when lookup names a header")

	req = httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	req.Header.Set("X-BFA-Token", "Token "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireRoles(RoleAdmin))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
