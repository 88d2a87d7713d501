package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalith-99/gridbase/internal/auth"
)

func newTestEngine(t *testing.T, tokens *auth.TokenService, stage string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("/", RequireAuth(tokens), RequireStage(stage))
	group.GET("/protected", func(c *gin.Context) {
		claims := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"email": claims.Email})
	})
	return engine
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	svc, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", 30*time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func TestRequireAuthMissingHeader(t *testing.T) {
	engine := newTestEngine(t, newTestTokens(t), auth.StageTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	engine := newTestEngine(t, newTestTokens(t), auth.StageTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	engine := newTestEngine(t, newTestTokens(t), auth.StageTenant)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireStageRejectsPreTenantToken(t *testing.T) {
	tokens := newTestTokens(t)
	engine := newTestEngine(t, tokens, auth.StageTenant)

	token, err := tokens.GeneratePreTenant("jo@acme.test", "Jo")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireStageAcceptsTenantToken(t *testing.T) {
	tokens := newTestTokens(t)
	engine := newTestEngine(t, tokens, auth.StageTenant)

	token, err := tokens.GenerateTenant(uuid.New(), "jo@acme.test", "EMP-ABC123", "acme", []string{"Admin"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jo@acme.test")
}
