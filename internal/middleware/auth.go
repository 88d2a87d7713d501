package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/auth"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/repository"
)

const (
	claimsKey  = "auth_claims"
	sessionKey = "tenant_session"
)

// RequireAuth verifies the bearer token and stores its claims on the
// context. Stage is not checked here; use RequireStage for that.
func RequireAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := tokens.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireStage rejects tokens of the wrong stage. Tenant endpoints demand
// the tenant stage; the select-company exchange demands pre-tenant.
func RequireStage(stage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil || claims.Stage != stage {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token stage not valid for this endpoint"})
			return
		}
		c.Next()
	}
}

// TenantSession binds one pooled connection to the token's tenant schema
// for the duration of the request. Handlers running under it share that
// session, so multi-step operations ride a single connection. The session
// is released on every exit path.
func TenantSession(router *db.Router) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil || claims.TenantSchema == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no tenant bound to token"})
			return
		}

		sess, err := router.Acquire(c.Request.Context(), claims.TenantSchema)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": "could not bind tenant session"})
			return
		}
		defer sess.Release()

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// ClaimsFrom returns the verified token claims, or nil outside RequireAuth.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// SessionFrom returns the request's bound tenant session, or nil outside
// TenantSession.
func SessionFrom(c *gin.Context) *db.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*db.Session)
	return sess
}

// ActorFrom builds the audit actor from the request. UserID is Nil when the
// token carries no user id.
func ActorFrom(c *gin.Context) repository.Actor {
	actor := repository.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if claims := ClaimsFrom(c); claims != nil && claims.UserID != "" {
		if id, err := uuid.Parse(claims.UserID); err == nil {
			actor.UserID = id
		}
	}
	return actor
}
