package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/auth"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

// AuthHandler implements two-stage login. Stage one verifies credentials
// against the shared user mirror and lists the tenants the email belongs
// to; stage two exchanges that for a token bound to one tenant schema.
type AuthHandler struct {
	tenants repository.TenantRepository
	users   repository.UserRepository
	router  *db.Router
	creds   repository.CredentialService
	tokens  *auth.TokenService
	logger  *zap.Logger
}

func NewAuthHandler(
	tenants repository.TenantRepository,
	users repository.UserRepository,
	router *db.Router,
	creds repository.CredentialService,
	tokens *auth.TokenService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		tenants: tenants, users: users, router: router,
		creds: creds, tokens: tokens, logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies the credentials once against the shared mirror, then
// walks the active tenants collecting the ones holding an active user for
// this email. The response carries the memberships and a pre-tenant token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	ctx := c.Request.Context()

	shared, err := h.router.Acquire(ctx, db.SharedSchema)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	mirror, err := h.users.GetByEmail(ctx, shared, req.Email)
	shared.Release()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if mirror == nil || !h.creds.Verify(req.Password, mirror.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if mirror.IsBlocked || !mirror.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is not available"})
		return
	}

	memberships, err := h.collectMemberships(ctx, req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := h.tokens.GeneratePreTenant(mirror.Email, mirror.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"companies": memberships,
	})
}

// collectMemberships probes every active tenant schema for an active user
// with this email. A tenant that fails to answer is skipped, not fatal;
// one broken schema must not lock the user out of the rest.
func (h *AuthHandler) collectMemberships(ctx context.Context, email string) ([]models.TenantMembership, error) {
	tenants, err := h.tenants.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	memberships := make([]models.TenantMembership, 0)
	for _, t := range tenants {
		sess, err := h.router.Acquire(ctx, t.SchemaName)
		if err != nil {
			h.logger.Warn("membership probe failed",
				zap.String("schema", t.SchemaName),
				zap.Error(err),
			)
			continue
		}
		u, err := h.users.GetByEmail(ctx, sess, email)
		sess.Release()
		if err != nil {
			h.logger.Warn("membership lookup failed",
				zap.String("schema", t.SchemaName),
				zap.Error(err),
			)
			continue
		}
		if u == nil || !u.IsActive || u.IsBlocked {
			continue
		}
		memberships = append(memberships, models.TenantMembership{
			TenantID:   t.ID,
			TenantCode: t.Code,
			TenantName: t.Name,
			SchemaName: t.SchemaName,
			UserID:     u.ID,
			Roles:      u.Roles,
		})
	}
	return memberships, nil
}

type selectCompanyRequest struct {
	CompanyCode string `json:"company_code" binding:"required"`
}

// SelectCompany exchanges a pre-tenant token for a tenant-bound one. The
// email inside the token must resolve to an active user in the chosen
// tenant's schema.
func (h *AuthHandler) SelectCompany(c *gin.Context) {
	var req selectCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_code required"})
		return
	}
	claims := middleware.ClaimsFrom(c)
	ctx := c.Request.Context()

	tenant, err := h.tenants.GetByCode(ctx, req.CompanyCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tenant == nil {
		respondError(c, h.logger, apperr.NotFound("company"))
		return
	}

	sess, err := h.router.Acquire(ctx, tenant.SchemaName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer sess.Release()

	u, err := h.users.GetByEmail(ctx, sess, claims.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if u == nil || !u.IsActive || u.IsBlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "no access to this company"})
		return
	}

	if err := h.users.TouchLastLogin(ctx, sess, u.ID); err != nil {
		h.logger.Warn("touch last login failed", zap.Error(err))
	}

	token, err := h.tokens.GenerateTenant(u.ID, u.Email, tenant.Code, tenant.SchemaName, u.Roles)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"company": gin.H{
			"company_code": tenant.Code,
			"company_name": tenant.Name,
			"schema_name":  tenant.SchemaName,
		},
		"user": u,
	})
}
