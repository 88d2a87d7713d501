package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/repository"
)

// CompanyHandler exposes the tenant registry and the provisioning flows.
type CompanyHandler struct {
	tenants     repository.TenantRepository
	provisioner repository.Provisioner
	logger      *zap.Logger
}

func NewCompanyHandler(tenants repository.TenantRepository, provisioner repository.Provisioner, logger *zap.Logger) *CompanyHandler {
	return &CompanyHandler{tenants: tenants, provisioner: provisioner, logger: logger}
}

type registerCompanyRequest struct {
	CompanyName   string  `json:"company_name" binding:"required"`
	Email         string  `json:"email" binding:"required,email"`
	Phone         *string `json:"phone"`
	Address       *string `json:"address"`
	AdminName     string  `json:"admin_name"`
	AdminEmail    string  `json:"admin_email"`
	AdminPassword string  `json:"admin_password"`
}

func (h *CompanyHandler) Register(c *gin.Context) {
	var req registerCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_name and a valid email required"})
		return
	}

	tenant, err := h.provisioner.Provision(c.Request.Context(), repository.ProvisionInput{
		Name:          req.CompanyName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		AdminName:     req.AdminName,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

type cloneCompanyRequest struct {
	SourceCode  string `json:"source_code" binding:"required"`
	CompanyName string `json:"company_name" binding:"required"`
}

func (h *CompanyHandler) Clone(c *gin.Context) {
	var req cloneCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_code and company_name required"})
		return
	}

	tenant, err := h.provisioner.Clone(c.Request.Context(), req.SourceCode, req.CompanyName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tenant)
}

func (h *CompanyHandler) GetByCode(c *gin.Context) {
	tenant, err := h.tenants.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tenant == nil {
		respondError(c, h.logger, apperr.NotFound("company"))
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *CompanyHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	tenants, total, err := h.tenants.List(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"companies": tenants,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

type updateCompanyRequest struct {
	CompanyName      *string `json:"company_name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Address          *string `json:"address"`
	IsActive         *bool   `json:"is_active"`
	SubscriptionPlan *string `json:"subscription_plan"`
	MaxUsers         *int    `json:"max_users"`
	StorageLimitMB   *int64  `json:"storage_limit_mb"`
}

func (h *CompanyHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}
	var req updateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tenant, err := h.tenants.Update(c.Request.Context(), id, repository.TenantUpdate{
		Name:             req.CompanyName,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		IsActive:         req.IsActive,
		SubscriptionPlan: req.SubscriptionPlan,
		MaxUsers:         req.MaxUsers,
		StorageLimitMB:   req.StorageLimitMB,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *CompanyHandler) Deactivate(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}
	if err := h.tenants.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "company deactivated"})
}

// Limits reports the calling tenant's usage against its subscription caps.
func (h *CompanyHandler) Limits(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)

	limits, err := h.tenants.CheckLimits(c.Request.Context(), claims.TenantSchema)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, limits)
}
