package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/repository"
)

// UserHandler manages tenant users. Mutations go through the dual-homed
// write path; the response reports whether the shared mirror accepted the
// change.
type UserHandler struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	creds  repository.CredentialService
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, roles repository.RoleRepository, creds repository.CredentialService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, roles: roles, creds: creds, logger: logger}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func tenantSchema(c *gin.Context) string {
	return middleware.ClaimsFrom(c).TenantSchema
}

type createUserRequest struct {
	Name      string  `json:"name" binding:"required"`
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required"`
	AvatarURL *string `json:"avatar_url"`
	RoleIDs   []int64 `json:"role_ids"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password required"})
		return
	}
	ctx := c.Request.Context()

	result, err := h.users.Create(ctx, tenantSchema(c), repository.UserInput{
		Name: req.Name, Email: req.Email, Password: req.Password, AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	sess := middleware.SessionFrom(c)
	for _, roleID := range req.RoleIDs {
		if err := h.roles.AssignToUser(ctx, sess, result.User.ID, roleID); err != nil {
			h.logger.Warn("assign role on create failed",
				zap.String("user_id", result.User.ID.String()),
				zap.Int64("role_id", roleID),
				zap.Error(err),
			)
		}
	}
	c.JSON(http.StatusCreated, result)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	u, err := h.users.GetByID(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type renameUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func (h *UserHandler) Rename(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req renameUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email required"})
		return
	}
	result, err := h.users.Rename(c.Request.Context(), tenantSchema(c), id, req.Name, req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type changePasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}
	hash, err := h.creds.Hash(req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.users.ChangePassword(c.Request.Context(), tenantSchema(c), id, hash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type flagRequest struct {
	Value bool `json:"value"`
}

func (h *UserHandler) SetBlocked(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value required"})
		return
	}
	result, err := h.users.SetBlocked(c.Request.Context(), tenantSchema(c), id, req.Value)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *UserHandler) SetActive(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value required"})
		return
	}
	result, err := h.users.SetActive(c.Request.Context(), tenantSchema(c), id, req.Value)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type avatarRequest struct {
	AvatarURL string `json:"avatar_url" binding:"required"`
}

func (h *UserHandler) SetAvatar(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar_url required"})
		return
	}
	result, err := h.users.SetAvatar(c.Request.Context(), tenantSchema(c), id, req.AvatarURL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" binding:"required"`
}

func (h *UserHandler) AssignRole(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role_id required"})
		return
	}
	if err := h.roles.AssignToUser(c.Request.Context(), middleware.SessionFrom(c), id, req.RoleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role assigned"})
}

func (h *UserHandler) RemoveRole(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	if err := h.roles.RemoveFromUser(c.Request.Context(), middleware.SessionFrom(c), id, roleID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role removed"})
}

func (h *UserHandler) ListRoles(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	roles, err := h.roles.ListByUser(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}
