package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

// PermissionHandler manages role grants and reports effective rights.
type PermissionHandler struct {
	permissions repository.PermissionRepository
	roles       repository.RoleRepository
	logger      *zap.Logger
}

func NewPermissionHandler(permissions repository.PermissionRepository, roles repository.RoleRepository, logger *zap.Logger) *PermissionHandler {
	return &PermissionHandler{permissions: permissions, roles: roles, logger: logger}
}

// MyRights returns the caller's effective rights on every table they hold
// at least one grant for. Tables absent from the map are fully denied.
func (h *PermissionHandler) MyRights(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	rights, err := h.permissions.GetUserRightsAllTables(c.Request.Context(), middleware.SessionFrom(c), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rights)
}

// MyTableRights returns the caller's effective rights on one table.
func (h *PermissionHandler) MyTableRights(c *gin.Context) {
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)

	rights, err := h.permissions.GetUserRights(c.Request.Context(), middleware.SessionFrom(c), actor.UserID, tableID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rights)
}

func (h *PermissionHandler) ListByRole(c *gin.Context) {
	roleID, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	perms, err := h.permissions.ListByRole(c.Request.Context(), middleware.SessionFrom(c), roleID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, perms)
}

type setRightsRequest struct {
	CanCreate bool `json:"can_create"`
	CanRead   bool `json:"can_read"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

func (h *PermissionHandler) SetRoleTableRights(c *gin.Context) {
	roleID, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}
	var req setRightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.permissions.SetRoleTableRights(c.Request.Context(), middleware.SessionFrom(c), roleID, tableID, models.Rights{
		CanCreate: req.CanCreate, CanRead: req.CanRead, CanUpdate: req.CanUpdate, CanDelete: req.CanDelete,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permissions updated"})
}

type bulkRightsRequest struct {
	Permissions []struct {
		TableID   int64 `json:"table_id" binding:"required"`
		CanCreate bool  `json:"can_create"`
		CanRead   bool  `json:"can_read"`
		CanUpdate bool  `json:"can_update"`
		CanDelete bool  `json:"can_delete"`
	} `json:"permissions" binding:"required"`
}

// BulkUpdateRole replaces every grant of the role in one transaction.
func (h *PermissionHandler) BulkUpdateRole(c *gin.Context) {
	roleID, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	var req bulkRightsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "permissions required"})
		return
	}

	rights := make(map[int64]models.Rights, len(req.Permissions))
	for _, p := range req.Permissions {
		rights[p.TableID] = models.Rights{
			CanCreate: p.CanCreate, CanRead: p.CanRead, CanUpdate: p.CanUpdate, CanDelete: p.CanDelete,
		}
	}

	if err := h.permissions.BulkUpdateRole(c.Request.Context(), middleware.SessionFrom(c), roleID, rights); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permissions updated"})
}

func (h *PermissionHandler) DeleteRoleTableRights(c *gin.Context) {
	roleID, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	tableID, ok := pathID(c, "tableId")
	if !ok {
		return
	}
	if err := h.permissions.DeleteRoleTableRights(c.Request.Context(), middleware.SessionFrom(c), roleID, tableID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "permissions removed"})
}

// Roles

type roleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *PermissionHandler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	role, err := h.roles.Create(c.Request.Context(), middleware.SessionFrom(c), req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (h *PermissionHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h *PermissionHandler) UpdateRole(c *gin.Context) {
	id, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	role, err := h.roles.Update(c.Request.Context(), middleware.SessionFrom(c), id, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *PermissionHandler) DeactivateRole(c *gin.Context) {
	id, ok := pathID(c, "roleId")
	if !ok {
		return
	}
	if err := h.roles.Deactivate(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role deactivated"})
}
