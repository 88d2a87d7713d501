package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/auth"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/middleware"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Company       *CompanyHandler
	Metadata      *MetadataHandler
	View          *ViewHandler
	Record        *RecordHandler
	Permission    *PermissionHandler
	User          *UserHandler
	Notification  *NotificationHandler
	File          *FileHandler
	TokenService  *auth.TokenService
	SessionRouter *db.Router
	DB            *db.DB
	Logger        *zap.Logger
}

// NewRouter builds the gin engine with all routes. Three zones: public
// (login, registration, health), pre-tenant (company selection), and
// tenant-bound (everything else, riding one session per request).
func NewRouter(h Handlers) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Recovery(h.Logger))
	engine.Use(middleware.RequestLogger(h.Logger))

	engine.GET("/health", func(c *gin.Context) {
		if err := h.DB.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/companies/register", h.Company.Register)

	preTenant := api.Group("")
	preTenant.Use(middleware.RequireAuth(h.TokenService), middleware.RequireStage(auth.StagePreTenant))
	preTenant.POST("/auth/select-company", h.Auth.SelectCompany)

	tenant := api.Group("")
	tenant.Use(
		middleware.RequireAuth(h.TokenService),
		middleware.RequireStage(auth.StageTenant),
		middleware.TenantSession(h.SessionRouter),
	)

	tenant.POST("/companies/clone", h.Company.Clone)
	tenant.GET("/companies", h.Company.List)
	tenant.GET("/companies/limits", h.Company.Limits)
	tenant.GET("/companies/:code", h.Company.GetByCode)
	tenant.PUT("/companies/:id", h.Company.Update)
	tenant.DELETE("/companies/:id", h.Company.Deactivate)

	tenant.POST("/modules", h.Metadata.CreateModule)
	tenant.GET("/modules", h.Metadata.ListModules)
	tenant.GET("/modules/:id", h.Metadata.GetModule)
	tenant.PUT("/modules/:id", h.Metadata.UpdateModule)
	tenant.PUT("/modules/:id/position", h.Metadata.UpdateModulePosition)
	tenant.DELETE("/modules/:id", h.Metadata.DeleteModule)

	tenant.POST("/tables", h.Metadata.CreateTable)
	tenant.GET("/tables", h.Metadata.ListTables)
	tenant.GET("/tables/:id", h.Metadata.GetTable)
	tenant.PUT("/tables/:id", h.Metadata.UpdateTable)
	tenant.PUT("/tables/:id/position", h.Metadata.UpdateTablePosition)
	tenant.DELETE("/tables/:id", h.Metadata.DeleteTable)
	tenant.POST("/tables/join", h.Metadata.GetOrCreateJoinTable)

	tenant.POST("/columns", h.Metadata.CreateColumn)
	tenant.GET("/tables/:id/columns", h.Metadata.ListColumns)
	tenant.PUT("/columns/:id", h.Metadata.UpdateColumn)
	tenant.PUT("/columns/:id/position", h.Metadata.UpdateColumnPosition)
	tenant.DELETE("/columns/:id", h.Metadata.DeleteColumn)

	tenant.POST("/views", h.View.Create)
	tenant.GET("/tables/:id/views", h.View.ListByTable)
	tenant.PUT("/views/:id", h.View.Update)
	tenant.PUT("/views/:id/position", h.View.UpdatePosition)
	tenant.DELETE("/views/:id", h.View.Delete)
	tenant.POST("/views/:id/columns", h.View.AddColumn)
	tenant.GET("/views/:id/columns", h.View.ListColumns)
	tenant.PUT("/view-columns/:id", h.View.UpdateColumn)
	tenant.PUT("/view-columns/:id/position", h.View.UpdateColumnPosition)
	tenant.DELETE("/view-columns/:id", h.View.RemoveColumn)
	tenant.POST("/views/:id/sorts", h.View.AddSort)
	tenant.GET("/views/:id/sorts", h.View.ListSorts)
	tenant.PUT("/view-sorts/:id", h.View.UpdateSort)
	tenant.PUT("/view-sorts/:id/position", h.View.UpdateSortPosition)
	tenant.DELETE("/view-sorts/:id", h.View.RemoveSort)

	tenant.POST("/records", h.Record.Create)
	tenant.GET("/records/:id", h.Record.Get)
	tenant.GET("/records/:id/history", h.Record.History)
	tenant.GET("/tables/:id/records", h.Record.ListByTable)
	tenant.PUT("/records/:id", h.Record.Update)
	tenant.PUT("/records/:id/position", h.Record.UpdatePosition)
	tenant.DELETE("/records/:id", h.Record.Delete)

	tenant.GET("/permissions/me", h.Permission.MyRights)
	tenant.GET("/permissions/me/:tableId", h.Permission.MyTableRights)
	tenant.GET("/roles/:roleId/permissions", h.Permission.ListByRole)
	tenant.PUT("/roles/:roleId/permissions/:tableId", h.Permission.SetRoleTableRights)
	tenant.PUT("/roles/:roleId/permissions", h.Permission.BulkUpdateRole)
	tenant.DELETE("/roles/:roleId/permissions/:tableId", h.Permission.DeleteRoleTableRights)

	tenant.POST("/roles", h.Permission.CreateRole)
	tenant.GET("/roles", h.Permission.ListRoles)
	tenant.PUT("/roles/:roleId", h.Permission.UpdateRole)
	tenant.DELETE("/roles/:roleId", h.Permission.DeactivateRole)

	tenant.POST("/users", h.User.Create)
	tenant.GET("/users", h.User.List)
	tenant.GET("/users/:id", h.User.Get)
	tenant.PUT("/users/:id", h.User.Rename)
	tenant.PUT("/users/:id/password", h.User.ChangePassword)
	tenant.PUT("/users/:id/blocked", h.User.SetBlocked)
	tenant.PUT("/users/:id/active", h.User.SetActive)
	tenant.PUT("/users/:id/avatar", h.User.SetAvatar)
	tenant.POST("/users/:id/roles", h.User.AssignRole)
	tenant.GET("/users/:id/roles", h.User.ListRoles)
	tenant.DELETE("/users/:id/roles/:roleId", h.User.RemoveRole)

	tenant.GET("/notifications", h.Notification.List)
	tenant.GET("/notifications/unread", h.Notification.UnreadCount)
	tenant.PUT("/notifications/:id/read", h.Notification.MarkRead)
	tenant.PUT("/notifications/read-all", h.Notification.MarkAllRead)
	tenant.DELETE("/notifications/:id", h.Notification.Delete)
	tenant.DELETE("/notifications", h.Notification.DeleteAll)

	tenant.POST("/files", h.File.Upload)
	tenant.GET("/files", h.File.ListMine)
	tenant.GET("/files/:id/download", h.File.Download)
	tenant.GET("/files/:id/view", h.File.View)
	tenant.DELETE("/files/:id", h.File.Delete)

	return engine
}
