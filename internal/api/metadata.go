package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/repository"
)

// MetadataHandler exposes the dynamic data model of a tenant: modules,
// tables and columns. Every endpoint runs on the request's bound session.
type MetadataHandler struct {
	modules repository.ModuleRepository
	tables  repository.TableRepository
	columns repository.ColumnRepository
	logger  *zap.Logger
}

func NewMetadataHandler(
	modules repository.ModuleRepository,
	tables repository.TableRepository,
	columns repository.ColumnRepository,
	logger *zap.Logger,
) *MetadataHandler {
	return &MetadataHandler{modules: modules, tables: tables, columns: columns, logger: logger}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// Modules

type moduleRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	IconRef     *string `json:"icon_ref"`
	Position    int     `json:"position"`
}

func (h *MetadataHandler) CreateModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	m, err := h.modules.Create(c.Request.Context(), middleware.SessionFrom(c), repository.ModuleInput{
		Name: req.Name, Description: req.Description, IconRef: req.IconRef, Position: req.Position,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MetadataHandler) ListModules(c *gin.Context) {
	modules, err := h.modules.List(c.Request.Context(), middleware.SessionFrom(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, modules)
}

func (h *MetadataHandler) GetModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := h.modules.GetByID(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MetadataHandler) UpdateModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	m, err := h.modules.Update(c.Request.Context(), middleware.SessionFrom(c), id, repository.ModuleInput{
		Name: req.Name, Description: req.Description, IconRef: req.IconRef,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type positionRequest struct {
	Position int `json:"position"`
}

func (h *MetadataHandler) UpdateModulePosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.modules.UpdatePosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *MetadataHandler) DeleteModule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cascade := c.Query("cascade") == "true"
	if err := h.modules.Delete(c.Request.Context(), middleware.SessionFrom(c), id, cascade); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "module deleted"})
}

// Tables

type tableRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ModuleID    *int64 `json:"module_id"`
	Position    int    `json:"position"`
}

func (h *MetadataHandler) CreateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	t, err := h.tables.Create(c.Request.Context(), middleware.SessionFrom(c), repository.TableInput{
		Name: req.Name, Description: req.Description, ModuleID: req.ModuleID, Position: req.Position,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *MetadataHandler) ListTables(c *gin.Context) {
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)

	if moduleParam := c.Query("module_id"); moduleParam != "" {
		moduleID, err := strconv.ParseInt(moduleParam, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid module_id"})
			return
		}
		tables, err := h.tables.ListByModule(ctx, sess, moduleID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, tables)
		return
	}

	tables, err := h.tables.List(ctx, sess)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (h *MetadataHandler) GetTable(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.tables.GetByID(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type tableUpdateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *MetadataHandler) UpdateTable(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tableUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	t, err := h.tables.Update(c.Request.Context(), middleware.SessionFrom(c), id, req.Name, req.Description)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *MetadataHandler) UpdateTablePosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.tables.UpdatePosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *MetadataHandler) DeleteTable(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cascade := c.Query("cascade") == "true"
	if err := h.tables.Delete(c.Request.Context(), middleware.SessionFrom(c), id, cascade); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "table deleted"})
}

type joinTableRequest struct {
	TableAID   int64  `json:"table_a_id" binding:"required"`
	TableBID   int64  `json:"table_b_id" binding:"required"`
	LinkColumn string `json:"link_column"`
}

func (h *MetadataHandler) GetOrCreateJoinTable(c *gin.Context) {
	var req joinTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_a_id and table_b_id required"})
		return
	}
	linkColumn := req.LinkColumn
	if linkColumn == "" {
		linkColumn = "original_id"
	}
	t, status, err := h.tables.GetOrCreateJoinTable(
		c.Request.Context(), middleware.SessionFrom(c), req.TableAID, req.TableBID, linkColumn)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	httpStatus := http.StatusOK
	if status == repository.JoinTableCreated {
		httpStatus = http.StatusCreated
	}
	c.JSON(httpStatus, gin.H{"table": t, "status": status})
}

// Columns

type columnRequest struct {
	TableID           int64          `json:"table_id" binding:"required"`
	Name              string         `json:"name" binding:"required"`
	DataType          string         `json:"data_type" binding:"required"`
	IsRequired        bool           `json:"is_required"`
	IsForeignKey      bool           `json:"is_foreign_key"`
	ForeignTableID    *int64         `json:"foreign_table_id"`
	ForeignColumnName *string        `json:"foreign_column_name"`
	RelationType      *string        `json:"relation_type"`
	Position          int            `json:"position"`
	Validations       map[string]any `json:"validations"`
	DefaultValue      any            `json:"default_value"`
	Backfill          bool           `json:"backfill"`
}

func (r columnRequest) input() repository.ColumnInput {
	return repository.ColumnInput{
		TableID:           r.TableID,
		Name:              r.Name,
		DataType:          r.DataType,
		IsRequired:        r.IsRequired,
		IsForeignKey:      r.IsForeignKey,
		ForeignTableID:    r.ForeignTableID,
		ForeignColumnName: r.ForeignColumnName,
		RelationType:      r.RelationType,
		Position:          r.Position,
		Validations:       r.Validations,
	}
}

// CreateColumn adds the definition and, when backfill is requested, writes
// the default value into every existing record of the table.
func (h *MetadataHandler) CreateColumn(c *gin.Context) {
	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id, name and data_type required"})
		return
	}
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)

	col, err := h.columns.Create(ctx, sess, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if req.Backfill {
		if err := h.columns.AddFieldToAllRecords(ctx, sess, req.TableID, req.Name, req.DefaultValue); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusCreated, col)
}

func (h *MetadataHandler) ListColumns(c *gin.Context) {
	tableID, ok := pathID(c, "id")
	if !ok {
		return
	}
	columns, err := h.columns.ListByTable(c.Request.Context(), middleware.SessionFrom(c), tableID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, columns)
}

// UpdateColumn changes the definition. When the name changes, the stored
// attribute key moves with it in every record of the table.
func (h *MetadataHandler) UpdateColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req columnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id, name and data_type required"})
		return
	}
	ctx := c.Request.Context()
	sess := middleware.SessionFrom(c)

	before, err := h.columns.GetByID(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	col, err := h.columns.Update(ctx, sess, id, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if before.Name != col.Name {
		if err := h.columns.RenameRecordKey(ctx, sess, col.TableID, before.Name, col.Name); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	c.JSON(http.StatusOK, col)
}

func (h *MetadataHandler) UpdateColumnPosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.columns.UpdatePosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *MetadataHandler) DeleteColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	force := c.Query("force") == "true"
	if err := h.columns.Delete(c.Request.Context(), middleware.SessionFrom(c), id, force); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "column deleted"})
}
