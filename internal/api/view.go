package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/repository"
)

// ViewHandler exposes saved table presentations: views, their per-column
// display settings and their sort levels.
type ViewHandler struct {
	views  repository.ViewRepository
	logger *zap.Logger
}

func NewViewHandler(views repository.ViewRepository, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{views: views, logger: logger}
}

type viewRequest struct {
	TableID       int64   `json:"table_id"`
	Name          string  `json:"name" binding:"required"`
	SortBy        *string `json:"sort_by"`
	SortDirection string  `json:"sort_direction"`
	Position      int     `json:"position"`
}

func (h *ViewHandler) Create(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TableID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id and name required"})
		return
	}
	v, err := h.views.Create(c.Request.Context(), middleware.SessionFrom(c), repository.ViewInput{
		TableID: req.TableID, Name: req.Name, SortBy: req.SortBy,
		SortDirection: req.SortDirection, Position: req.Position,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *ViewHandler) ListByTable(c *gin.Context) {
	tableID, ok := pathID(c, "id")
	if !ok {
		return
	}
	views, err := h.views.ListByTable(c.Request.Context(), middleware.SessionFrom(c), tableID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *ViewHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}
	v, err := h.views.Update(c.Request.Context(), middleware.SessionFrom(c), id, repository.ViewInput{
		Name: req.Name, SortBy: req.SortBy, SortDirection: req.SortDirection,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *ViewHandler) UpdatePosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.views.UpdatePosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *ViewHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.views.Delete(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "view deleted"})
}

type viewColumnRequest struct {
	ColumnID        int64   `json:"column_id" binding:"required"`
	Visible         *bool   `json:"visible"`
	FilterCondition *string `json:"filter_condition"`
	FilterValue     *string `json:"filter_value"`
	Position        int     `json:"position"`
	WidthPx         *int    `json:"width_px"`
}

func (h *ViewHandler) AddColumn(c *gin.Context) {
	viewID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req viewColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column_id required"})
		return
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	vc, err := h.views.AddColumn(c.Request.Context(), middleware.SessionFrom(c), repository.ViewColumnInput{
		ViewID: viewID, ColumnID: req.ColumnID, Visible: visible,
		FilterCondition: req.FilterCondition, FilterValue: req.FilterValue,
		Position: req.Position, WidthPx: req.WidthPx,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, vc)
}

func (h *ViewHandler) ListColumns(c *gin.Context) {
	viewID, ok := pathID(c, "id")
	if !ok {
		return
	}
	cols, err := h.views.ListColumns(c.Request.Context(), middleware.SessionFrom(c), viewID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cols)
}

func (h *ViewHandler) UpdateColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req viewColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column_id required"})
		return
	}
	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	vc, err := h.views.UpdateColumn(c.Request.Context(), middleware.SessionFrom(c), id, repository.ViewColumnInput{
		ColumnID: req.ColumnID, Visible: visible,
		FilterCondition: req.FilterCondition, FilterValue: req.FilterValue,
		WidthPx: req.WidthPx,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, vc)
}

func (h *ViewHandler) UpdateColumnPosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.views.UpdateColumnPosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *ViewHandler) RemoveColumn(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.views.RemoveColumn(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "view column removed"})
}

type viewSortRequest struct {
	ColumnID  int64  `json:"column_id" binding:"required"`
	Direction string `json:"direction"`
}

func (h *ViewHandler) AddSort(c *gin.Context) {
	viewID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req viewSortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column_id required"})
		return
	}
	vs, err := h.views.AddSort(c.Request.Context(), middleware.SessionFrom(c), repository.ViewSortInput{
		ViewID: viewID, ColumnID: req.ColumnID, Direction: req.Direction,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, vs)
}

func (h *ViewHandler) ListSorts(c *gin.Context) {
	viewID, ok := pathID(c, "id")
	if !ok {
		return
	}
	sorts, err := h.views.ListSorts(c.Request.Context(), middleware.SessionFrom(c), viewID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sorts)
}

func (h *ViewHandler) UpdateSort(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req viewSortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "column_id required"})
		return
	}
	vs, err := h.views.UpdateSort(c.Request.Context(), middleware.SessionFrom(c), id, repository.ViewSortInput{
		ColumnID: req.ColumnID, Direction: req.Direction,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, vs)
}

func (h *ViewHandler) UpdateSortPosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	if err := h.views.UpdateSortPosition(c.Request.Context(), middleware.SessionFrom(c), id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

func (h *ViewHandler) RemoveSort(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.views.RemoveSort(c.Request.Context(), middleware.SessionFrom(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "view sort removed"})
}
