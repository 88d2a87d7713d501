package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/middleware"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

// RecordHandler serves record CRUD. Every operation is gated by the
// permission engine: the actor's effective rights on the record's table,
// the OR across their active roles. Absence of a grant denies.
type RecordHandler struct {
	records     repository.RecordRepository
	permissions repository.PermissionRepository
	audit       repository.AuditSink
	logger      *zap.Logger
}

func NewRecordHandler(
	records repository.RecordRepository,
	permissions repository.PermissionRepository,
	audit repository.AuditSink,
	logger *zap.Logger,
) *RecordHandler {
	return &RecordHandler{records: records, permissions: permissions, audit: audit, logger: logger}
}

type rightCheck func(models.Rights) bool

func (h *RecordHandler) requireRight(c *gin.Context, sess *db.Session, tableID int64, operation string, check rightCheck) bool {
	actor := middleware.ActorFrom(c)
	rights, err := h.permissions.GetUserRights(c.Request.Context(), sess, actor.UserID, tableID)
	if err != nil {
		respondError(c, h.logger, err)
		return false
	}
	if !check(rights) {
		respondError(c, h.logger, &apperr.PermissionDeniedError{Operation: operation})
		return false
	}
	return true
}

type createRecordRequest struct {
	TableID  int64          `json:"table_id" binding:"required"`
	Data     map[string]any `json:"record_data"`
	Position int            `json:"position"`
}

func (h *RecordHandler) Create(c *gin.Context) {
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_id required"})
		return
	}
	sess := middleware.SessionFrom(c)
	if !h.requireRight(c, sess, req.TableID, "create record", func(r models.Rights) bool { return r.CanCreate }) {
		return
	}

	record, err := h.records.Create(c.Request.Context(), sess, middleware.ActorFrom(c), req.TableID, req.Data, req.Position)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *RecordHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess := middleware.SessionFrom(c)

	record, err := h.records.GetByID(c.Request.Context(), sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireRight(c, sess, record.TableID, "read record", func(r models.Rights) bool { return r.CanRead }) {
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *RecordHandler) ListByTable(c *gin.Context) {
	tableID, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess := middleware.SessionFrom(c)
	if !h.requireRight(c, sess, tableID, "read records", func(r models.Rights) bool { return r.CanRead }) {
		return
	}

	ctx := c.Request.Context()
	if text := c.Query("search"); text != "" {
		records, err := h.records.SearchByValue(ctx, sess, tableID, text)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	records, err := h.records.ListByTable(ctx, sess, tableID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

type updateRecordRequest struct {
	Data     map[string]any `json:"record_data" binding:"required"`
	Position *int           `json:"position"`
}

func (h *RecordHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record_data required"})
		return
	}
	sess := middleware.SessionFrom(c)
	ctx := c.Request.Context()

	existing, err := h.records.GetByID(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireRight(c, sess, existing.TableID, "update record", func(r models.Rights) bool { return r.CanUpdate }) {
		return
	}

	record, err := h.records.Update(ctx, sess, middleware.ActorFrom(c), id, req.Data, req.Position)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *RecordHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess := middleware.SessionFrom(c)
	ctx := c.Request.Context()

	existing, err := h.records.GetByID(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireRight(c, sess, existing.TableID, "delete record", func(r models.Rights) bool { return r.CanDelete }) {
		return
	}

	if err := h.records.Delete(ctx, sess, middleware.ActorFrom(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "record deleted"})
}

func (h *RecordHandler) UpdatePosition(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position required"})
		return
	}
	sess := middleware.SessionFrom(c)
	ctx := c.Request.Context()

	existing, err := h.records.GetByID(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireRight(c, sess, existing.TableID, "update record", func(r models.Rights) bool { return r.CanUpdate }) {
		return
	}

	if err := h.records.UpdatePosition(ctx, sess, id, req.Position); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "position updated"})
}

// History lists the audit trail of one record, newest first.
func (h *RecordHandler) History(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sess := middleware.SessionFrom(c)
	ctx := c.Request.Context()

	existing, err := h.records.GetByID(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !h.requireRight(c, sess, existing.TableID, "read record history", func(r models.Rights) bool { return r.CanRead }) {
		return
	}

	entries, err := h.audit.ListByRecord(ctx, sess, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
