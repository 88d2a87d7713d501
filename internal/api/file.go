package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/middleware"
	pgstore "github.com/lalith-99/gridbase/internal/repository/postgres"
)

// FileHandler serves uploads, downloads and inline views of tenant files.
type FileHandler struct {
	files  *pgstore.FileStoreDB
	logger *zap.Logger
}

func NewFileHandler(files *pgstore.FileStoreDB, logger *zap.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	actor := middleware.ActorFrom(c)
	info, err := h.files.Upload(c.Request.Context(), middleware.SessionFrom(c),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *FileHandler) Download(c *gin.Context) {
	h.serve(c, true)
}

func (h *FileHandler) View(c *gin.Context) {
	h.serve(c, false)
}

func (h *FileHandler) serve(c *gin.Context, attachment bool) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	info, data, err := h.files.GetFileData(c.Request.Context(), middleware.SessionFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, info.Name))
	c.Header("Content-Length", strconv.FormatInt(info.Size, 10))
	c.Data(http.StatusOK, info.Mime, data)
}

func (h *FileHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	if err := h.files.Delete(c.Request.Context(), middleware.SessionFrom(c), id, actor.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
}

func (h *FileHandler) ListMine(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	actor := middleware.ActorFrom(c)

	files, total, err := h.files.ListByUser(c.Request.Context(), middleware.SessionFrom(c), actor.UserID, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
