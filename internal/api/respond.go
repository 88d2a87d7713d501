package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/gridbase/internal/apperr"
)

// respondError maps a taxonomy error to its status code. Anything outside
// the taxonomy is a 500 with a generic body; the detail goes to the log
// only.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var conflict *apperr.ConflictError
	if errors.As(err, &conflict) {
		body["code"] = conflict.Code
	}
	var notFound *apperr.NotFoundError
	if errors.As(err, &notFound) && notFound.Code != "" {
		body["code"] = notFound.Code
	}
	c.JSON(status, body)
}
