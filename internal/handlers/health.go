package handlers

import (
	"net/http"

	"psyeval/internal/inference"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthHandler struct {
	log   *zap.Logger
	db    *gorm.DB
	infer *inference.Client
}

func NewHealthHandler(log *zap.Logger, db *gorm.DB, infer *inference.Client) *HealthHandler {
	return &HealthHandler{log: log, db: db, infer: infer}
}

// Health reports database reachability and the inference service's own
// health. The endpoint answers 200 as long as the database responds; a down
// inference service is reported but does not fail the check, since most of
// the application works without it.
func (h *HealthHandler) Health(c *gin.Context) {
	status := gin.H{"status": "ok"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": "unreachable"})
		return
	}
	status["database"] = "ok"

	if err := h.infer.Health(c.Request.Context()); err != nil {
		status["inference"] = "unreachable"
	} else {
		status["inference"] = "ok"
	}

	c.JSON(http.StatusOK, status)
}
