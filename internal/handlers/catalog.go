package handlers

import (
	"net/http"

	"psyeval/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	log     *zap.Logger
	catalog *repository.CatalogRepo
}

func NewCatalogHandler(log *zap.Logger, catalog *repository.CatalogRepo) *CatalogHandler {
	return &CatalogHandler{log: log, catalog: catalog}
}

func (h *CatalogHandler) Tests(c *gin.Context) {
	tests, err := h.catalog.Tests(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tests)
}

// Test resolves one instrument by slug or code and returns it with its
// item bank, as the test viewer consumes it.
func (h *CatalogHandler) Test(c *gin.Context) {
	key := c.Param("key")
	test, err := h.catalog.TestBySlugOrCodigo(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
		return
	}
	items, err := h.catalog.ItemsByTest(c.Request.Context(), test.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prueba": test, "items": items})
}
