package handlers

import (
	"net/http"

	"psyeval/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProfileHandler struct {
	log      *zap.Logger
	profiles *services.ProfileService
}

func NewProfileHandler(log *zap.Logger, profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{log: log, profiles: profiles}
}

// Ready tells the UI whether the generate button can be offered.
func (h *ProfileHandler) Ready(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ready, missing, err := h.profiles.Ready(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": ready, "faltantes": missing})
}

func (h *ProfileHandler) Generate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.profiles.Generate(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	contribs := []services.Contribution{}
	if result.Fresh != nil && result.Fresh.Explicacion != nil {
		contribs = services.NormalizeContributions(result.Fresh.Explicacion.TopFeatures)
	}
	c.JSON(status, gin.H{
		"profile":        result.Profile,
		"created":        result.Created,
		"fresh":          result.Fresh,
		"contribuciones": contribs,
	})
}

// View re-runs inference for display without touching storage.
func (h *ProfileHandler) View(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	fresh, err := h.profiles.View(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	contribs := []services.Contribution{}
	if fresh.Explicacion != nil {
		contribs = services.NormalizeContributions(fresh.Explicacion.TopFeatures)
	}
	c.JSON(http.StatusOK, gin.H{"fresh": fresh, "contribuciones": contribs})
}

// Latest returns the stored current profile, 404 when none was generated.
func (h *ProfileHandler) Latest(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	profile, err := h.profiles.Latest(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile generated yet"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Features exposes the feature map for debugging an inference run.
func (h *ProfileHandler) Features(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	features, err := h.profiles.CollectFeatures(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, features)
}
