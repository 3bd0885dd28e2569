package handlers

import (
	"net/http"

	"psyeval/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AttemptHandler struct {
	log      *zap.Logger
	attempts *services.AttemptService
	scoring  *services.ScoringService
}

func NewAttemptHandler(log *zap.Logger, attempts *services.AttemptService, scoring *services.ScoringService) *AttemptHandler {
	return &AttemptHandler{log: log, attempts: attempts, scoring: scoring}
}

type startRequest struct {
	CasoID   uuid.UUID `json:"caso_id" binding:"required"`
	PruebaID uuid.UUID `json:"prueba_id" binding:"required"`
}

func (h *AttemptHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	attempt, err := h.attempts.Start(c.Request.Context(), currentUser(c), req.CasoID, req.PruebaID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *AttemptHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	attempt, responses, err := h.attempts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"intento": attempt, "respuestas": responses})
}

type answerRequest struct {
	ItemID uuid.UUID `json:"item_id" binding:"required"`
	Label  string    `json:"label" binding:"required"`
	Raw    float64   `json:"raw"`
}

func (h *AttemptHandler) Answer(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.attempts.RecordAnswer(c.Request.Context(), currentUser(c), id, services.AnswerInput{
		ItemID: req.ItemID,
		Label:  req.Label,
		Raw:    req.Raw,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AttemptHandler) Finish(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	attempt, err := h.attempts.Finish(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *AttemptHandler) Interrupt(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.attempts.Interrupt(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Scores returns the stored scale scores of one attempt.
func (h *AttemptHandler) Scores(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	scores, err := h.scoring.ScoresForAttempt(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}
