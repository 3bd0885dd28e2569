package handlers

import (
	"net/http"

	"psyeval/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CaseHandler struct {
	log     *zap.Logger
	cases   *services.CaseService
	scoring *services.ScoringService
}

func NewCaseHandler(log *zap.Logger, cases *services.CaseService, scoring *services.ScoringService) *CaseHandler {
	return &CaseHandler{log: log, cases: cases, scoring: scoring}
}

type createCaseRequest struct {
	PacienteID *uuid.UUID  `json:"paciente_id"`
	AsignadoA  *uuid.UUID  `json:"asignado_a"`
	Motivacion string      `json:"motivacion"`
	Pruebas    []uuid.UUID `json:"pruebas"`
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.cases.Create(c.Request.Context(), currentUser(c), services.CreateCaseInput{
		PacienteID: req.PacienteID,
		AsignadoA:  req.AsignadoA,
		Motivacion: req.Motivacion,
		TestIDs:    req.Pruebas,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type updateCaseRequest struct {
	PacienteID *uuid.UUID  `json:"paciente_id"`
	AsignadoA  *uuid.UUID  `json:"asignado_a"`
	Motivacion *string     `json:"motivacion"`
	Pruebas    []uuid.UUID `json:"pruebas"`
}

func (h *CaseHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.cases.Update(c.Request.Context(), currentUser(c), id, services.UpdateCaseInput{
		PacienteID:     req.PacienteID,
		AsignadoA:      req.AsignadoA,
		Motivacion:     req.Motivacion,
		DesiredTestIDs: req.Pruebas,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CaseHandler) List(c *gin.Context) {
	cases, err := h.cases.List(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (h *CaseHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	found, err := h.cases.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *CaseHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.cases.Cancel(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CaseHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.cases.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Scores returns every stored score of the case, for the results view.
func (h *CaseHandler) Scores(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, err := h.cases.Get(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}
	scores, err := h.scoring.ScoresForCase(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}
