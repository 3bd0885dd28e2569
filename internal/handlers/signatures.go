package handlers

import (
	"encoding/base64"
	"net/http"

	"psyeval/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SignatureHandler struct {
	log        *zap.Logger
	signatures *services.SignatureService
}

func NewSignatureHandler(log *zap.Logger, signatures *services.SignatureService) *SignatureHandler {
	return &SignatureHandler{log: log, signatures: signatures}
}

type signRequest struct {
	FirmadoPor     string `json:"firmado_por" binding:"required"`
	StrokeLengthPx int    `json:"stroke_length_px"`
	ImageBase64    string `json:"image_base64"`
	ImageMime      string `json:"image_mime"`
}

func (h *SignatureHandler) Sign(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image_base64 is not valid base64"})
			return
		}
		image = decoded
	}

	sig, err := h.signatures.Sign(c.Request.Context(), id, services.SignInput{
		SignerRole:     req.FirmadoPor,
		StrokeLengthPx: req.StrokeLengthPx,
		Image:          image,
		ImageMime:      req.ImageMime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sig)
}

func (h *SignatureHandler) List(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	sigs, err := h.signatures.Signatures(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	full, err := h.signatures.FullySigned(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"firmas": sigs, "completa": full})
}
