package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/http/response"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type GenerationHandler struct {
	generations services.GenerationService
}

func NewGenerationHandler(generations services.GenerationService) *GenerationHandler {
	return &GenerationHandler{generations: generations}
}

type createGenerationRequest struct {
	TranscriptionID string `json:"transcription_id"`
}

type generationView struct {
	ID     string                     `json:"id"`
	Status contracts.GenerationStatus `json:"status"`
}

func viewGeneration(g *contracts.Generation) generationView {
	return generationView{ID: g.ID.String(), Status: g.Status}
}

// POST /api/generations
// The body is optional; without transcription_id the latest transcription is used.
func (h *GenerationHandler) Create(c *gin.Context) {
	var req createGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	transcriptionID := uuid.Nil
	if req.TranscriptionID != "" {
		id, err := uuid.Parse(req.TranscriptionID)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_transcription_id", err)
			return
		}
		transcriptionID = id
	}
	g, err := h.generations.Create(dbctx.Context{Ctx: c.Request.Context()}, transcriptionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, viewGeneration(g))
}

// GET /api/generations/status
// GET /api/generations/:id/status
func (h *GenerationHandler) Status(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	view, err := h.generations.GetStatus(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/generations/cancel
// POST /api/generations/:id/cancel
func (h *GenerationHandler) Cancel(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	if _, err := h.generations.Cancel(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// POST /api/generations/:id/retry
func (h *GenerationHandler) Retry(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	g, err := h.generations.Retry(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, viewGeneration(g))
}
