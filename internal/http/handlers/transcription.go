package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/http/response"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type TranscriptionHandler struct {
	transcriptions services.TranscriptionService
}

func NewTranscriptionHandler(transcriptions services.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{transcriptions: transcriptions}
}

type transcriptionView struct {
	ID     string                        `json:"id"`
	Status contracts.TranscriptionStatus `json:"status"`
}

func viewTranscription(t *contracts.Transcription) transcriptionView {
	return transcriptionView{ID: t.ID.String(), Status: t.Status}
}

// POST /api/transcriptions
func (h *TranscriptionHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondServiceError(c, services.ErrMissingFile)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer f.Close()

	t, err := h.transcriptions.Upload(dbctx.Context{Ctx: c.Request.Context()}, services.UploadInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, viewTranscription(t))
}

// GET /api/transcriptions/status
// GET /api/transcriptions/:id/status
func (h *TranscriptionHandler) Status(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	t, err := h.transcriptions.GetStatus(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, viewTranscription(t))
}

// POST /api/transcriptions/cancel
// POST /api/transcriptions/:id/cancel
func (h *TranscriptionHandler) Cancel(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	if _, err := h.transcriptions.Cancel(dbctx.Context{Ctx: c.Request.Context()}, id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// POST /api/transcriptions/:id/retry
func (h *TranscriptionHandler) Retry(c *gin.Context) {
	id, ok := optionalID(c)
	if !ok {
		return
	}
	t, err := h.transcriptions.Retry(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, viewTranscription(t))
}
