package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/speech-to-contract/internal/http/response"
	"github.com/yungbote/speech-to-contract/internal/platform/apierr"
	"github.com/yungbote/speech-to-contract/internal/services"
)

var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{services.ErrMissingFile, http.StatusBadRequest, "missing_file"},
	{services.ErrUnsupportedAudioFormat, http.StatusUnsupportedMediaType, "unsupported_audio_format"},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large"},
	{services.ErrNoAudioData, http.StatusNotFound, "no_audio_data"},
	{services.ErrActiveTranscriptionExists, http.StatusConflict, "transcription_in_progress"},
	{services.ErrInvalidStatusForCancel, http.StatusConflict, "invalid_status_for_cancel"},
	{services.ErrNotRetryable, http.StatusConflict, "not_retryable"},
	{services.ErrTranscriptionNotReady, http.StatusConflict, "transcription_not_ready"},
	{services.ErrTranscriptionConsumed, http.StatusConflict, "transcription_consumed"},
	{services.ErrActiveGenerationExists, http.StatusConflict, "generation_in_progress"},
	{services.ErrNoGenerationInProgress, http.StatusNotFound, "no_generation_in_progress"},
	{services.ErrCannotCancelGeneration, http.StatusConflict, "cannot_cancel_generation"},
	{services.ErrContractNotFound, http.StatusNotFound, "contract_not_found"},
}

// toAPIError maps service sentinels onto their HTTP answer.
func toAPIError(err error) *apierr.Error {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			return apierr.New(se.status, se.code, err)
		}
	}
	return apierr.As(err, "internal")
}

func respondServiceError(c *gin.Context, err error) {
	response.RespondAPIError(c, toAPIError(err))
}

// optionalID reads :id. An absent param addresses the latest job.
func optionalID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}
