package services

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")

	ErrMissingFile               = errors.New("no audio file provided")
	ErrUnsupportedAudioFormat    = errors.New("unsupported audio format")
	ErrFileTooLarge              = errors.New("audio file too large")
	ErrNoAudioData               = errors.New("no transcription found")
	ErrActiveTranscriptionExists = errors.New("a transcription is already in progress")
	ErrInvalidStatusForCancel    = errors.New("transcription cannot be cancelled in its current status")
	ErrNotRetryable              = errors.New("job is not in a retryable status")

	ErrTranscriptionNotReady  = errors.New("transcription is not finished")
	ErrTranscriptionConsumed  = errors.New("transcription already has a generation")
	ErrActiveGenerationExists = errors.New("a generation is already in progress")
	ErrNoGenerationInProgress = errors.New("no generation in progress")
	ErrCannotCancelGeneration = errors.New("generation cannot be cancelled in its current status")
	ErrContractNotFound       = errors.New("contract not found")
)
