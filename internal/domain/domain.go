package domain

import (
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
)

type (
	Transcription       = contracts.Transcription
	TranscriptionStatus = contracts.TranscriptionStatus
	Generation          = contracts.Generation
	GenerationStatus    = contracts.GenerationStatus
	Contract            = contracts.Contract
	Suggestion          = contracts.Suggestion
	JobRun              = jobs.JobRun
)
