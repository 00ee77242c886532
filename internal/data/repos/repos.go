package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/data/repos/contracts"
	"github.com/yungbote/speech-to-contract/internal/data/repos/jobs"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type TranscriptionRepo = contracts.TranscriptionRepo
type GenerationRepo = contracts.GenerationRepo
type ContractRepo = contracts.ContractRepo
type JobRunRepo = jobs.JobRunRepo

var ErrDuplicate = contracts.ErrDuplicate

// Set is every repo the services and pipelines share.
type Set struct {
	Transcriptions TranscriptionRepo
	Generations    GenerationRepo
	Contracts      ContractRepo
	JobRuns        JobRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Transcriptions: contracts.NewTranscriptionRepo(db, baseLog),
		Generations:    contracts.NewGenerationRepo(db, baseLog),
		Contracts:      contracts.NewContractRepo(db, baseLog),
		JobRuns:        jobs.NewJobRunRepo(db, baseLog),
	}
}
