package app

import (
	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type Services struct {
	Queue          queue.Enqueuer
	Notifier       services.StatusNotifier
	Transcriptions services.TranscriptionService
	Generations    services.GenerationService
	Contracts      services.ContractService
}

func wireServices(log *logger.Logger, cfg Config, rs repos.Set, clients Clients) Services {
	log.Info("Wiring services...")
	q := queue.New(log, rs.JobRuns, clients.Temporal, clients.TemporalCfg.TaskQueue)
	notify := services.NewStatusNotifier(log, clients.Bus)
	return Services{
		Queue:    q,
		Notifier: notify,
		Transcriptions: services.NewTranscriptionService(log, rs.Transcriptions, clients.Blobs, q, notify, services.UploadConfig{
			AllowedExtensions: cfg.AllowedAudioExtensions,
			MaxBytes:          cfg.MaxUploadBytes,
			ChunkBytes:        cfg.UploadChunkBytes,
		}),
		Generations: services.NewGenerationService(log, rs.Transcriptions, rs.Generations, rs.Contracts, q, notify),
		Contracts:   services.NewContractService(log, rs.Contracts),
	}
}
