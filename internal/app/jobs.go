package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/contracts/schema"
	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/jobs/pipeline/generation_run"
	"github.com/yungbote/speech-to-contract/internal/jobs/pipeline/transcription_run"
	jobrt "github.com/yungbote/speech-to-contract/internal/jobs/runtime"
	"github.com/yungbote/speech-to-contract/internal/jobs/worker"
	"github.com/yungbote/speech-to-contract/internal/normalization"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/services"
	"github.com/yungbote/speech-to-contract/internal/temporalx/temporalworker"
)

// JobRunner consumes queued messages until ctx is done.
type JobRunner interface {
	Run(ctx context.Context) error
}

func wireRegistry(db *gorm.DB, log *logger.Logger, cfg Config, rs repos.Set, clients Clients, svcs Services) (*jobrt.Registry, error) {
	log.Info("Wiring job handlers...")
	catalog := schema.Default()
	reg := jobrt.NewRegistry()
	handlers := []jobrt.Handler{
		transcription_run.New(
			log,
			rs.Transcriptions,
			clients.Blobs,
			clients.Transcriber,
			normalization.New(cfg.NormalizeStopwords),
			svcs.Notifier,
			cfg.CollaboratorTimeout,
		),
		generation_run.New(
			db,
			log,
			rs,
			clients.Blobs,
			services.NewLLMContractAI(log, clients.OpenAI, catalog),
			catalog,
			svcs.Notifier,
			cfg.CollaboratorTimeout,
		),
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", h.Type(), err)
		}
	}
	return reg, nil
}

func wireJobRunner(log *logger.Logger, cfg Config, rs repos.Set, clients Clients, reg *jobrt.Registry) (JobRunner, error) {
	wcfg := worker.ConfigFromEnv()
	if cfg.QueueBackend == "temporal" {
		return temporalworker.NewRunner(log, clients.Temporal, clients.TemporalCfg, rs.JobRuns, reg, wcfg.Concurrency)
	}
	return worker.NewWorker(log, rs.JobRuns, reg, wcfg), nil
}
