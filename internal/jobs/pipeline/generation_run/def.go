package generation_run

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/contracts/schema"
	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type Pipeline struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	blobs   objstore.Store
	ai      services.ContractAI
	catalog *schema.Catalog
	notify  services.StatusNotifier
	timeout time.Duration
	tracer  trace.Tracer
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	rs repos.Set,
	blobs objstore.Store,
	ai services.ContractAI,
	catalog *schema.Catalog,
	notify services.StatusNotifier,
	timeout time.Duration,
) *Pipeline {
	if catalog == nil {
		catalog = schema.Default()
	}
	return &Pipeline{
		db:      db,
		log:     baseLog.With("job", queue.JobTypeGeneration),
		repos:   rs,
		blobs:   blobs,
		ai:      ai,
		catalog: catalog,
		notify:  notify,
		timeout: timeout,
		tracer:  otel.Tracer("speech-to-contract/jobs"),
	}
}

func (p *Pipeline) Type() string { return queue.JobTypeGeneration }
