package transcription_run

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/speech-to-contract/internal/data/repos"
	"github.com/yungbote/speech-to-contract/internal/jobs/queue"
	"github.com/yungbote/speech-to-contract/internal/normalization"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
	"github.com/yungbote/speech-to-contract/internal/services"
)

type Pipeline struct {
	log            *logger.Logger
	transcriptions repos.TranscriptionRepo
	blobs          objstore.Store
	stt            services.Transcriber
	norm           *normalization.Normalizer
	notify         services.StatusNotifier
	timeout        time.Duration
	tracer         trace.Tracer
}

func New(
	baseLog *logger.Logger,
	transcriptions repos.TranscriptionRepo,
	blobs objstore.Store,
	stt services.Transcriber,
	norm *normalization.Normalizer,
	notify services.StatusNotifier,
	timeout time.Duration,
) *Pipeline {
	if norm == nil {
		norm = normalization.New(nil)
	}
	return &Pipeline{
		log:            baseLog.With("job", queue.JobTypeTranscription),
		transcriptions: transcriptions,
		blobs:          blobs,
		stt:            stt,
		norm:           norm,
		notify:         notify,
		timeout:        timeout,
		tracer:         otel.Tracer("speech-to-contract/jobs"),
	}
}

func (p *Pipeline) Type() string { return queue.JobTypeTranscription }
