package app

import (
	"context"
	"fmt"
	"io"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/speech-to-contract/internal/platform/gcp"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
	"github.com/yungbote/speech-to-contract/internal/platform/openai"
	"github.com/yungbote/speech-to-contract/internal/platform/redisbus"
	"github.com/yungbote/speech-to-contract/internal/services"
	"github.com/yungbote/speech-to-contract/internal/temporalx"
)

type Clients struct {
	Blobs       objstore.Store
	Bus         redisbus.Bus
	Temporal    temporalsdkclient.Client
	TemporalCfg temporalx.Config

	// Worker-only collaborators.
	OpenAI      openai.Client
	Transcriber services.Transcriber

	closers []func()
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	blobs, err := resolveBlobStore(ctx, log, cfg)
	if err != nil {
		return c, err
	}
	c.Blobs = blobs
	c.addCloser(blobs)

	// Redis
	c.Bus = redisbus.Nop()
	if cfg.RedisAddr != "" {
		bus, err := redisbus.New(log, redisbus.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis status bus: %w", err)
		}
		c.Bus = bus
		c.addCloser(bus)
	}

	// Temporal
	if cfg.QueueBackend == "temporal" {
		c.TemporalCfg = temporalx.LoadConfig()
		if !c.TemporalCfg.Enabled() {
			c.Close()
			return Clients{}, fmt.Errorf("QUEUE_BACKEND=temporal requires TEMPORAL_ADDRESS")
		}
		tc, err := temporalx.NewClient(ctx, log, c.TemporalCfg)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init temporal client: %w", err)
		}
		c.Temporal = tc
		c.closers = append(c.closers, tc.Close)
	}

	if !cfg.Role.RunsWorkers() {
		return c, nil
	}

	// Openai
	oc, err := openai.NewClient(log, openai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		Model:           cfg.OpenAIModel,
		TranscribeModel: cfg.OpenAITranscribeModel,
		Language:        languageTag(cfg.STTLanguage),
	})
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	c.OpenAI = oc

	// Speech to text
	switch cfg.STTProvider {
	case "gcp":
		speech, err := gcp.NewSpeechTranscriber(ctx, log, blobs, gcp.SpeechConfig{
			LanguageCode: cfg.STTLanguage,
			SpeakerCount: cfg.STTSpeakerCount,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		c.Transcriber = speech
		c.addCloser(speech)
	default:
		c.Transcriber = services.NewOpenAITranscriber(log, oc, blobs)
	}
	return c, nil
}

func (c *Clients) addCloser(v any) {
	if cl, ok := v.(io.Closer); ok {
		c.closers = append(c.closers, func() { _ = cl.Close() })
	}
}

func (c *Clients) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// languageTag turns "ko-KR" into the ISO-639-1 "ko" the Whisper API expects.
func languageTag(locale string) string {
	for i, r := range locale {
		if r == '-' || r == '_' {
			return locale[:i]
		}
	}
	return locale
}
