package services

import (
	"context"
	"fmt"
	"path"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
	"github.com/yungbote/speech-to-contract/internal/platform/objstore"
	"github.com/yungbote/speech-to-contract/internal/platform/openai"
)

// OpenAITranscriber streams the audio blob to the OpenAI transcription model.
type OpenAITranscriber struct {
	log    *logger.Logger
	client openai.Client
	blobs  objstore.Store
}

func NewOpenAITranscriber(baseLog *logger.Logger, client openai.Client, blobs objstore.Store) *OpenAITranscriber {
	return &OpenAITranscriber{
		log:    baseLog.With("service", "OpenAITranscriber"),
		client: client,
		blobs:  blobs,
	}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioRef string) (string, error) {
	rc, err := t.blobs.Open(ctx, audioRef)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer rc.Close()
	return t.client.Transcribe(ctx, rc, path.Base(audioRef))
}
