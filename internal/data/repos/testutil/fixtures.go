package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
)

func SeedTranscription(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, status contracts.TranscriptionStatus, audioRef string) *contracts.Transcription {
	tb.Helper()
	t := &contracts.Transcription{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Status:      status,
	}
	if audioRef != "" {
		t.AudioRef = &audioRef
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed transcription: %v", err)
	}
	return t
}

func SeedDoneTranscription(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, scriptRef string) *contracts.Transcription {
	tb.Helper()
	t := &contracts.Transcription{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Status:      contracts.TranscriptionDone,
		ScriptRef:   &scriptRef,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed transcription: %v", err)
	}
	return t
}

func SeedGeneration(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID, transcriptionID uuid.UUID, status contracts.GenerationStatus) *contracts.Generation {
	tb.Helper()
	g := &contracts.Generation{
		ID:              uuid.New(),
		OwnerUserID:     ownerID,
		TranscriptionID: transcriptionID,
		Status:          status,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed generation: %v", err)
	}
	return g
}
