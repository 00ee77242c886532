package services

import "context"

// Transcriber is the speech-to-text collaborator. audioRef is a blob ref
// produced by the upload intake.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (string, error)
}

// ContractAI is the three-step drafting chain used by the generation orchestrator.
type ContractAI interface {
	ClassifyType(ctx context.Context, text string) (string, error)
	ExtractFields(ctx context.Context, text string, label string) (map[string]any, error)
	// Annotate returns advisory text keyed by dot-joined field path for
	// fields the extractor left blank.
	Annotate(ctx context.Context, label string, fields map[string]any) (map[string]string, error)
}
