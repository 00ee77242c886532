package contracts

// TranscriptionStatus is the persisted lifecycle state of a Transcription.
type TranscriptionStatus string

const (
	TranscriptionUploading           TranscriptionStatus = "uploading"
	TranscriptionUploaded            TranscriptionStatus = "uploaded"
	TranscriptionTranscribing        TranscriptionStatus = "transcribing"
	TranscriptionDone                TranscriptionStatus = "done"
	TranscriptionUploadFailed        TranscriptionStatus = "upload_failed"
	TranscriptionTranscriptionFailed TranscriptionStatus = "transcription_failed"
	TranscriptionCancelled           TranscriptionStatus = "cancelled"
)

// GenerationStatus is the persisted lifecycle state of a Generation.
type GenerationStatus string

const (
	GenerationGenerating GenerationStatus = "generating"
	GenerationDone       GenerationStatus = "done"
	GenerationFailed     GenerationStatus = "failed"
	GenerationCancelled  GenerationStatus = "cancelled"
	GenerationArchived   GenerationStatus = "archived"
)

// transcribing -> transcribing is the re-entry edge taken when a queue message
// is redelivered after a worker died mid-run.
var transcriptionEdges = map[TranscriptionStatus][]TranscriptionStatus{
	TranscriptionUploading:           {TranscriptionUploaded, TranscriptionUploadFailed, TranscriptionCancelled},
	TranscriptionUploaded:            {TranscriptionTranscribing, TranscriptionCancelled},
	TranscriptionTranscribing:        {TranscriptionTranscribing, TranscriptionDone, TranscriptionTranscriptionFailed, TranscriptionCancelled},
	TranscriptionTranscriptionFailed: {TranscriptionUploaded, TranscriptionCancelled},
}

var generationEdges = map[GenerationStatus][]GenerationStatus{
	GenerationGenerating: {GenerationDone, GenerationFailed, GenerationCancelled},
	GenerationFailed:     {GenerationGenerating, GenerationCancelled},
	GenerationDone:       {GenerationArchived},
}

func (s TranscriptionStatus) CanTransitionTo(to TranscriptionStatus) bool {
	for _, next := range transcriptionEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the orchestrator must leave the job alone.
// transcription_failed is not terminal since Retry moves it back to uploaded.
func (s TranscriptionStatus) Terminal() bool {
	switch s {
	case TranscriptionDone, TranscriptionUploadFailed, TranscriptionCancelled:
		return true
	}
	return false
}

// Active statuses count against the one-active-transcription-per-owner rule.
func (s TranscriptionStatus) Active() bool {
	switch s {
	case TranscriptionUploading, TranscriptionUploaded, TranscriptionTranscribing, TranscriptionTranscriptionFailed:
		return true
	}
	return false
}

func (s TranscriptionStatus) Valid() bool {
	switch s {
	case TranscriptionUploading, TranscriptionUploaded, TranscriptionTranscribing, TranscriptionDone,
		TranscriptionUploadFailed, TranscriptionTranscriptionFailed, TranscriptionCancelled:
		return true
	}
	return false
}

func (s GenerationStatus) CanTransitionTo(to GenerationStatus) bool {
	for _, next := range generationEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s GenerationStatus) Terminal() bool {
	switch s {
	case GenerationDone, GenerationCancelled, GenerationArchived:
		return true
	}
	return false
}

func (s GenerationStatus) Active() bool {
	return s == GenerationGenerating || s == GenerationFailed
}

func (s GenerationStatus) Valid() bool {
	switch s {
	case GenerationGenerating, GenerationDone, GenerationFailed, GenerationCancelled, GenerationArchived:
		return true
	}
	return false
}

// TranscriptionSourcesFor lists every status from which to is reachable.
// Repos use it as the WHERE guard of conditional status writes.
func TranscriptionSourcesFor(to TranscriptionStatus) []TranscriptionStatus {
	var out []TranscriptionStatus
	for _, from := range allTranscriptionStatuses {
		if from.CanTransitionTo(to) {
			out = append(out, from)
		}
	}
	return out
}

func GenerationSourcesFor(to GenerationStatus) []GenerationStatus {
	var out []GenerationStatus
	for _, from := range allGenerationStatuses {
		if from.CanTransitionTo(to) {
			out = append(out, from)
		}
	}
	return out
}

// ActiveTranscriptionStatuses backs both the existence check and the partial unique index.
func ActiveTranscriptionStatuses() []TranscriptionStatus {
	var out []TranscriptionStatus
	for _, s := range allTranscriptionStatuses {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

func ActiveGenerationStatuses() []GenerationStatus {
	var out []GenerationStatus
	for _, s := range allGenerationStatuses {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}

var allTranscriptionStatuses = []TranscriptionStatus{
	TranscriptionUploading,
	TranscriptionUploaded,
	TranscriptionTranscribing,
	TranscriptionDone,
	TranscriptionUploadFailed,
	TranscriptionTranscriptionFailed,
	TranscriptionCancelled,
}

var allGenerationStatuses = []GenerationStatus{
	GenerationGenerating,
	GenerationDone,
	GenerationFailed,
	GenerationCancelled,
	GenerationArchived,
}
