package contracts

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Transcription is one audio-to-text job.
type Transcription struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID      uuid.UUID           `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Status           TranscriptionStatus `gorm:"column:status;not null;index" json:"status"`
	AudioRef         *string             `gorm:"column:audio_ref" json:"audio_ref,omitempty"`
	ScriptRef        *string             `gorm:"column:script_ref" json:"script_ref,omitempty"`
	OriginalFilename string              `gorm:"column:original_filename" json:"original_filename,omitempty"`
	SizeBytes        int64               `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	CreatedAt        time.Time           `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"not null" json:"updated_at"`
}

func (Transcription) TableName() string { return "transcriptions" }

func (t *Transcription) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Generation is one contract drafting job anchored to a finished Transcription.
type Generation struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	TranscriptionID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_generations_transcription" json:"transcription_id"`
	Status          GenerationStatus `gorm:"column:status;not null;index" json:"status"`
	CreatedAt       time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
}

func (Generation) TableName() string { return "generations" }

func (g *Generation) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Contract is the extracted field tree of a successful Generation.
// InitialContents keeps the untouched extraction so edits can be reverted.
type Contract struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	GenerationID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_contracts_generation" json:"generation_id"`
	ContractType    string         `gorm:"column:contract_type;not null" json:"contract_type"`
	Contents        datatypes.JSON `gorm:"column:contents;type:jsonb;not null" json:"contents"`
	InitialContents datatypes.JSON `gorm:"column:initial_contents;type:jsonb;not null" json:"initial_contents"`
	Suggestions     []Suggestion   `gorm:"foreignKey:ContractID" json:"suggestions,omitempty"`
	CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }

func (c *Contract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Suggestion is advisory text for one blank field of a Contract.
type Suggestion struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ContractID     uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`
	FieldPath      string    `gorm:"column:field_path;not null" json:"field_path"`
	SuggestionText string    `gorm:"column:suggestion_text;not null" json:"suggestion_text"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (Suggestion) TableName() string { return "suggestions" }

func (s *Suggestion) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
