package contracts

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type ContractRepo interface {
	// CreateWithSuggestions writes the contract and its suggestions as one unit.
	// When dbc carries a transaction the caller owns commit and rollback.
	CreateWithSuggestions(dbc dbctx.Context, c *contracts.Contract, suggestions []*contracts.Suggestion) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Contract, error)
	GetByGenerationID(dbc dbctx.Context, generationID uuid.UUID) (*contracts.Contract, error)
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return &contractRepo{db: db, log: baseLog.With("repo", "ContractRepo")}
}

func (r *contractRepo) CreateWithSuggestions(dbc dbctx.Context, c *contracts.Contract, suggestions []*contracts.Suggestion) error {
	write := func(tx *gorm.DB) error {
		if err := tx.Omit("Suggestions").Create(c).Error; err != nil {
			return translate(err)
		}
		if len(suggestions) == 0 {
			return nil
		}
		for _, s := range suggestions {
			s.ContractID = c.ID
		}
		return tx.Create(&suggestions).Error
	}
	if dbc.Tx != nil {
		return write(dbc.Or(r.db))
	}
	return dbc.Or(r.db).Transaction(write)
}

func (r *contractRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Contract, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *contractRepo) GetByGenerationID(dbc dbctx.Context, generationID uuid.UUID) (*contracts.Contract, error) {
	if generationID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "generation_id = ?", generationID)
}

func (r *contractRepo) first(dbc dbctx.Context, where string, arg interface{}) (*contracts.Contract, error) {
	var c contracts.Contract
	err := dbc.Or(r.db).
		Preload("Suggestions", func(db *gorm.DB) *gorm.DB { return db.Order("field_path ASC") }).
		Where(where, arg).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}
