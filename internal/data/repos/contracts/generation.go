package contracts

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type GenerationRepo interface {
	Create(dbc dbctx.Context, g *contracts.Generation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error)
	GetByTranscriptionID(dbc dbctx.Context, transcriptionID uuid.UUID) (*contracts.Generation, error)
	// GetLatestByOwner returns the newest generation whose status is not in exclude.
	GetLatestByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, exclude ...contracts.GenerationStatus) (*contracts.Generation, error)
	ExistsActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (bool, error)
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, to contracts.GenerationStatus) (bool, error)
}

type generationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRepo {
	return &generationRepo{db: db, log: baseLog.With("repo", "GenerationRepo")}
}

func (r *generationRepo) Create(dbc dbctx.Context, g *contracts.Generation) error {
	if g == nil {
		return nil
	}
	if !g.Status.Valid() {
		return errors.New("generation: invalid status " + string(g.Status))
	}
	return translate(dbc.Or(r.db).Create(g).Error)
}

func (r *generationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Generation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var g contracts.Generation
	if err := dbc.Or(r.db).Where("id = ?", id).Limit(1).Find(&g).Error; err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, nil
	}
	return &g, nil
}

func (r *generationRepo) GetByTranscriptionID(dbc dbctx.Context, transcriptionID uuid.UUID) (*contracts.Generation, error) {
	if transcriptionID == uuid.Nil {
		return nil, nil
	}
	var g contracts.Generation
	if err := dbc.Or(r.db).Where("transcription_id = ?", transcriptionID).Limit(1).Find(&g).Error; err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, nil
	}
	return &g, nil
}

func (r *generationRepo) GetLatestByOwner(dbc dbctx.Context, ownerUserID uuid.UUID, exclude ...contracts.GenerationStatus) (*contracts.Generation, error) {
	if ownerUserID == uuid.Nil {
		return nil, nil
	}
	q := dbc.Or(r.db).Where("owner_user_id = ?", ownerUserID)
	if len(exclude) > 0 {
		q = q.Where("status NOT IN ?", exclude)
	}
	var g contracts.Generation
	if err := q.Order("created_at DESC").Limit(1).Find(&g).Error; err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, nil
	}
	return &g, nil
}

func (r *generationRepo) ExistsActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (bool, error) {
	if ownerUserID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := dbc.Or(r.db).
		Model(&contracts.Generation{}).
		Where("owner_user_id = ? AND status IN ?", ownerUserID, contracts.ActiveGenerationStatuses()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *generationRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, to contracts.GenerationStatus) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	from := contracts.GenerationSourcesFor(to)
	if len(from) == 0 {
		return false, errors.New("generation: no transition leads to " + string(to))
	}
	res := dbc.Or(r.db).
		Model(&contracts.Generation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
