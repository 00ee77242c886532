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

type TranscriptionRepo interface {
	Create(dbc dbctx.Context, t *contracts.Transcription) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error)
	GetLatestByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*contracts.Transcription, error)
	GetLatestDoneByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*contracts.Transcription, error)
	ExistsActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (bool, error)
	// TransitionStatus moves the row to `to` only if its current status has a
	// legal edge to `to`. It reports whether the row was updated.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, to contracts.TranscriptionStatus, updates map[string]interface{}) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type transcriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptionRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptionRepo {
	return &transcriptionRepo{db: db, log: baseLog.With("repo", "TranscriptionRepo")}
}

func (r *transcriptionRepo) Create(dbc dbctx.Context, t *contracts.Transcription) error {
	if t == nil {
		return nil
	}
	if !t.Status.Valid() {
		return errors.New("transcription: invalid status " + string(t.Status))
	}
	return translate(dbc.Or(r.db).Create(t).Error)
}

func (r *transcriptionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*contracts.Transcription, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var t contracts.Transcription
	if err := dbc.Or(r.db).Where("id = ?", id).Limit(1).Find(&t).Error; err != nil {
		return nil, err
	}
	if t.ID == uuid.Nil {
		return nil, nil
	}
	return &t, nil
}

func (r *transcriptionRepo) GetLatestByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*contracts.Transcription, error) {
	return r.latest(dbc, ownerUserID, nil)
}

func (r *transcriptionRepo) GetLatestDoneByOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (*contracts.Transcription, error) {
	return r.latest(dbc, ownerUserID, []contracts.TranscriptionStatus{contracts.TranscriptionDone})
}

func (r *transcriptionRepo) latest(dbc dbctx.Context, ownerUserID uuid.UUID, statuses []contracts.TranscriptionStatus) (*contracts.Transcription, error) {
	if ownerUserID == uuid.Nil {
		return nil, nil
	}
	q := dbc.Or(r.db).Where("owner_user_id = ?", ownerUserID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var t contracts.Transcription
	if err := q.Order("created_at DESC").Limit(1).Find(&t).Error; err != nil {
		return nil, err
	}
	if t.ID == uuid.Nil {
		return nil, nil
	}
	return &t, nil
}

func (r *transcriptionRepo) ExistsActiveForOwner(dbc dbctx.Context, ownerUserID uuid.UUID) (bool, error) {
	if ownerUserID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := dbc.Or(r.db).
		Model(&contracts.Transcription{}).
		Where("owner_user_id = ? AND status IN ?", ownerUserID, contracts.ActiveTranscriptionStatuses()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *transcriptionRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, to contracts.TranscriptionStatus, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	from := contracts.TranscriptionSourcesFor(to)
	if len(from) == 0 {
		return false, errors.New("transcription: no transition leads to " + string(to))
	}
	fields := map[string]interface{}{}
	for k, v := range updates {
		fields[k] = v
	}
	fields["status"] = to
	if _, ok := fields["updated_at"]; !ok {
		fields["updated_at"] = time.Now().UTC()
	}
	res := dbc.Or(r.db).
		Model(&contracts.Transcription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *transcriptionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["status"]; ok {
		return errors.New("transcription: status changes go through TransitionStatus")
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.Or(r.db).
		Model(&contracts.Transcription{}).
		Where("id = ?", id).
		Updates(updates).Error
}
