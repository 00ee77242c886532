package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/domain/jobs"
	"github.com/yungbote/speech-to-contract/internal/platform/dbctx"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, runs []*types.JobRun) ([]*types.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error)
	GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	// ClaimNextRunnable locks and marks running the oldest message that is
	// queued, failed but due for redelivery, or running with a stale heartbeat.
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error)
	MarkRunning(dbc dbctx.Context, id uuid.UUID) error
	MarkSucceeded(dbc dbctx.Context, id uuid.UUID, stage string) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, stage string, cause error) error
	// MarkHandled closes a delivered message whose job ended in a terminal
	// failure; the cause is kept for operators but no redelivery happens.
	MarkHandled(dbc dbctx.Context, id uuid.UUID, stage string, cause error) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{
		db:  db,
		log: baseLog.With("repo", "JobRunRepo"),
	}
}

func (r *jobRunRepo) Create(dbc dbctx.Context, runs []*types.JobRun) ([]*types.JobRun, error) {
	if len(runs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.Or(r.db).Create(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.JobRun, error) {
	var out []*types.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Or(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRunRepo) GetLatestByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return nil, nil
	}
	var job types.JobRun
	err := dbc.Or(r.db).
		Where("entity_type = ? AND entity_id = ? AND job_type = ?", entityType, entityID, jobType).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now().UTC()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.JobRun
	err := dbc.Or(r.db).Transaction(func(txx *gorm.DB) error {
		var job types.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, jobs.StatusQueued, jobs.StatusFailed, maxAttempts, retryCutoff, jobs.StatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       jobs.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		job.Status = jobs.StatusRunning
		job.Attempts++
		job.LockedAt = &now
		job.HeartbeatAt = &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) MarkRunning(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(dbc, id, map[string]interface{}{
		"status":       jobs.StatusRunning,
		"stage":        "running",
		"attempts":     gorm.Expr("attempts + 1"),
		"locked_at":    now,
		"heartbeat_at": now,
	})
}

func (r *jobRunRepo) MarkSucceeded(dbc dbctx.Context, id uuid.UUID, stage string) error {
	return r.update(dbc, id, map[string]interface{}{
		"status":    jobs.StatusSucceeded,
		"stage":     stage,
		"error":     "",
		"locked_at": nil,
	})
}

func (r *jobRunRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(dbc, id, map[string]interface{}{
		"status":        jobs.StatusFailed,
		"stage":         stage,
		"error":         msg,
		"last_error_at": time.Now().UTC(),
		"locked_at":     nil,
	})
}

func (r *jobRunRepo) MarkHandled(dbc dbctx.Context, id uuid.UUID, stage string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(dbc, id, map[string]interface{}{
		"status":    jobs.StatusSucceeded,
		"stage":     stage,
		"error":     msg,
		"locked_at": nil,
	})
}

func (r *jobRunRepo) update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.Or(r.db).
		Model(&types.JobRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return dbc.Or(r.db).
		Model(&types.JobRun{}).
		Where("id = ? AND status = ?", id, jobs.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *jobRunRepo) HasRunnableForEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID, jobType string) (bool, error) {
	if entityID == uuid.Nil || entityType == "" || jobType == "" {
		return false, nil
	}
	var count int64
	err := dbc.Or(r.db).
		Model(&types.JobRun{}).
		Where("entity_type = ? AND entity_id = ? AND job_type = ? AND status IN ?",
			entityType, entityID, jobType, []string{jobs.StatusQueued, jobs.StatusRunning},
		).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
