package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/nfdrepairs/repair-ops/internal/model"
)

// JobEventsRepository persists the append-only job audit trail.
type JobEventsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, e model.JobEvent) error
	ListByJob(ctx context.Context, jobID string) ([]model.JobEvent, error)
}

type JobEventsRepositoryImpl struct {
	db *sqlx.DB
}

func NewJobEventsRepository(db *sqlx.DB) *JobEventsRepositoryImpl {
	return &JobEventsRepositoryImpl{db: db}
}

var _ JobEventsRepository = (*JobEventsRepositoryImpl)(nil)

func (r *JobEventsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *JobEventsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, e model.JobEvent) error {
	const q = `
		INSERT INTO job_events (job_id, type, message, actor, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, e.JobID, e.Type.String(), e.Message, e.Actor)
		return err
	})
}

func (r *JobEventsRepositoryImpl) ListByJob(ctx context.Context, jobID string) ([]model.JobEvent, error) {
	events := []model.JobEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, job_id, type, message, actor, created_at
		  FROM job_events
		 WHERE job_id = ?
		 ORDER BY created_at ASC, id ASC`, jobID)
	return events, err
}
