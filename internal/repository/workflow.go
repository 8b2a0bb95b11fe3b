package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/openimaging/archivepipe/internal/model"
)

// WorkflowRepository persists the audit trail of pipeline actions. Every
// archive attempt opens exactly one workflow row and closes it as complete
// or failed.
type WorkflowRepository interface {
	Open(ctx context.Context, params model.OpenWorkflowParams) (*model.Workflow, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, message string) error
	FindByID(ctx context.Context, id string) (*model.Workflow, error)
	FindBySessionID(ctx context.Context, sessionID string) ([]model.Workflow, error)
	WithTx(tx *sqlx.Tx) WorkflowRepository
}

type workflowDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type workflowRepo struct {
	db workflowDB
}

func NewWorkflowRepository(db *sqlx.DB) WorkflowRepository {
	return &workflowRepo{db: db}
}

func (r *workflowRepo) WithTx(tx *sqlx.Tx) WorkflowRepository {
	return &workflowRepo{db: tx}
}

func (r *workflowRepo) Open(ctx context.Context, params model.OpenWorkflowParams) (*model.Workflow, error) {
	var wf model.Workflow
	err := r.db.GetContext(ctx, &wf, `
		INSERT INTO workflows (username, session_id, action, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING *
	`, params.Username, params.SessionID, params.Action)
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

func (r *workflowRepo) Complete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET status = 'complete', updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, id)
	return err
}

func (r *workflowRepo) Fail(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflows SET status = 'failed', message = $2, updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, id, message)
	return err
}

func (r *workflowRepo) FindByID(ctx context.Context, id string) (*model.Workflow, error) {
	var wf model.Workflow
	err := r.db.GetContext(ctx, &wf, `
		SELECT * FROM workflows WHERE id = $1
	`, id)
	return HandleNotFound(&wf, err)
}

func (r *workflowRepo) FindBySessionID(ctx context.Context, sessionID string) ([]model.Workflow, error) {
	var wfs []model.Workflow
	err := r.db.SelectContext(ctx, &wfs, `
		SELECT * FROM workflows
		WHERE session_id = $1
		ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return wfs, nil
}
