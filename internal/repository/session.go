package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
)

// SessionRepository is the session registry: the single shared mutable
// resource of the pipeline. All status changes go through Transition, a
// single-statement compare-and-set, so racing actors on the same record see
// exactly one winner.
type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.SessionRecord, error)
	FindActiveByLocation(ctx context.Context, location string) (*model.SessionRecord, error)
	FindByProjectTagName(ctx context.Context, project string, tag *string, name string) (*model.SessionRecord, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.SessionRecord, error)
	Transition(ctx context.Context, id string, expected, next model.SessionStatus, message *string) error
	FindReadyForArchive(ctx context.Context) ([]model.SessionRecord, error)
	FindStaleRunning(ctx context.Context, before time.Time) ([]model.SessionRecord, error)
	List(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.SessionRecord, error)
	SetLastBuilt(ctx context.Context, id string, at time.Time) error
	UpdateLocation(ctx context.Context, id, location, timestamp, folderName string) error
	Delete(ctx context.Context, id string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM stage_sessions WHERE id = $1
	`, id)
	return HandleNotFound(&rec, err)
}

func (r *sessionRepo) FindActiveByLocation(ctx context.Context, location string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM stage_sessions
		WHERE location = $1 AND status <> 'ERROR'
	`, location)
	return HandleNotFound(&rec, err)
}

func (r *sessionRepo) FindByProjectTagName(ctx context.Context, project string, tag *string, name string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM stage_sessions
		WHERE project = $1 AND tag IS NOT DISTINCT FROM $2 AND name = $3
	`, project, tag, name)
	return HandleNotFound(&rec, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO stage_sessions (
			project, subject, name, timestamp, folder_name,
			tag, visit, protocol, time_zone, source,
			scan_date, scan_time, location, status, upload_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'RECEIVING', now())
		RETURNING *
	`, params.Project, params.Subject, params.Name, params.Timestamp, params.FolderName,
		params.Tag, params.Visit, params.Protocol, params.TimeZone, params.Source,
		params.ScanDate, params.ScanTime, params.Location)
	if err != nil {
		// The partial unique index on location (non-error rows only) backs
		// the one-record-per-location invariant across processes.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperrors.Conflict("a session is already being received at this location").WithCause(err)
		}
		return nil, err
	}
	return &rec, nil
}

// Transition atomically moves a record from expected to next. Illegal edges
// and lost races both surface as INVALID_TRANSITION; a missing record
// surfaces as NOT_FOUND. The message column is written only when entering
// ERROR and cleared when a record is reset to RECEIVING.
func (r *sessionRepo) Transition(ctx context.Context, id string, expected, next model.SessionStatus, message *string) error {
	if !model.CanTransition(expected, next) {
		return apperrors.InvalidTransition(id, expected.String(), next.String())
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE stage_sessions SET
			status = $3,
			message = CASE
				WHEN $3 = 'ERROR' THEN $4
				WHEN $3 = 'RECEIVING' THEN NULL
				ELSE message
			END,
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, expected, next, message)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		rec, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return apperrors.NotFound("session")
		}
		return apperrors.InvalidTransition(id, expected.String(), next.String())
	}
	return nil
}

func (r *sessionRepo) FindReadyForArchive(ctx context.Context) ([]model.SessionRecord, error) {
	var recs []model.SessionRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM stage_sessions
		WHERE status IN ('RECEIVING', 'QUEUED_ARCHIVING')
		ORDER BY upload_date
	`)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sessionRepo) FindStaleRunning(ctx context.Context, before time.Time) ([]model.SessionRecord, error) {
	var recs []model.SessionRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM stage_sessions
		WHERE status IN ('_BUILDING', '_ARCHIVING') AND updated_at < $1
		ORDER BY updated_at
	`, before)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sessionRepo) List(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.SessionRecord, error) {
	var recs []model.SessionRecord
	err := r.db.SelectContext(ctx, &recs, `
		SELECT * FROM stage_sessions
		WHERE $1::text IS NULL OR status = $1
		ORDER BY upload_date DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sessionRepo) SetLastBuilt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stage_sessions SET last_built_date = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	return err
}

func (r *sessionRepo) UpdateLocation(ctx context.Context, id, location, timestamp, folderName string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE stage_sessions SET
			location = $2,
			timestamp = $3,
			folder_name = $4,
			updated_at = now()
		WHERE id = $1
	`, id, location, timestamp, folderName)
	return err
}

// Delete is idempotent: deleting an absent record is a no-op.
func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM stage_sessions WHERE id = $1
	`, id)
	return err
}
