package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/openimaging/archivepipe/internal/model"
)

// ReviewRepository registers data in the general incoming-review
// (prearchive) area. GetOrCreate is idempotent on the prearchive
// coordinates so the quarantine fallback can re-run safely.
type ReviewRepository interface {
	GetOrCreate(ctx context.Context, params model.CreateReviewParams) (*model.ReviewRecord, error)
	FindByCoords(ctx context.Context, coords model.PrearchiveCoords) (*model.ReviewRecord, error)
	WithTx(tx *sqlx.Tx) ReviewRepository
}

type reviewDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type reviewRepo struct {
	db reviewDB
}

func NewReviewRepository(db *sqlx.DB) ReviewRepository {
	return &reviewRepo{db: db}
}

func (r *reviewRepo) WithTx(tx *sqlx.Tx) ReviewRepository {
	return &reviewRepo{db: tx}
}

func (r *reviewRepo) GetOrCreate(ctx context.Context, params model.CreateReviewParams) (*model.ReviewRecord, error) {
	var rec model.ReviewRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO prearchive_reviews (project, timestamp, folder_name, location, review_code)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project, timestamp, folder_name)
		DO UPDATE SET location = EXCLUDED.location, review_code = EXCLUDED.review_code
		RETURNING *
	`, params.Project, params.Timestamp, params.FolderName, params.Location, params.ReviewCode)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reviewRepo) FindByCoords(ctx context.Context, coords model.PrearchiveCoords) (*model.ReviewRecord, error) {
	var rec model.ReviewRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT * FROM prearchive_reviews
		WHERE project = $1 AND timestamp = $2 AND folder_name = $3
	`, coords.Project, coords.Timestamp, coords.FolderName)
	return HandleNotFound(&rec, err)
}
