package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/pipeline"
)

// Store is the permanent archive: a catalog in postgres plus a final
// on-disk layout under root/project/session-label. Commit writes the
// catalog row that makes a session authoritative; Cleanup moves the files
// into the final layout afterwards.
type Store struct {
	db   *sqlx.DB
	root string
}

var _ pipeline.ArchiveStore = (*Store)(nil)

func NewStore(db *sqlx.DB, root string) *Store {
	return &Store{db: db, root: root}
}

func (s *Store) FindSubjectByIdentifier(ctx context.Context, project, identifier string) (*model.Subject, error) {
	var subject model.Subject
	err := s.db.GetContext(ctx, &subject, `
		SELECT * FROM subjects WHERE project = $1 AND identifier = $2
	`, project, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *Store) FindSubjectByLabel(ctx context.Context, project, label string) (*model.Subject, error) {
	var subject model.Subject
	err := s.db.GetContext(ctx, &subject, `
		SELECT * FROM subjects WHERE project = $1 AND label = $2
	`, project, label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *Store) CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error) {
	var created model.Subject
	err := s.db.GetContext(ctx, &created, `
		INSERT INTO subjects (id, project, identifier, label)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, subject.ID, subject.Project, subject.Identifier, subject.Label)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Commit writes the catalog entry for a session. A session label may be
// archived once per project; re-archiving is a conflict, never an
// overwrite.
func (s *Store) Commit(ctx context.Context, session *model.StructuredSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_sessions (id, project, subject_id, label, modality)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.Project, session.SubjectID, session.Label, session.Modality)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict(
				fmt.Sprintf("session %s already archived in project %s", session.Label, session.Project)).
				WithCause(err)
		}
		return err
	}
	return nil
}

func (s *Store) RegisterScans(ctx context.Context, session *model.StructuredSession, sourceDir string) error {
	for _, scan := range session.Scans {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO archive_scans (id, session_id, label, type, file_count)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, scan.ID, session.ID, scan.Label, scan.Type, scan.FileCount)
		if err != nil {
			return fmt.Errorf("register scan %s: %w", scan.Label, err)
		}
	}
	return nil
}

// Cleanup moves the session's files out of staging into the final archive
// layout.
func (s *Store) Cleanup(ctx context.Context, session *model.StructuredSession, sourceDir string) error {
	target := filepath.Join(s.root, session.Project, session.Label)
	if _, err := os.Stat(target); err == nil {
		return apperrors.Conflict(fmt.Sprintf("archive layout already has content at %s", target))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := os.Rename(sourceDir, target); err != nil {
		return fmt.Errorf("move session into archive: %w", err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("from", sourceDir).
		Str("to", target).
		Msg("session files moved into archive layout")
	return nil
}
