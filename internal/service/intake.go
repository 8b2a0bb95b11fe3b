package service

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/audit"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/repository"
)

// IntakeService fronts the session registry for the ingestion side: it
// creates tracking records for newly arriving sessions and provides the
// lookups used for idempotent re-entry.
type IntakeService struct {
	sessions repository.SessionRepository
}

func NewIntakeService(sessions repository.SessionRepository) *IntakeService {
	return &IntakeService{sessions: sessions}
}

// CreateSession registers a new session at a staging location. It conflicts
// when a non-error record already tracks the location, and also when files
// already sit there untracked: external state we cannot claim ownership of.
func (s *IntakeService) CreateSession(ctx context.Context, params model.CreateSessionParams) (*model.SessionRecord, error) {
	if params.Project == "" {
		return nil, apperrors.MissingRequired("project")
	}
	if params.Name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if params.Location == "" {
		return nil, apperrors.MissingRequired("location")
	}

	existing, err := s.sessions.FindActiveByLocation(ctx, params.Location)
	if err != nil {
		return nil, fmt.Errorf("check location: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("a session is already being received at this location").
			WithDetails(map[string]string{"sessionId": existing.ID})
	}

	if hasUntrackedContent(params.Location) {
		return nil, apperrors.Conflict("files already exist at this location with no tracking record")
	}

	rec, err := s.sessions.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionCreate,
		SessionID: rec.ID,
		Project:   rec.Project,
		Details:   map[string]interface{}{"location": rec.Location},
	})
	log.Info().
		Str("sessionId", rec.ID).
		Str("project", rec.Project).
		Str("location", rec.Location).
		Msg("session receiving")

	return rec, nil
}

func (s *IntakeService) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	rec, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if rec == nil {
		return nil, apperrors.NotFound("session")
	}
	return rec, nil
}

func (s *IntakeService) FindByLocation(ctx context.Context, location string) (*model.SessionRecord, error) {
	return s.sessions.FindActiveByLocation(ctx, location)
}

func (s *IntakeService) FindByProjectTagName(ctx context.Context, project string, tag *string, name string) (*model.SessionRecord, error) {
	return s.sessions.FindByProjectTagName(ctx, project, tag, name)
}

func (s *IntakeService) ListSessions(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.SessionRecord, error) {
	return s.sessions.List(ctx, status, limit, offset)
}

func hasUntrackedContent(location string) bool {
	entries, err := os.ReadDir(location)
	if err != nil {
		return false
	}
	return len(entries) > 0
}
