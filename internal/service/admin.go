package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/audit"
	"github.com/openimaging/archivepipe/internal/database"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/repository"
)

// A queued record must have sat this long before an administrative reset
// may pull it back to RECEIVING; younger ones are presumed in flight.
const stuckQueueAge = 15 * time.Minute

// AdminService carries the explicit operator actions on the registry.
// Resets are never automatic: every one is an audited administrative action
// with its own preconditions.
type AdminService struct {
	db        *database.DB
	sessions  repository.SessionRepository
	workflows repository.WorkflowRepository
}

func NewAdminService(
	db *database.DB,
	sessions repository.SessionRepository,
	workflows repository.WorkflowRepository,
) *AdminService {
	return &AdminService{
		db:        db,
		sessions:  sessions,
		workflows: workflows,
	}
}

// ResetSession puts a session back in RECEIVING so the next dispatch scan
// reconsiders it. Allowed only from ERROR, or from a queued state old
// enough to be presumed stuck.
func (s *AdminService) ResetSession(ctx context.Context, id, actingUser, reason string) (*model.SessionRecord, error) {
	if actingUser == "" {
		return nil, apperrors.MissingRequired("acting user")
	}

	rec, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if rec == nil {
		return nil, apperrors.NotFound("session")
	}

	switch {
	case rec.Status == model.StatusError:
	case rec.Status.IsQueued() && time.Since(rec.UpdatedAt) >= stuckQueueAge:
	default:
		return nil, apperrors.Conflict(
			fmt.Sprintf("session in state %s is not eligible for reset", rec.Status))
	}

	// The reset and its audit row land together or not at all.
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessions.WithTx(tx).Transition(ctx, id, rec.Status, model.StatusReceiving, nil); err != nil {
			return err
		}
		wf, err := s.workflows.WithTx(tx).Open(ctx, model.OpenWorkflowParams{
			Username:  actingUser,
			SessionID: id,
			Action:    "admin-reset",
		})
		if err != nil {
			return err
		}
		return s.workflows.WithTx(tx).Complete(ctx, wf.ID)
	})
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionReset,
		User:      actingUser,
		SessionID: id,
		Project:   rec.Project,
		Details: map[string]interface{}{
			"from":   rec.Status.String(),
			"reason": reason,
		},
	})
	log.Warn().
		Str("sessionId", id).
		Str("user", actingUser).
		Str("from", rec.Status.String()).
		Msg("session administratively reset to receiving")

	return s.sessions.FindByID(ctx, id)
}

// DeleteSession removes a tracking record without archiving it. The data on
// disk is left alone; this only clears the registry entry.
func (s *AdminService) DeleteSession(ctx context.Context, id, actingUser string) error {
	if actingUser == "" {
		return apperrors.MissingRequired("acting user")
	}

	rec, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if rec == nil {
		return apperrors.NotFound("session")
	}
	if rec.Status.IsRunning() {
		return apperrors.Conflict("session is being processed, reset it first")
	}

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionDelete,
		User:      actingUser,
		SessionID: id,
		Project:   rec.Project,
		Details:   map[string]interface{}{"location": rec.Location},
	})
	return nil
}

// SessionHistory returns the audit workflows recorded for a session.
func (s *AdminService) SessionHistory(ctx context.Context, id string) ([]model.Workflow, error) {
	return s.workflows.FindBySessionID(ctx, id)
}
