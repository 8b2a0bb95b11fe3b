package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/audit"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/repository"
)

// WorkflowAction tags the audit workflow opened for each archive attempt.
const WorkflowAction = "direct-archive"

// ArchiveStage commits a built session into the permanent archive as one
// logical unit of work tied to a single audit workflow. The staging record
// is deleted only after every step succeeded; any failure quarantines the
// data and parks the record in ERROR for operator inspection.
type ArchiveStage struct {
	sessions   repository.SessionRepository
	workflows  repository.WorkflowRepository
	store      ArchiveStore
	populator  MetadataPopulator
	quarantine *Quarantine
	user       string
}

func NewArchiveStage(
	sessions repository.SessionRepository,
	workflows repository.WorkflowRepository,
	store ArchiveStore,
	populator MetadataPopulator,
	quarantine *Quarantine,
	user string,
) *ArchiveStage {
	return &ArchiveStage{
		sessions:   sessions,
		workflows:  workflows,
		store:      store,
		populator:  populator,
		quarantine: quarantine,
		user:       user,
	}
}

// Process archives one session id. As in the build stage, only claim
// failures surface to the caller; stage failures are handled internally.
func (s *ArchiveStage) Process(ctx context.Context, id string) error {
	rec, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find session %s: %w", id, err)
	}
	if rec == nil {
		return apperrors.NotFound("session")
	}

	if err := s.sessions.Transition(ctx, id, model.StatusQueuedArchiving, model.StatusArchiving, nil); err != nil {
		return err
	}

	log.Info().
		Str("sessionId", id).
		Str("project", rec.Project).
		Str("location", rec.Location).
		Msg("archiving session")

	wf, err := s.workflows.Open(ctx, model.OpenWorkflowParams{
		Username:  s.user,
		SessionID: id,
		Action:    WorkflowAction,
	})
	if err != nil {
		s.fail(ctx, rec, nil, apperrors.StageFailure("archive", err))
		return nil
	}

	if err := s.archive(ctx, rec); err != nil {
		s.fail(ctx, rec, wf, apperrors.StageFailure("archive", err))
		return nil
	}

	if err := s.workflows.Complete(ctx, wf.ID); err != nil {
		log.Error().Err(err).Str("workflowId", wf.ID).Msg("workflow not marked complete")
	}

	// The archive is authoritative from here on; the staging record goes
	// away so there is a single source of truth.
	if err := s.sessions.Delete(ctx, id); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("staging record not deleted after commit")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventArchiveComplete,
		User:      s.user,
		SessionID: id,
		Project:   rec.Project,
		Details:   map[string]interface{}{"workflowId": wf.ID},
	})
	log.Info().Str("sessionId", id).Str("project", rec.Project).Msg("session archived")
	return nil
}

func (s *ArchiveStage) archive(ctx context.Context, rec *model.SessionRecord) error {
	session, err := s.populator.Populate(ctx, rec.Location, rec.Project)
	if err != nil {
		return fmt.Errorf("populate session: %w", err)
	}

	session.Project = rec.Project
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Label == "" {
		session.Label = rec.Name
	}

	subject, err := s.resolveSubject(ctx, rec)
	if err != nil {
		return fmt.Errorf("resolve subject: %w", err)
	}
	session.SubjectID = subject.ID

	// Point of no return.
	if err := s.store.Commit(ctx, session); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	if err := s.store.RegisterScans(ctx, session, rec.Location); err != nil {
		return fmt.Errorf("register scans: %w", err)
	}

	if err := s.store.Cleanup(ctx, session, rec.Location); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	return nil
}

// resolveSubject matches by identifier, then by label within the project,
// and creates a new subject only when neither match succeeds. A record with
// no subject gets fresh canonical identifiers.
func (s *ArchiveStage) resolveSubject(ctx context.Context, rec *model.SessionRecord) (*model.Subject, error) {
	if rec.Subject != "" {
		subject, err := s.store.FindSubjectByIdentifier(ctx, rec.Project, rec.Subject)
		if err != nil {
			return nil, err
		}
		if subject != nil {
			return subject, nil
		}

		subject, err = s.store.FindSubjectByLabel(ctx, rec.Project, rec.Subject)
		if err != nil {
			return nil, err
		}
		if subject != nil {
			return subject, nil
		}
	}

	label := rec.Subject
	if label == "" {
		label = rec.Name
	}
	return s.store.CreateSubject(ctx, model.Subject{
		ID:         uuid.NewString(),
		Project:    rec.Project,
		Identifier: uuid.NewString(),
		Label:      label,
	})
}

func (s *ArchiveStage) fail(ctx context.Context, rec *model.SessionRecord, wf *model.Workflow, cause error) {
	log.Error().Err(cause).
		Str("sessionId", rec.ID).
		Str("location", rec.Location).
		Msg("archive failed")

	if wf != nil {
		if err := s.workflows.Fail(ctx, wf.ID, cause.Error()); err != nil {
			log.Error().Err(err).Str("workflowId", wf.ID).Msg("workflow not marked failed")
		}
	}

	outcome := s.quarantine.Relocate(ctx, rec)
	if outcome.Err != nil {
		log.Error().Err(outcome.Err).Str("sessionId", rec.ID).Msg("quarantine fallback incomplete")
	}

	msg := cause.Error()
	if err := s.sessions.Transition(ctx, rec.ID, model.StatusArchiving, model.StatusError, &msg); err != nil {
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("error-state transition failed")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventArchiveFailed,
		User:      s.user,
		SessionID: rec.ID,
		Project:   rec.Project,
		Details:   map[string]interface{}{"reason": cause.Error()},
	})
}
