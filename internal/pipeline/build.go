package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/repository"
)

// BuildStage validates a queued session's files through the metadata
// pipeline and advances it toward archiving. A failed build quarantines the
// data and parks the record in ERROR; the failure never escapes the stage.
type BuildStage struct {
	sessions   repository.SessionRepository
	populator  MetadataPopulator
	quarantine *Quarantine
}

func NewBuildStage(
	sessions repository.SessionRepository,
	populator MetadataPopulator,
	quarantine *Quarantine,
) *BuildStage {
	return &BuildStage{
		sessions:   sessions,
		populator:  populator,
		quarantine: quarantine,
	}
}

// Process runs the build for one session id. It returns an error only when
// the session cannot be claimed (missing record or lost compare-and-set);
// stage failures are handled internally.
func (s *BuildStage) Process(ctx context.Context, id string) error {
	rec, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find session %s: %w", id, err)
	}
	if rec == nil {
		return apperrors.NotFound("session")
	}

	if err := s.sessions.Transition(ctx, id, model.StatusQueuedBuilding, model.StatusBuilding, nil); err != nil {
		return err
	}

	log.Info().
		Str("sessionId", id).
		Str("location", rec.Location).
		Msg("building session")

	if _, err := s.populator.Populate(ctx, rec.Location, rec.Project); err != nil {
		s.fail(ctx, rec, apperrors.StageFailure("build", err))
		return nil
	}

	if err := s.sessions.SetLastBuilt(ctx, id, time.Now()); err != nil {
		log.Error().Err(err).Str("sessionId", id).Msg("record last-built date not updated")
	}

	if err := s.sessions.Transition(ctx, id, model.StatusBuilding, model.StatusQueuedArchiving, nil); err != nil {
		return err
	}

	log.Info().Str("sessionId", id).Msg("session built, queued for archiving")
	return nil
}

// fail quarantines the data and parks the record in ERROR. Both actions are
// attempted even if one fails, so operators can always find the data.
func (s *BuildStage) fail(ctx context.Context, rec *model.SessionRecord, cause error) {
	log.Error().Err(cause).
		Str("sessionId", rec.ID).
		Str("location", rec.Location).
		Msg("build failed")

	outcome := s.quarantine.Relocate(ctx, rec)
	if outcome.Err != nil {
		log.Error().Err(outcome.Err).Str("sessionId", rec.ID).Msg("quarantine fallback incomplete")
	}

	msg := cause.Error()
	if err := s.sessions.Transition(ctx, rec.ID, model.StatusBuilding, model.StatusError, &msg); err != nil {
		log.Error().Err(err).Str("sessionId", rec.ID).Msg("error-state transition failed")
	}
}
