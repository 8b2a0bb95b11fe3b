package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/openimaging/archivepipe/internal/audit"
	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/repository"
)

// QuarantineOutcome reports what the fallback managed to do. Callers log it;
// they never treat it as a propagating failure, since the fallback is itself
// the failure path of the build and archive stages.
type QuarantineOutcome struct {
	Moved       bool
	Registered  bool
	NewLocation string
	Err         error
}

// Quarantine relocates a session's data out of the direct-archive staging
// area into the general incoming-review (prearchive) area and registers it
// there for manual review. Every step is best-effort.
type Quarantine struct {
	sessions       repository.SessionRepository
	reviews        repository.ReviewRepository
	prearchiveRoot string
}

func NewQuarantine(
	sessions repository.SessionRepository,
	reviews repository.ReviewRepository,
	prearchiveRoot string,
) *Quarantine {
	return &Quarantine{
		sessions:       sessions,
		reviews:        reviews,
		prearchiveRoot: prearchiveRoot,
	}
}

// Relocate moves rec's data to the prearchive area. The whole directory is
// moved, not copied, so the files exist at exactly one location afterwards.
func (q *Quarantine) Relocate(ctx context.Context, rec *model.SessionRecord) QuarantineOutcome {
	var out QuarantineOutcome

	timestamp := rec.Timestamp
	target := filepath.Join(q.prearchiveRoot, rec.Project, timestamp, rec.FolderName)

	if pathExists(target) {
		// Disambiguate a colliding slot once; a second collision is a
		// conflict the operator has to resolve.
		timestamp = rec.Timestamp + "_1"
		target = filepath.Join(q.prearchiveRoot, rec.Project, timestamp, rec.FolderName)
		if pathExists(target) {
			out.Err = apperrors.Conflict("quarantine target already has content")
			log.Error().
				Str("sessionId", rec.ID).
				Str("location", rec.Location).
				Str("target", target).
				Msg("quarantine target collision, data left in place")
			return out
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		out.Err = err
		log.Error().Err(err).
			Str("sessionId", rec.ID).
			Str("location", rec.Location).
			Str("target", target).
			Msg("quarantine: create target parent failed, data left in place")
		return out
	}

	if err := os.Rename(rec.Location, target); err != nil {
		out.Err = err
		log.Error().Err(err).
			Str("sessionId", rec.ID).
			Str("location", rec.Location).
			Str("target", target).
			Msg("quarantine: move failed, data left in place")
		return out
	}
	out.Moved = true
	out.NewLocation = target

	if err := q.sessions.UpdateLocation(ctx, rec.ID, target, timestamp, rec.FolderName); err != nil {
		out.Err = err
		log.Error().Err(err).
			Str("sessionId", rec.ID).
			Str("target", target).
			Msg("quarantine: record coordinates not updated")
	}

	_, err := q.reviews.GetOrCreate(ctx, model.CreateReviewParams{
		Project:    rec.Project,
		Timestamp:  timestamp,
		FolderName: rec.FolderName,
		Location:   target,
		ReviewCode: model.ReviewCodeManual,
	})
	if err != nil {
		out.Err = err
		log.Error().Err(err).
			Str("sessionId", rec.ID).
			Str("target", target).
			Msg("quarantine: review registration failed")
		return out
	}
	out.Registered = true

	audit.Log(ctx, audit.Event{
		Type:      audit.EventQuarantine,
		SessionID: rec.ID,
		Project:   rec.Project,
		Details: map[string]interface{}{
			"from": rec.Location,
			"to":   target,
		},
	})
	log.Warn().
		Str("sessionId", rec.ID).
		Str("from", rec.Location).
		Str("to", target).
		Msg("session data quarantined for manual review")
	return out
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
