package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openimaging/archivepipe/internal/errors"
	"github.com/openimaging/archivepipe/internal/model"
)

func builtSession(t *testing.T) *model.SessionRecord {
	t.Helper()
	rec := stagedSession(t)
	rec.Subject = "SUBJ01"
	rec.Name = "sess1"
	rec.Status = model.StatusQueuedArchiving
	return rec
}

type archiveFixture struct {
	stage      *ArchiveStage
	sessions   *MockSessionRepository
	workflows  *MockWorkflowRepository
	store      *MockArchiveStore
	populator  *MockPopulator
	reviews    *MockReviewRepository
	prearchive string
}

func newArchiveFixture(t *testing.T) *archiveFixture {
	t.Helper()
	f := &archiveFixture{
		sessions:   new(MockSessionRepository),
		workflows:  new(MockWorkflowRepository),
		store:      new(MockArchiveStore),
		populator:  new(MockPopulator),
		reviews:    new(MockReviewRepository),
		prearchive: t.TempDir(),
	}
	quarantine := NewQuarantine(f.sessions, f.reviews, f.prearchive)
	f.stage = NewArchiveStage(f.sessions, f.workflows, f.store, f.populator, quarantine, "archiver")
	return f
}

// expectClaim wires the lookup and the compare-and-set into the running state.
func (f *archiveFixture) expectClaim(ctx context.Context, rec *model.SessionRecord) {
	f.sessions.On("FindByID", ctx, rec.ID).Return(rec, nil)
	f.sessions.On("Transition", ctx, rec.ID,
		model.StatusQueuedArchiving, model.StatusArchiving, (*string)(nil)).Return(nil)
}

// expectQuarantine wires the fallback moves taken on a stage failure.
func (f *archiveFixture) expectQuarantine(ctx context.Context, rec *model.SessionRecord) {
	f.sessions.On("UpdateLocation", ctx, rec.ID,
		mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("GetOrCreate", ctx, mock.Anything).
		Return(&model.ReviewRecord{ID: "rev-1"}, nil)
	f.sessions.On("Transition", ctx, rec.ID,
		model.StatusArchiving, model.StatusError, mock.MatchedBy(func(msg *string) bool {
			return msg != nil && *msg != ""
		})).Return(nil)
}

func TestArchiveStage_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("archives and deletes the staging record", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := builtSession(t)

		f.expectClaim(ctx, rec)
		f.workflows.On("Open", ctx, model.OpenWorkflowParams{
			Username:  "archiver",
			SessionID: rec.ID,
			Action:    WorkflowAction,
		}).Return(&model.Workflow{ID: "wf-1"}, nil)
		f.populator.On("Populate", ctx, rec.Location, "P1").
			Return(&model.StructuredSession{Label: "sess1"}, nil)
		f.store.On("FindSubjectByIdentifier", ctx, "P1", "SUBJ01").
			Return(&model.Subject{ID: "subj-1", Label: "SUBJ01"}, nil)
		f.store.On("Commit", ctx, mock.MatchedBy(func(s *model.StructuredSession) bool {
			return s.Project == "P1" && s.SubjectID == "subj-1" && s.ID != ""
		})).Return(nil)
		f.store.On("RegisterScans", ctx, mock.Anything, rec.Location).Return(nil)
		f.store.On("Cleanup", ctx, mock.Anything, rec.Location).Return(nil)
		f.workflows.On("Complete", ctx, "wf-1").Return(nil)
		f.sessions.On("Delete", ctx, rec.ID).Return(nil)

		err := f.stage.Process(ctx, rec.ID)

		require.NoError(t, err)
		f.sessions.AssertExpectations(t)
		f.workflows.AssertExpectations(t)
		f.store.AssertExpectations(t)
		f.workflows.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("creates a subject when no match exists", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := builtSession(t)

		f.expectClaim(ctx, rec)
		f.workflows.On("Open", ctx, mock.Anything).Return(&model.Workflow{ID: "wf-1"}, nil)
		f.populator.On("Populate", ctx, rec.Location, "P1").
			Return(&model.StructuredSession{}, nil)
		f.store.On("FindSubjectByIdentifier", ctx, "P1", "SUBJ01").Return(nil, nil)
		f.store.On("FindSubjectByLabel", ctx, "P1", "SUBJ01").Return(nil, nil)
		f.store.On("CreateSubject", ctx, mock.MatchedBy(func(s model.Subject) bool {
			return s.Project == "P1" && s.Label == "SUBJ01" && s.ID != "" && s.Identifier != ""
		})).Return(&model.Subject{ID: "subj-new", Label: "SUBJ01"}, nil)
		f.store.On("Commit", ctx, mock.MatchedBy(func(s *model.StructuredSession) bool {
			// Label falls back to the record name when the populator left it empty.
			return s.SubjectID == "subj-new" && s.Label == "sess1"
		})).Return(nil)
		f.store.On("RegisterScans", ctx, mock.Anything, rec.Location).Return(nil)
		f.store.On("Cleanup", ctx, mock.Anything, rec.Location).Return(nil)
		f.workflows.On("Complete", ctx, "wf-1").Return(nil)
		f.sessions.On("Delete", ctx, rec.ID).Return(nil)

		require.NoError(t, f.stage.Process(ctx, rec.ID))
		f.store.AssertExpectations(t)
	})

	t.Run("failure before commit quarantines and keeps the record", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := builtSession(t)

		f.expectClaim(ctx, rec)
		f.workflows.On("Open", ctx, mock.Anything).Return(&model.Workflow{ID: "wf-1"}, nil)
		f.populator.On("Populate", ctx, rec.Location, "P1").
			Return(nil, errors.New("validation failed"))
		f.workflows.On("Fail", ctx, "wf-1", mock.AnythingOfType("string")).Return(nil)
		f.expectQuarantine(ctx, rec)

		err := f.stage.Process(ctx, rec.ID)

		require.NoError(t, err)
		f.sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		f.workflows.AssertExpectations(t)

		// Data sits in the review area now.
		moved := filepath.Join(f.prearchive, "P1", "20240101", "sess1", "scan1.dat")
		_, statErr := os.Stat(moved)
		assert.NoError(t, statErr)
	})

	t.Run("failure after commit still fails the workflow and keeps the record", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := builtSession(t)

		f.expectClaim(ctx, rec)
		f.workflows.On("Open", ctx, mock.Anything).Return(&model.Workflow{ID: "wf-1"}, nil)
		f.populator.On("Populate", ctx, rec.Location, "P1").
			Return(&model.StructuredSession{Label: "sess1"}, nil)
		f.store.On("FindSubjectByIdentifier", ctx, "P1", "SUBJ01").
			Return(&model.Subject{ID: "subj-1"}, nil)
		f.store.On("Commit", ctx, mock.Anything).Return(nil)
		f.store.On("RegisterScans", ctx, mock.Anything, rec.Location).
			Return(errors.New("scan catalog write failed"))
		f.workflows.On("Fail", ctx, "wf-1", mock.AnythingOfType("string")).Return(nil)
		f.expectQuarantine(ctx, rec)

		require.NoError(t, f.stage.Process(ctx, rec.ID))
		f.sessions.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		f.workflows.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	})

	t.Run("lost claim surfaces without opening a workflow", func(t *testing.T) {
		f := newArchiveFixture(t)
		rec := builtSession(t)

		f.sessions.On("FindByID", ctx, rec.ID).Return(rec, nil)
		f.sessions.On("Transition", ctx, rec.ID,
			model.StatusQueuedArchiving, model.StatusArchiving, (*string)(nil)).
			Return(apperrors.InvalidTransition(rec.ID, "QUEUED_ARCHIVING", "_ARCHIVING"))

		err := f.stage.Process(ctx, rec.ID)

		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidTransition(err))
		f.workflows.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	})
}
