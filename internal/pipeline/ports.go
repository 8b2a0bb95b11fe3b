package pipeline

import (
	"context"

	"github.com/openimaging/archivepipe/internal/model"
)

// MetadataPopulator is the external metadata/validation pipeline. It turns
// the files at a staging directory into a structured session or fails with
// whatever validation error it hit. The lifecycle manager treats the call
// as a black box.
type MetadataPopulator interface {
	Populate(ctx context.Context, sourceDir, project string) (*model.StructuredSession, error)
}

// ArchiveStore is the permanent archive. Commit is the point of no return:
// once it succeeds the archived session is authoritative and the staging
// record may be deleted.
type ArchiveStore interface {
	FindSubjectByIdentifier(ctx context.Context, project, identifier string) (*model.Subject, error)
	FindSubjectByLabel(ctx context.Context, project, label string) (*model.Subject, error)
	CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error)
	Commit(ctx context.Context, session *model.StructuredSession) error
	RegisterScans(ctx context.Context, session *model.StructuredSession, sourceDir string) error
	Cleanup(ctx context.Context, session *model.StructuredSession, sourceDir string) error
}

// ActivityProbe reports whether files are still arriving at a staging
// location. The dispatch gate consults it before advancing a RECEIVING
// record, closing the race between "looks ready" and late-arriving files.
type ActivityProbe interface {
	IsReceiving(ctx context.Context, location string) (bool, error)
}
