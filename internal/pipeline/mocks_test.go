package pipeline

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/openimaging/archivepipe/internal/model"
	"github.com/openimaging/archivepipe/internal/queue"
	"github.com/openimaging/archivepipe/internal/repository"
)

type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) FindByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) FindActiveByLocation(ctx context.Context, location string) (*model.SessionRecord, error) {
	args := m.Called(ctx, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) FindByProjectTagName(ctx context.Context, project string, tag *string, name string) (*model.SessionRecord, error) {
	args := m.Called(ctx, project, tag, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) Create(ctx context.Context, params model.CreateSessionParams) (*model.SessionRecord, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) Transition(ctx context.Context, id string, expected, next model.SessionStatus, message *string) error {
	args := m.Called(ctx, id, expected, next, message)
	return args.Error(0)
}

func (m *MockSessionRepository) FindReadyForArchive(ctx context.Context) ([]model.SessionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) FindStaleRunning(ctx context.Context, before time.Time) ([]model.SessionRecord, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) List(ctx context.Context, status *model.SessionStatus, limit, offset int) ([]model.SessionRecord, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionRecord), args.Error(1)
}

func (m *MockSessionRepository) SetLastBuilt(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockSessionRepository) UpdateLocation(ctx context.Context, id, location, timestamp, folderName string) error {
	args := m.Called(ctx, id, location, timestamp, folderName)
	return args.Error(0)
}

func (m *MockSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSessionRepository) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Open(ctx context.Context, params model.OpenWorkflowParams) (*model.Workflow, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) Complete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWorkflowRepository) Fail(ctx context.Context, id string, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockWorkflowRepository) FindByID(ctx context.Context, id string) (*model.Workflow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) FindBySessionID(ctx context.Context, sessionID string) ([]model.Workflow, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) WithTx(tx *sqlx.Tx) repository.WorkflowRepository {
	return m
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) GetOrCreate(ctx context.Context, params model.CreateReviewParams) (*model.ReviewRecord, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReviewRecord), args.Error(1)
}

func (m *MockReviewRepository) FindByCoords(ctx context.Context, coords model.PrearchiveCoords) (*model.ReviewRecord, error) {
	args := m.Called(ctx, coords)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReviewRecord), args.Error(1)
}

func (m *MockReviewRepository) WithTx(tx *sqlx.Tx) repository.ReviewRepository {
	return m
}

type MockPopulator struct {
	mock.Mock
}

func (m *MockPopulator) Populate(ctx context.Context, sourceDir, project string) (*model.StructuredSession, error) {
	args := m.Called(ctx, sourceDir, project)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StructuredSession), args.Error(1)
}

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) FindSubjectByIdentifier(ctx context.Context, project, identifier string) (*model.Subject, error) {
	args := m.Called(ctx, project, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *MockArchiveStore) FindSubjectByLabel(ctx context.Context, project, label string) (*model.Subject, error) {
	args := m.Called(ctx, project, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *MockArchiveStore) CreateSubject(ctx context.Context, subject model.Subject) (*model.Subject, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subject), args.Error(1)
}

func (m *MockArchiveStore) Commit(ctx context.Context, session *model.StructuredSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockArchiveStore) RegisterScans(ctx context.Context, session *model.StructuredSession, sourceDir string) error {
	args := m.Called(ctx, session, sourceDir)
	return args.Error(0)
}

func (m *MockArchiveStore) Cleanup(ctx context.Context, session *model.StructuredSession, sourceDir string) error {
	args := m.Called(ctx, session, sourceDir)
	return args.Error(0)
}

type MockDequeuer struct {
	mock.Mock
}

func (m *MockDequeuer) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Message, error) {
	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Message), args.Error(1)
}
