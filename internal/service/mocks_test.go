package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/openimaging/archivepipe/internal/model"
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
