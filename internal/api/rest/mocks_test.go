package rest

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/service/publishing"
)

type MockPublishService struct {
	mock.Mock
}

func (m *MockPublishService) Publish(ctx context.Context, exerciseID, definitionID uuid.UUID) (*inject.PublishedEvent, error) {
	args := m.Called(ctx, exerciseID, definitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inject.PublishedEvent), args.Error(1)
}

func (m *MockPublishService) PublishImmediate(ctx context.Context, exerciseID uuid.UUID, input publishing.ImmediateInput) (*inject.PublishedEvent, error) {
	args := m.Called(ctx, exerciseID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inject.PublishedEvent), args.Error(1)
}

func (m *MockPublishService) Cancel(ctx context.Context, exerciseID, definitionID uuid.UUID, reason string) (*inject.CancelledEvent, error) {
	args := m.Called(ctx, exerciseID, definitionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inject.CancelledEvent), args.Error(1)
}

type MockPublishedReader struct {
	mock.Mock
}

func (m *MockPublishedReader) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inject.PublishedEvent), args.Error(1)
}

type MockCancelledReader struct {
	mock.Mock
}

func (m *MockCancelledReader) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.CancelledEvent, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inject.CancelledEvent), args.Error(1)
}

type MockEscalationReader struct {
	mock.Mock
}

func (m *MockEscalationReader) ListFactorSnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.FactorSnapshot, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escalation.FactorSnapshot), args.Error(1)
}

func (m *MockEscalationReader) ListPathwaySnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.PathwaySnapshot, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escalation.PathwaySnapshot), args.Error(1)
}

func (m *MockEscalationReader) ListMatrixEvaluations(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.MatrixEvaluation, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*escalation.MatrixEvaluation), args.Error(1)
}

func (m *MockEscalationReader) LatestFactorSnapshot(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.FactorSnapshot), args.Error(1)
}

type MockReadCache struct {
	mock.Mock
}

func (m *MockReadCache) GetPublished(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inject.PublishedEvent), args.Error(1)
}

func (m *MockReadCache) SetPublished(ctx context.Context, exerciseID uuid.UUID, events []*inject.PublishedEvent) {
	m.Called(ctx, exerciseID, events)
}

func (m *MockReadCache) GetLatestFactors(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.FactorSnapshot), args.Error(1)
}

func (m *MockReadCache) SetLatestFactors(ctx context.Context, snapshot *escalation.FactorSnapshot) {
	m.Called(ctx, snapshot)
}
