package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateFactors(ctx context.Context, input *escalation.AnalysisInput) (*escalation.FactorsDraft, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.FactorsDraft), args.Error(1)
}

func (m *MockGenerator) GeneratePathways(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.PathwaysDraft, error) {
	args := m.Called(ctx, input, factors)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.PathwaysDraft), args.Error(1)
}

func (m *MockGenerator) GenerateMatrix(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.MatrixDraft, error) {
	args := m.Called(ctx, input, factors)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.MatrixDraft), args.Error(1)
}

type MockExerciseStore struct {
	mock.Mock
}

func (m *MockExerciseStore) ListRunning(ctx context.Context) ([]*exercise.Exercise, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*exercise.Exercise), args.Error(1)
}

type MockDecisionLog struct {
	mock.Mock
}

func (m *MockDecisionLog) ListByExerciseSince(ctx context.Context, exerciseID uuid.UUID, since *time.Time) ([]decision.Decision, error) {
	args := m.Called(ctx, exerciseID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]decision.Decision), args.Error(1)
}

type MockPublishedSummaries struct {
	mock.Mock
}

func (m *MockPublishedSummaries) ListSummaries(ctx context.Context, exerciseID uuid.UUID) ([]escalation.PublishedSummary, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]escalation.PublishedSummary), args.Error(1)
}

type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) CreateFactorSnapshot(ctx context.Context, s *escalation.FactorSnapshot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSnapshotStore) CreatePathwaySnapshot(ctx context.Context, s *escalation.PathwaySnapshot) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSnapshotStore) CreateMatrixEvaluation(ctx context.Context, e *escalation.MatrixEvaluation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockSnapshotStore) LatestFactorSnapshot(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*escalation.FactorSnapshot), args.Error(1)
}

type MockFactorCache struct {
	mock.Mock
}

func (m *MockFactorCache) SetLatestFactors(ctx context.Context, snapshot *escalation.FactorSnapshot) {
	m.Called(ctx, snapshot)
}
