package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
)

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

type MockDefinitionSource struct {
	mock.Mock
}

func (m *MockDefinitionSource) ListUnfired(ctx context.Context, exerciseID, scenarioID uuid.UUID) ([]*inject.EventDefinition, error) {
	args := m.Called(ctx, exerciseID, scenarioID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*inject.EventDefinition), args.Error(1)
}

type MockDecisionLog struct {
	mock.Mock
}

func (m *MockDecisionLog) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]decision.Decision, error) {
	args := m.Called(ctx, exerciseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]decision.Decision), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exerciseID, definitionID uuid.UUID) (*inject.PublishedEvent, error) {
	args := m.Called(ctx, exerciseID, definitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inject.PublishedEvent), args.Error(1)
}
